// chatctl is the operator tool: account creation, token minting,
// uploaded-file registration and dialog inspection. It opens the store
// directly, so the daemon must be stopped (Badger is single-process).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"privchat/auth"
	"privchat/domain"
	"privchat/repositories"
)

type Config struct {
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	TokenSecret    string        `env:"TOKEN_SECRET,required=true"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,default=24h"`
	LogLevel       string        `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		color.Red.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chatctl <user-add|token|file-add|dialogs|messages> [flags]")
	}

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	store := repositories.NewStore(db, log)
	authenticator := auth.NewTokenAuthenticator([]byte(config.TokenSecret), config.TokenTTL, store)
	ctx := context.Background()

	switch cmd := args[0]; cmd {
	case "user-add":
		return userAdd(ctx, store, args[1:])
	case "token":
		return mintToken(ctx, store, authenticator, args[1:])
	case "file-add":
		return fileAdd(ctx, store, args[1:])
	case "dialogs":
		return listDialogs(ctx, store, args[1:])
	case "messages":
		return listMessages(ctx, store, args[1:])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func userAdd(ctx context.Context, store *repositories.Store, args []string) error {
	fs := flag.NewFlagSet("user-add", flag.ExitOnError)
	username := fs.String("username", "", "unique username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(args)

	req := auth.RegisterRequest{Username: *username, Email: *email, Password: *password}
	if err := auth.ValidateRegister(req); err != nil {
		return err
	}
	hash, err := auth.HashPassword(*password)
	if err != nil {
		return err
	}
	user, err := store.CreateUser(ctx, *username, *email, hash)
	if err != nil {
		return err
	}
	color.Green.Printf("User %s created with pk %s\n", user.Username, user.PK)
	return nil
}

func mintToken(ctx context.Context, store *repositories.Store, authenticator *auth.TokenAuthenticator, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	username := fs.String("username", "", "username to mint a session token for")
	fs.Parse(args)

	user, err := store.FindUserByName(ctx, *username)
	if err != nil {
		return err
	}
	token, err := authenticator.Mint(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func fileAdd(ctx context.Context, store *repositories.Store, args []string) error {
	fs := flag.NewFlagSet("file-add", flag.ExitOnError)
	path := fs.String("path", "", "local file to register")
	uploader := fs.String("uploader", "", "username of the uploader")
	url := fs.String("url", "", "public URL clients download the file from")
	fs.Parse(args)

	user, err := store.FindUserByName(ctx, *uploader)
	if err != nil {
		return err
	}
	info, err := os.Stat(*path)
	if err != nil {
		return err
	}
	mtype, err := mimetype.DetectFile(*path)
	if err != nil {
		return err
	}

	file := &domain.UploadedFile{
		Name:        filepath.Base(*path),
		Size:        info.Size(),
		ContentType: mtype.String(),
		UploadedBy:  user.PK,
		URL:         *url,
	}
	if err := store.RegisterFile(ctx, file); err != nil {
		return err
	}
	color.Green.Printf("File %s registered with id %s (%s)\n", file.Name, file.ID, file.ContentType)
	return nil
}

func listDialogs(ctx context.Context, store *repositories.Store, args []string) error {
	fs := flag.NewFlagSet("dialogs", flag.ExitOnError)
	username := fs.String("username", "", "username to list dialogs for")
	fs.Parse(args)

	user, err := store.FindUserByName(ctx, *username)
	if err != nil {
		return err
	}
	groups, err := store.DialogGroupsFor(ctx, user.PK)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Partner PK", "Username", "Unread"})
	for _, pk := range groups {
		if pk == user.PK {
			continue
		}
		partner, err := store.FindUser(ctx, pk)
		if err != nil {
			return err
		}
		unread, err := store.UnreadCount(ctx, pk, user.PK)
		if err != nil {
			return err
		}
		table.Append([]string{partner.PK, partner.Username, fmt.Sprintf("%d", unread)})
	}
	table.Render()
	return nil
}

func listMessages(ctx context.Context, store *repositories.Store, args []string) error {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	a := fs.String("a", "", "first username of the dialog")
	b := fs.String("b", "", "second username of the dialog")
	limit := fs.Int("limit", 20, "maximum number of messages, newest first")
	fs.Parse(args)

	userA, err := store.FindUserByName(ctx, *a)
	if err != nil {
		return err
	}
	userB, err := store.FindUserByName(ctx, *b)
	if err != nil {
		return err
	}
	messages, err := store.RecentMessages(ctx, userA.PK, userB.PK, *limit)
	if err != nil {
		return err
	}
	usernames := map[string]string{userA.PK: userA.Username, userB.PK: userB.Username}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PID", "From", "To", "Content", "Read", "At"})
	for _, row := range lo.Map(messages, func(msg domain.Message, _ int) []string {
		content := msg.Text
		if msg.FileID != "" {
			content = "file:" + msg.FileID
		}
		return []string{
			msg.PID.String(),
			usernames[msg.Sender],
			usernames[msg.Recipient],
			content,
			fmt.Sprintf("%t", msg.Read),
			msg.CreatedAt.Format(time.RFC3339),
		}
	}) {
		table.Append(row)
	}
	table.Render()
	return nil
}
