package repositories

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"privchat/domain"
	priverr "privchat/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, slog.Default())
}

func TestStore_CreateUser_And_Lookups(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	req.NotEmpty(created.PK)

	byPK, err := store.FindUser(ctx, created.PK)
	req.NoError(err)
	req.Equal(created, byPK)

	byName, err := store.FindUserByName(ctx, "alice")
	req.NoError(err)
	req.Equal(created, byName)

	// Taken username
	_, err = store.CreateUser(ctx, "alice", "other@example.com", "hash")
	req.ErrorIs(err, priverr.ErrUserExists)

	// Unknown lookups
	_, err = store.FindUser(ctx, "ghost")
	req.ErrorIs(err, priverr.ErrNotFound)
	_, err = store.FindUserByName(ctx, "ghost")
	req.ErrorIs(err, priverr.ErrNotFound)
}

func TestStore_Text_Message_Lifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash")
	req.NoError(err)

	msg, err := store.CreateTextMessage(ctx, alice, bob, "hello", -1, nil)
	req.NoError(err)

	recipient, sender, err := store.FindMessage(ctx, msg.PID.String())
	req.NoError(err)
	req.Equal(bob.PK, recipient)
	req.Equal(alice.PK, sender)

	// The unread index counts it for bob, not for alice
	count, err := store.UnreadCount(ctx, alice.PK, bob.PK)
	req.NoError(err)
	req.Equal(1, count)
	count, err = store.UnreadCount(ctx, bob.PK, alice.PK)
	req.NoError(err)
	req.Equal(0, count)

	// Marking read clears the index
	req.NoError(store.MarkRead(ctx, msg.PID.String()))
	count, err = store.UnreadCount(ctx, alice.PK, bob.PK)
	req.NoError(err)
	req.Equal(0, count)

	// Marking read is monotonic
	req.NoError(store.MarkRead(ctx, msg.PID.String()))

	req.ErrorIs(store.MarkRead(ctx, "ghost"), priverr.ErrNotFound)
}

func TestStore_UnreadCount_Tracks_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash")
	req.NoError(err)

	var pids []string
	for i := 0; i < 3; i++ {
		msg, err := store.CreateTextMessage(ctx, bob, alice, "ping", -1, nil)
		req.NoError(err)
		pids = append(pids, msg.PID.String())
	}

	for i, pid := range pids {
		count, err := store.UnreadCount(ctx, bob.PK, alice.PK)
		req.NoError(err)
		req.Equal(len(pids)-i, count)
		req.NoError(store.MarkRead(ctx, pid))
	}
	count, err := store.UnreadCount(ctx, bob.PK, alice.PK)
	req.NoError(err)
	req.Equal(0, count)
}

func TestStore_DialogGroupsFor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash")
	req.NoError(err)
	carol, err := store.CreateUser(ctx, "carol", "carol@example.com", "hash")
	req.NoError(err)

	// Given no dialog yet
	groups, err := store.DialogGroupsFor(ctx, alice.PK)
	req.NoError(err)
	req.Empty(groups)

	// When alice talks with bob and carol talks with alice
	_, err = store.CreateTextMessage(ctx, alice, bob, "hi bob", -1, nil)
	req.NoError(err)
	_, err = store.CreateTextMessage(ctx, carol, alice, "hi alice", -2, nil)
	req.NoError(err)

	// Then her group set holds both partners plus her own group
	groups, err = store.DialogGroupsFor(ctx, alice.PK)
	req.NoError(err)
	req.ElementsMatch([]string{alice.PK, bob.PK, carol.PK}, groups)

	// And bob only sees alice
	groups, err = store.DialogGroupsFor(ctx, bob.PK)
	req.NoError(err)
	req.ElementsMatch([]string{alice.PK, bob.PK}, groups)
}

func TestStore_RecentMessages_Newest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash")
	req.NoError(err)

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		_, err = store.CreateTextMessage(ctx, alice, bob, text, -1, nil)
		req.NoError(err)
	}

	messages, err := store.RecentMessages(ctx, alice.PK, bob.PK, 2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("three", messages[0].Text)
	req.Equal("two", messages[1].Text)

	// The argument order does not matter for a dialog
	messages, err = store.RecentMessages(ctx, bob.PK, alice.PK, 10)
	req.NoError(err)
	req.Len(messages, 3)
}

func TestStore_Files(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	file := &domain.UploadedFile{Name: "pic.png", Size: 12, ContentType: "image/png", UploadedBy: "pk-alice", URL: "/media/pic.png"}
	req.NoError(store.RegisterFile(ctx, file))
	req.NotEmpty(file.ID)
	req.False(file.CreatedAt.IsZero())

	found, err := store.FindFile(ctx, file.ID)
	req.NoError(err)
	req.Equal(file, found)

	_, err = store.FindFile(ctx, "ghost")
	req.ErrorIs(err, priverr.ErrNotFound)
}

func TestStore_CreateFileMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newTestStore(t)

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	req.NoError(err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", "hash")
	req.NoError(err)

	file := &domain.UploadedFile{Name: "pic.png"}
	req.NoError(store.RegisterFile(ctx, file))

	msg, err := store.CreateFileMessage(ctx, alice, bob, file)
	req.NoError(err)
	req.Equal(file.ID, msg.FileID)

	count, err := store.UnreadCount(ctx, alice.PK, bob.PK)
	req.NoError(err)
	req.Equal(1, count)
}
