package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"privchat/domain"
	priverr "privchat/errors"
)

// CreateUser registers a new account. The username index and the user
// record are written in one transaction; a taken username yields
// ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	user := &domain.User{
		PK:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(nameKey(username))
		if err == nil {
			return priverr.ErrUserExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(nameKey(username), []byte(user.PK)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.PK), user)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}
	s.log.Info(fmt.Sprintf("User %s created with pk %s", username, user.PK))
	return user, nil
}

func (s *Store) FindUser(ctx context.Context, pk string) (*domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(pk), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, priverr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByName(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(username))
		if err != nil {
			return err
		}
		var pk []byte
		pk, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(string(pk)), &user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, priverr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DialogGroupsFor returns the flattened group set of every dialog the
// user participates in, the user's own group included, mirroring how
// dialog pairs flatten. A user with no dialogs gets an empty set.
func (s *Store) DialogGroupsFor(ctx context.Context, pk string) ([]string, error) {
	prefix := []byte(dialogPrefix + pk + ":")
	var partners []string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			partners = append(partners, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(partners) > 0 {
		partners = append(partners, pk)
	}
	return partners, nil
}
