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

// CreateTextMessage persists a text message and assigns its pid. The
// message record, the dialog index, the dialog membership for both
// directions and the unread entry are written atomically.
func (s *Store) CreateTextMessage(ctx context.Context, sender, recipient *domain.User,
	text string, randomID int64, extra map[string]any) (*domain.Message, error) {
	msg := &domain.Message{
		PID:       uuid.New(),
		Sender:    sender.PK,
		Recipient: recipient.PK,
		Text:      text,
		RandomID:  randomID,
		Extra:     extra,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persist(msg); err != nil {
		return nil, fmt.Errorf("persisting text message: %w", err)
	}
	return msg, nil
}

// CreateFileMessage persists a file message referencing an existing
// uploaded file.
func (s *Store) CreateFileMessage(ctx context.Context, sender, recipient *domain.User,
	file *domain.UploadedFile) (*domain.Message, error) {
	msg := &domain.Message{
		PID:       uuid.New(),
		Sender:    sender.PK,
		Recipient: recipient.PK,
		FileID:    file.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.persist(msg); err != nil {
		return nil, fmt.Errorf("persisting file message: %w", err)
	}
	return msg, nil
}

func (s *Store) persist(msg *domain.Message) error {
	pid := msg.PID.String()
	a, b := domain.DialogKey(msg.Sender, msg.Recipient)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, msgKey(pid), msg); err != nil {
			return err
		}
		if err := txn.Set(dlgMsgKey(a, b, msg.CreatedAt, pid), []byte(pid)); err != nil {
			return err
		}
		if err := txn.Set(dialogKey(msg.Sender, msg.Recipient), nil); err != nil {
			return err
		}
		if err := txn.Set(dialogKey(msg.Recipient, msg.Sender), nil); err != nil {
			return err
		}
		return txn.Set(unreadKey(msg.Recipient, msg.Sender, pid), nil)
	})
}

// FindMessage returns the recorded recipient and sender of a persisted
// message.
func (s *Store) FindMessage(ctx context.Context, pid string) (string, string, error) {
	var msg domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, msgKey(pid), &msg)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", "", priverr.ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return msg.Recipient, msg.Sender, nil
}

// MarkRead flips the read flag and removes the unread index entry in
// one transaction. The flag is monotonic: marking an already-read
// message is a no-op.
func (s *Store) MarkRead(ctx context.Context, pid string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var msg domain.Message
		err := getJSON(txn, msgKey(pid), &msg)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return priverr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if msg.Read {
			return nil
		}
		msg.Read = true
		if err := setJSON(txn, msgKey(pid), &msg); err != nil {
			return err
		}
		return txn.Delete(unreadKey(msg.Recipient, msg.Sender, pid))
	})
}

// UnreadCount tallies unread messages sent by from to to. The count is
// derived from the index on every call, never cached in memory.
func (s *Store) UnreadCount(ctx context.Context, from, to string) (int, error) {
	return s.countPrefix([]byte(unreadPrefix + to + ":" + from + ":"))
}

// RecentMessages returns up to limit messages of the dialog between a
// and b, newest first. Used by operator tooling, not by the core.
func (s *Store) RecentMessages(ctx context.Context, a, b string, limit int) ([]domain.Message, error) {
	x, y := domain.DialogKey(a, b)
	prefix := []byte(dlgMsgPrefix + x + ":" + y + ":")
	var pids []string
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest entry of the prefix, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(pids) == limit {
				break
			}
			err := it.Item().Value(func(raw []byte) error {
				pids = append(pids, string(raw))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(pids))
	err = s.db.View(func(txn *badger.Txn) error {
		for _, pid := range pids {
			var msg domain.Message
			if err := getJSON(txn, msgKey(pid), &msg); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}
