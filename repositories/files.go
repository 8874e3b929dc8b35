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

// RegisterFile records an uploaded file so file messages can reference
// it. Generates the id when the caller leaves it empty.
func (s *Store) RegisterFile(ctx context.Context, file *domain.UploadedFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, fileKey(file.ID), file)
	})
	if err != nil {
		return fmt.Errorf("registering file %s: %w", file.ID, err)
	}
	return nil
}

func (s *Store) FindFile(ctx context.Context, id string) (*domain.UploadedFile, error) {
	var file domain.UploadedFile
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, fileKey(id), &file)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, priverr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}
