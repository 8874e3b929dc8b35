//go:generate go run go.uber.org/mock/mockgen -source=../contract/contract.go -destination=../mocks/mock_contract.go -package=mocks
// Package repositories implements the durable store over BadgerDB.
// One Store serves users, dialogs, messages, uploaded files and the
// per-direction unread index; every create/update runs in a single
// Badger transaction so derived counts never observe partial writes.
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. The unread index is maintained in the same transaction
// as message creation and read flips, making UnreadCount a prefix
// count.
//
//	user:{pk}                         user record
//	uname:{username}                  username -> pk
//	msg:{pid}                         message record
//	dlgmsg:{a}:{b}:{ts_padded}:{pid}  chronological dialog index (a < b)
//	dialog:{pk}:{partner}             dialog membership, both directions
//	unread:{to}:{from}:{pid}          unread messages from -> to
//	file:{id}                         uploaded file record
const (
	userPrefix   = "user:"
	namePrefix   = "uname:"
	msgPrefix    = "msg:"
	dlgMsgPrefix = "dlgmsg:"
	dialogPrefix = "dialog:"
	unreadPrefix = "unread:"
	filePrefix   = "file:"
)

type Store struct {
	db  *badger.DB
	log *slog.Logger
}

func NewStore(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func userKey(pk string) []byte       { return []byte(userPrefix + pk) }
func nameKey(username string) []byte { return []byte(namePrefix + username) }
func msgKey(pid string) []byte       { return []byte(msgPrefix + pid) }
func fileKey(id string) []byte       { return []byte(filePrefix + id) }

func dialogKey(pk, partner string) []byte {
	return []byte(dialogPrefix + pk + ":" + partner)
}
func unreadKey(to, from, pid string) []byte {
	return []byte(unreadPrefix + to + ":" + from + ":" + pid)
}

// dlgMsgKey orders messages of one dialog chronologically: the sorted
// pair keeps both directions under one prefix, the 19-digit padded
// timestamp makes lexicographic order chronological, and the pid
// disambiguates same-nanosecond messages.
func dlgMsgKey(a, b string, at time.Time, pid string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%019d:%s", dlgMsgPrefix, a, b, at.UnixNano(), pid))
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(raw []byte) error {
		return json.Unmarshal(raw, v)
	})
}

// countPrefix counts keys under prefix without fetching values.
func (s *Store) countPrefix(prefix []byte) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
