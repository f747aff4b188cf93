//go:generate go run go.uber.org/mock/mockgen -source=private.go -destination=../mocks/mock_private_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

const (
	pairPrefix = "dm:"
	userPrefix = "dmu:"
)

type IPrivateMessageRepository interface {
	Append(message domain.PrivateMessage) (uuid.UUID, error)
	Between(userA, userB string) ([]domain.PrivateMessage, error)
	ForUser(userID string) ([]domain.PrivateMessage, error)
}

// PrivateMessageRepository persists direct messages in BadgerDB.
//
// The primary record lives under the unordered participant pair:
//
//	dm:{pair}:{timestamp_padded}:{uuid}
//
// so a prefix scan over one pair yields the whole thread in sentAt order,
// regardless of direction. Two index keys per message,
//
//	dmu:{userID}:{timestamp_padded}:{uuid} -> primary key
//
// let the conversation indexer fetch everything a single user ever sent or
// received without scanning other people's threads.
type PrivateMessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPrivateMessageRepository(db *badger.DB, log *slog.Logger) *PrivateMessageRepository {
	return &PrivateMessageRepository{db: db, log: log}
}

// PairKey normalizes the two participant ids into the unordered pair used as
// the conversation identity. A→B and B→A map to the same key.
func PairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

func primaryKey(message domain.PrivateMessage) []byte {
	return fmt.Appendf(nil, "%s%s:%019d:%s",
		pairPrefix,
		PairKey(message.SenderID, message.ReceiverID),
		message.SentAt.UnixNano(),
		message.ID,
	)
}

func userIndexKey(userID string, message domain.PrivateMessage) []byte {
	return fmt.Appendf(nil, "%s%s:%019d:%s", userPrefix, userID, message.SentAt.UnixNano(), message.ID)
}

// Append assigns an id if the message has none and persists the record plus
// both participant indexes in one transaction. Private messages are never
// deleted or edited afterwards.
func (r *PrivateMessageRepository) Append(message domain.PrivateMessage) (uuid.UUID, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	bytes, err := json.Marshal(message)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal private message: %w", err)
	}
	key := primaryKey(message)
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		if err := txn.Set(userIndexKey(message.SenderID, message), key); err != nil {
			return err
		}
		// Same key twice when sender == receiver; the second Set is a no-op.
		return txn.Set(userIndexKey(message.ReceiverID, message), key)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: append private: %v", apperrors.ErrStoreUnavailable, err)
	}
	return message.ID, nil
}

// Between returns every message exchanged between the two users in either
// direction, ascending by sentAt.
func (r *PrivateMessageRepository) Between(userA, userB string) ([]domain.PrivateMessage, error) {
	prefix := []byte(pairPrefix + PairKey(userA, userB) + ":")
	var messages []domain.PrivateMessage
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var message domain.PrivateMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: private between: %v", apperrors.ErrStoreUnavailable, err)
	}
	return messages, nil
}

// ForUser returns every message the user sent or received, resolving index
// entries to their primary records inside a single read transaction.
func (r *PrivateMessageRepository) ForUser(userID string) ([]domain.PrivateMessage, error) {
	prefix := []byte(userPrefix + userID + ":")
	var messages []domain.PrivateMessage
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var target []byte
			err := it.Item().Value(func(value []byte) error {
				target = append([]byte(nil), value...)
				return nil
			})
			if err != nil {
				return err
			}
			item, err := txn.Get(target)
			if err != nil {
				// A dangling index entry means the write transaction was
				// violated somewhere; surface it rather than skip silently.
				return fmt.Errorf("dangling index %q: %w", strings.TrimPrefix(string(target), pairPrefix), err)
			}
			err = item.Value(func(value []byte) error {
				var message domain.PrivateMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: private for user: %v", apperrors.ErrStoreUnavailable, err)
	}
	return messages, nil
}
