//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

const chatPrefix = "chat:"

// maxPaddedTimestamp is lexicographically greater than any 19-digit
// zero-padded UnixNano value, so seeking to it in a reverse iterator lands
// on the newest stored message.
const maxPaddedTimestamp = "9999999999999999999"

type IChatRepository interface {
	AppendChat(message domain.ChatMessage) (uuid.UUID, error)
	RecentChat(limit int) ([]domain.ChatMessage, error)
	EvictOverCap() (int, error)
	Count() (int, error)
}

// ChatRepository persists the shared-room chat log in BadgerDB and owns the
// cap-eviction policy: the log never retains more than `cap` messages, and
// the oldest entries go first.
type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
	cap int
	seq atomic.Uint64
}

func NewChatRepository(db *badger.DB, log *slog.Logger, cap int) *ChatRepository {
	return &ChatRepository{db: db, log: log, cap: cap}
}

// chatKey formats the storage key as "chat:{timestamp_padded}:{seq_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Break same-nanosecond ties by insertion order via a process-local
//     sequence, so eviction order matches append order.
func (r *ChatRepository) chatKey(message domain.ChatMessage, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%019d:%012d", chatPrefix, message.PublishedAt.UnixNano(), seq)
}

// AppendChat assigns an id if the message has none, persists the message,
// then enforces the cap. An error means the message was not stored; eviction
// failure after a successful append is logged only, since the next append
// retries it.
func (r *ChatRepository) AppendChat(message domain.ChatMessage) (uuid.UUID, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	bytes, err := json.Marshal(message)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal chat message: %w", err)
	}
	key := r.chatKey(message, r.seq.Add(1))
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, bytes)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: append chat: %v", apperrors.ErrStoreUnavailable, err)
	}
	if _, err = r.EvictOverCap(); err != nil {
		r.log.Warn("Cap eviction failed after append", "error", err)
	}
	return message.ID, nil
}

// RecentChat returns at most limit messages, oldest first. It scans backwards
// from the newest key so the result reflects the tail of the log, then
// reverses into delivery order for backlog replay.
func (r *ChatRepository) RecentChat(limit int) ([]domain.ChatMessage, error) {
	var rawMessages [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(chatPrefix)
		seekKey := append([]byte(chatPrefix), []byte(maxPaddedTimestamp)...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(rawMessages) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recent chat: %v", apperrors.ErrStoreUnavailable, err)
	}

	// rawMessages is newest-first; decode into oldest-first.
	messages := make([]domain.ChatMessage, 0, len(rawMessages))
	for i := len(rawMessages) - 1; i >= 0; i-- {
		var message domain.ChatMessage
		if err = json.Unmarshal(rawMessages[i], &message); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// EvictOverCap deletes the oldest messages until at most cap remain and
// returns how many were removed. The keys to delete are collected in a read
// snapshot first, so a message appended after the decision point can never
// be evicted by this call.
func (r *ChatRepository) EvictOverCap() (int, error) {
	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(chatPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: eviction scan: %v", apperrors.ErrStoreUnavailable, err)
	}

	excess := len(keys) - r.cap
	if excess <= 0 {
		return 0, nil
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys[:excess] {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: eviction delete: %v", apperrors.ErrStoreUnavailable, err)
	}
	r.log.Debug("Evicted chat messages over cap", "evicted", excess, "cap", r.cap)
	return excess, nil
}

// Count reports how many chat messages are currently stored.
func (r *ChatRepository) Count() (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(chatPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: chat count: %v", apperrors.ErrStoreUnavailable, err)
	}
	return count, nil
}
