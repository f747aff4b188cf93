//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

const (
	usernameKeyPrefix = "user:"
	userIDKeyPrefix   = "userid:"
)

type IUserRepository interface {
	Create(user domain.User) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
	GetByID(id string) (domain.User, error)
	List() ([]domain.User, error)
	Verify(username string) (domain.User, error)
	VerifiedStatus(handle string) (bool, error)
}

// UserRepository stores user records under their lowercased username, with a
// secondary id index for the private-message endpoints that address users by
// id.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// Create persists the user and returns the stored record with its assigned
// id. Usernames are unique; a duplicate fails with ErrUserAlreadyExists.
func (r *UserRepository) Create(user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	bytes, err := json.Marshal(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal user: %w", err)
	}
	key := []byte(usernameKeyPrefix + user.Username)
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return apperrors.ErrUserAlreadyExists
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set([]byte(userIDKeyPrefix+user.ID), []byte(user.Username))
	})
	if err != nil {
		if stderrors.Is(err, apperrors.ErrUserAlreadyExists) {
			return domain.User{}, fmt.Errorf("%w: %w", apperrors.ErrConflict, err)
		}
		return domain.User{}, fmt.Errorf("%w: create user: %v", apperrors.ErrStoreUnavailable, err)
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(username string) (domain.User, error) {
	var user domain.User
	username = strings.ToLower(strings.TrimSpace(username))
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernameKeyPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: get user: %v", apperrors.ErrStoreUnavailable, err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(id string) (domain.User, error) {
	var username string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userIDKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			username = string(value)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: get user by id: %v", apperrors.ErrStoreUnavailable, err)
	}
	return r.GetByUsername(username)
}

func (r *UserRepository) List() ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(usernameKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var user domain.User
				if err := json.Unmarshal(value, &user); err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", apperrors.ErrStoreUnavailable, err)
	}
	return users, nil
}

// Verify grants the user the verified badge. Verification is one-way through
// the API; revoking it is a manual store operation.
func (r *UserRepository) Verify(username string) (domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	key := []byte(usernameKeyPrefix + username)
	var user domain.User
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		if err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		}); err != nil {
			return err
		}
		user.Verified = true
		bytes, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: verify user: %v", apperrors.ErrStoreUnavailable, err)
	}
	return user, nil
}

// VerifiedStatus reports whether the handle currently belongs to a verified
// user. The hub calls this on every publish to snapshot the flag onto the
// message.
func (r *UserRepository) VerifiedStatus(handle string) (bool, error) {
	user, err := r.GetByUsername(handle)
	if err != nil {
		return false, err
	}
	return user.Verified, nil
}
