package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"trenchsocial/domain"
	apperrors "trenchsocial/errors"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t), slog.Default())

	created, err := repository.Create(domain.User{
		Name: "Alice", Username: "Alice ", Email: "alice@example.com", Verified: true,
	})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("alice", created.Username)

	fetched, err := repository.GetByUsername("alice")
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)

	byID, err := repository.GetByID(created.ID)
	req.NoError(err)
	req.Equal("alice", byID.Username)
}

func Test_Duplicate_Username_Conflicts(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t), slog.Default())

	_, err := repository.Create(domain.User{Name: "Alice", Username: "alice"})
	req.NoError(err)

	_, err = repository.Create(domain.User{Name: "Impostor", Username: "alice"})
	req.ErrorIs(err, apperrors.ErrUserAlreadyExists)
	req.ErrorIs(err, apperrors.ErrConflict)
}

func Test_Verified_Status_Snapshot(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t), slog.Default())

	_, err := repository.Create(domain.User{Name: "Alice", Username: "alice", Verified: true})
	req.NoError(err)
	_, err = repository.Create(domain.User{Name: "Bob", Username: "bob"})
	req.NoError(err)

	verified, err := repository.VerifiedStatus("alice")
	req.NoError(err)
	req.True(verified)

	verified, err = repository.VerifiedStatus("bob")
	req.NoError(err)
	req.False(verified)

	_, err = repository.VerifiedStatus("ghost")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func Test_Verify_Grants_The_Badge(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t), slog.Default())

	_, err := repository.Create(domain.User{Name: "Alice", Username: "alice"})
	req.NoError(err)

	verified, err := repository.VerifiedStatus("alice")
	req.NoError(err)
	req.False(verified, "users start unverified")

	user, err := repository.Verify("Alice ")
	req.NoError(err)
	req.True(user.Verified)

	verified, err = repository.VerifiedStatus("alice")
	req.NoError(err)
	req.True(verified)

	_, err = repository.Verify("ghost")
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func Test_List_Users(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t), slog.Default())

	for _, username := range []string{"alice", "bob", "clara"} {
		_, err := repository.Create(domain.User{Name: username, Username: username})
		req.NoError(err)
	}

	users, err := repository.List()
	req.NoError(err)
	req.Len(users, 3)
}
