package repositories

import (
	"dm-chat/domain"
	"dm-chat/errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Upsert_Keeps_Online_Flag(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t), slog.Default())

	req.NoError(repository.UpsertUser(domain.User{ID: "5", Name: "Eve"}))
	req.NoError(repository.SetOnline("5", true))

	// When the account service renames the user
	req.NoError(repository.UpsertUser(domain.User{ID: "5", Name: "Eve Online"}))

	user, err := repository.GetUser("5")
	req.NoError(err)
	req.Equal("Eve Online", user.Name)
	req.True(user.Online)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t), slog.Default())

	_, err := repository.GetUser("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Set_Online_Unknown_User_Is_Skipped(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t), slog.Default())

	req.NoError(repository.SetOnline("ghost", true))
	users, err := repository.ListUsers()
	req.NoError(err)
	req.Empty(users)
}

func Test_List_Users_Ordered_And_Reset_Presence(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t), slog.Default())

	for _, u := range []domain.User{{ID: "c", Name: "Carol"}, {ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}} {
		req.NoError(repository.UpsertUser(u))
	}
	req.NoError(repository.SetOnline("a", true))
	req.NoError(repository.SetOnline("c", true))

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Equal([]domain.User{
		{ID: "a", Name: "Alice", Online: true},
		{ID: "b", Name: "Bob"},
		{ID: "c", Name: "Carol", Online: true},
	}, users)

	// When the process boots again
	reset, err := repository.ResetPresence()
	req.NoError(err)
	req.Equal(2, reset)

	users, err = repository.ListUsers()
	req.NoError(err)
	for _, u := range users {
		req.False(u.Online)
	}
}
