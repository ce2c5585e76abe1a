//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"dm-chat/domain"
	"dm-chat/errors"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	UpsertUser(user domain.User) error
	GetUser(id domain.UserID) (domain.User, error)
	ListUsers() ([]domain.User, error)
	SetOnline(id domain.UserID, online bool) error
	ResetPresence() (int, error)
}

// UserRepository is the local directory of users known to the account service.
// Besides the display name it keeps the redundant online flag.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// UpsertUser creates or renames a user. An existing online flag is preserved.
func (u *UserRepository) UpsertUser(user domain.User) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		existing, err := readUser(txn, user.ID)
		switch {
		case err == nil:
			user.Online = existing.Online
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		bytes, err := encodeUser(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return nil
}

func (u *UserRepository) GetUser(id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = readUser(txn, id)
		return err
	})
	switch {
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return domain.User{}, fmt.Errorf("%w: %s", errors.ErrUserNotFound, id)
	case err != nil:
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return user, nil
}

// ListUsers returns every known user ordered by id, as keys are.
func (u *UserRepository) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
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
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return users, nil
}

// SetOnline persists the presence flag. Users missing from the directory are
// skipped: their presence is still tracked in memory.
func (u *UserRepository) SetOnline(id domain.UserID, online bool) error {
	err := u.db.Update(func(txn *badger.Txn) error {
		user, err := readUser(txn, id)
		if err != nil {
			return err
		}
		if user.Online == online {
			return nil
		}
		user.Online = online
		bytes, err := encodeUser(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), bytes)
	})
	switch {
	case stderrors.Is(err, badger.ErrKeyNotFound):
		u.log.Debug("Presence not persisted, unknown user", "user_id", id)
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return nil
}

// ResetPresence clears every persisted online flag. Called at boot, when no
// session can be live, so that a crash never leaves a user online forever.
func (u *UserRepository) ResetPresence() (int, error) {
	users, err := u.ListUsers()
	if err != nil {
		return 0, err
	}
	var reset int
	for _, user := range users {
		if !user.Online {
			continue
		}
		if err = u.SetOnline(user.ID, false); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

func readUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}
