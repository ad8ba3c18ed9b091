package fakeuserrepo

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-daybook/users"
)

var (
	_ users.UserRepo       = (*FakeUserRepo)(nil)
	_ users.ResetTokenRepo = (*FakeUserRepo)(nil)
)

type FakeUserRepo struct {
	users       map[string]*users.User
	emailIds    map[string]string // email to user id
	resetTokens map[string]*users.ResetToken
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		emailIds:    make(map[string]string),
		resetTokens: make(map[string]*users.ResetToken),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.emailIds[email]; !ok {
		return nil, errors.New("not found")
	}
	return ur.users[ur.emailIds[email]], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) SetBlocked(email string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return errors.New("not found")
	}
	ur.users[id].Blocked = blocked
	return nil
}

func (ur *FakeUserRepo) SetLastLogin(email string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return errors.New("not found")
	}
	ur.users[id].LastLogin = at
	return nil
}

func (ur *FakeUserRepo) PutResetToken(t *users.ResetToken) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.resetTokens[t.Token] = t
	return nil
}

func (ur *FakeUserRepo) TakeResetToken(token string) (*users.ResetToken, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	t, ok := ur.resetTokens[token]
	if !ok {
		return nil, errors.New("not found")
	}
	delete(ur.resetTokens, token)
	return t, nil
}
