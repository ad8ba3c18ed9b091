package refreshrepofake

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/token/refresh"
	"github.com/pkg/errors"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens  map[string]*refresh.StoredRefreshToken
	userIDs map[string]map[string]struct{} // user ID to token IDs
	lock    sync.RWMutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens:  make(map[string]*refresh.StoredRefreshToken),
		userIDs: make(map[string]map[string]struct{}),
	}
}

func (tr *FakeRefreshTokenRepo) Upsert(_ context.Context, refreshToken *refresh.StoredRefreshToken) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	dup := *refreshToken
	tr.tokens[refreshToken.Token] = &dup
	userTokens, ok := tr.userIDs[refreshToken.UserID]
	if !ok {
		userTokens = make(map[string]struct{})
		tr.userIDs[refreshToken.UserID] = userTokens
	}
	userTokens[refreshToken.Token] = struct{}{}
	return nil
}

func (tr *FakeRefreshTokenRepo) Get(_ context.Context, token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errors.WithStack(apperrors.ErrNotFound)
	}
	dup := *rt
	return &dup, nil
}

func (tr *FakeRefreshTokenRepo) Take(_ context.Context, token string) (*refresh.StoredRefreshToken, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	rt, ok := tr.tokens[token]
	if !ok {
		return nil, errors.WithStack(apperrors.ErrNotFound)
	}
	tr.remove(rt)
	return rt, nil
}

func (tr *FakeRefreshTokenRepo) Delete(ctx context.Context, token string) error {
	_, err := tr.Take(ctx, token)
	return err
}

func (tr *FakeRefreshTokenRepo) DeleteByUserID(_ context.Context, userID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	for token := range tr.userIDs[userID] {
		delete(tr.tokens, token)
	}
	delete(tr.userIDs, userID)
	return nil
}

// Len reports how many tokens are currently valid.
func (tr *FakeRefreshTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}

func (tr *FakeRefreshTokenRepo) remove(rt *refresh.StoredRefreshToken) {
	delete(tr.tokens, rt.Token)
	if userTokens, ok := tr.userIDs[rt.UserID]; ok {
		delete(userTokens, rt.Token)
		if len(userTokens) == 0 {
			delete(tr.userIDs, rt.UserID)
		}
	}
}
