package server

import (
	"fmt"

	"github.com/jrsteele09/go-daybook/users"
	"github.com/rs/zerolog/log"
)

// SeedUser ensures an account exists for email. An existing account is left
// untouched, so it is safe to call on every start.
func SeedUser(repo users.UserRepo, email, username, password string) (*users.User, error) {
	if existing, err := repo.GetByEmail(users.NormalizeEmail(email)); err == nil {
		return existing, nil
	}

	user, err := users.NewUser(email, username, password)
	if err != nil {
		return nil, fmt.Errorf("[SeedUser] %w", err)
	}
	user.Verified = true
	if err := repo.Upsert(user); err != nil {
		return nil, fmt.Errorf("[SeedUser] failed to store user: %w", err)
	}
	log.Info().Str("email", user.Email).Msg("seeded user")
	return user, nil
}
