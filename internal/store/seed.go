package store

import (
	"context"
	"fmt"

	"ctf-arena/internal/ctf"
)

// EnsureAdmin creates the bootstrap admin account unless an admin already
// exists. It reports whether an account was created.
func EnsureAdmin(ctx context.Context, s Store, email, passHash string) (bool, error) {
	ok, err := s.HasAdmin(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for admin: %w", err)
	}
	if ok {
		return false, nil
	}

	name := "Administrator"
	playerID := NewPlayerID()
	u := &ctf.User{
		Email:       email,
		DisplayName: &name,
		Role:        ctf.RoleAdmin,
		PlayerID:    &playerID,
	}
	if err := s.CreateUser(ctx, u, passHash); err != nil {
		return false, fmt.Errorf("creating admin: %w", err)
	}
	if err := s.LogAction(ctx, nil, "seed_admin", email); err != nil {
		return true, fmt.Errorf("logging admin seed: %w", err)
	}
	return true, nil
}
