package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// resolveCaller loads the user behind the request identity. A valid identity
// whose user no longer exists is reported as core.ErrUserNotFound.
func resolveCaller(ctx context.Context, users ports.UserDirectory) (core.User, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return core.User{}, core.ErrUnauthenticated
	}
	user, err := users.FindByUsername(ctx, id.Username)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("resolve caller %q: %w", id.Username, core.ErrUserNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("resolve caller %q: %w", id.Username, err)
	}
	return user, nil
}
