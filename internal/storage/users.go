package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
)

type userRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Roles        string `db:"roles"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) toCore() core.User {
	return core.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Roles:        splitRoles(r.Roles),
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
}

func (s *Store) FindByUsername(ctx context.Context, username string) (core.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT id, username, password_hash, roles, created_at FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrUserNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return row.toCore(), nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{core.RoleUser}
	}

	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.rebind(`INSERT INTO users (username, password_hash, roles, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		u.Username, u.PasswordHash, strings.Join(u.Roles, ","), u.CreatedAt.UnixNano(),
	).Scan(&id)
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("user %q: %w", u.Username, core.ErrUsernameTaken)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}

	u.ID = id
	slog.InfoContext(ctx, "User created", "id", id, "username", u.Username)
	return u, nil
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
