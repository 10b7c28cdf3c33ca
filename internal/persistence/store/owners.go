package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ownerNameRE = regexp.MustCompile(`^[a-z0-9_][a-z0-9_.-]{1,31}$`)

const minPasswordLen = 8

// Register creates an owner. Names are case-insensitive.
func (s *SQLite) Register(ctx context.Context, name, password string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !ownerNameRE.MatchString(name) {
		return fmt.Errorf("invalid owner name %q", name)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO owners(name,password_hash,created_at) VALUES(?,?,?)`,
		name, string(hash), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("owner %q: %w", name, ErrExists)
	}
	return nil
}

// Authenticate returns the canonical owner name when password matches.
// Unknown owners and wrong passwords both yield ErrAuth.
func (s *SQLite) Authenticate(ctx context.Context, name, password string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM owners WHERE name=?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAuth
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrAuth
	}
	return name, nil
}
