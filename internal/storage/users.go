// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered account.
type User struct {
	Email          string
	Name           string
	Role           string
	EducationLevel string
	UsagePurpose   string
	CreatedAt      time.Time
}

// CreateUser inserts u. If a user with the same email exists, the stored
// record is returned with created=false and nothing is changed.
func (s *Store) CreateUser(ctx context.Context, u User) (User, bool, error) {
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" {
		return User{}, false, fmt.Errorf("email is required")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (email, name, role, education_level, usage_purpose, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			u.Email, u.Name, u.Role, u.EducationLevel, u.UsagePurpose, toUnix(u.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		n, _ := res.RowsAffected()
		created = n > 0
		return nil
	})
	if err != nil {
		return User{}, false, err
	}
	if created {
		return u, true, nil
	}
	existing, err := s.GetUser(ctx, u.Email)
	return existing, false, err
}

// GetUser returns the user with email.
func (s *Store) GetUser(ctx context.Context, email string) (User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT email, name, role, education_level, usage_purpose, created_at
		 FROM users WHERE email = ?`, email).
		Scan(&u.Email, &u.Name, &u.Role, &u.EducationLevel, &u.UsagePurpose, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to load user: %w", err)
	}
	u.CreatedAt = fromUnix(created)
	return u, nil
}

// UserExists reports whether a user with email is registered.
func (s *Store) UserExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetUser(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ensureUser creates a bare user row for email if none exists. Generating
// a guide for an unknown email registers it implicitly.
func ensureUser(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (email, created_at) VALUES (?, ?)`,
		email, toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}
