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

// =============================================================================
// STORED GUIDE TYPES
// =============================================================================

// Guide is a persisted study guide.
//
// Content is only set on guides imported as a single title/content document.
// Read paths upgrade those to a one-turn conversation, see Upgrade.
type Guide struct {
	ID         string
	OwnerEmail string
	Title      string
	Content    string
	Turns      []Turn
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Turn is a persisted prompt/response pair.
type Turn struct {
	UserPrompt string
	Response   string
	CreatedAt  time.Time
}

// Upgrade returns g with a legacy title/content body converted into a
// one-turn conversation: the title becomes the prompt, the content the
// response.
func (g Guide) Upgrade() Guide {
	if len(g.Turns) > 0 || g.Content == "" {
		return g
	}
	g.Turns = []Turn{{UserPrompt: g.Title, Response: g.Content, CreatedAt: g.CreatedAt}}
	g.Content = ""
	return g
}

// =============================================================================
// WRITES
// =============================================================================

// CreateGuide stores a new guide for owner with the given turns and returns
// it. The owner is registered if unknown.
func (s *Store) CreateGuide(ctx context.Context, owner, title string, turns []Turn) (Guide, error) {
	return s.insertGuide(ctx, owner, title, "", turns)
}

// SaveGuide imports a finished guide. Unlike CreateGuide it requires the
// owner to be registered already.
func (s *Store) SaveGuide(ctx context.Context, owner, title, content string, turns []Turn) (Guide, error) {
	ok, err := s.UserExists(ctx, owner)
	if err != nil {
		return Guide{}, err
	}
	if !ok {
		return Guide{}, ErrUserNotFound
	}
	return s.insertGuide(ctx, owner, title, content, turns)
}

func (s *Store) insertGuide(ctx context.Context, owner, title, content string, turns []Turn) (Guide, error) {
	now := time.Now().UTC()
	g := Guide{
		ID:         newGuideID(),
		OwnerEmail: owner,
		Title:      title,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
		Turns:      make([]Turn, len(turns)),
	}
	for i, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		g.Turns[i] = t
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, owner); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO guides (id, owner_email, title, content, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, owner, title, content, toUnix(now), toUnix(now))
		if err != nil {
			return fmt.Errorf("failed to insert guide: %w", err)
		}
		for i, t := range g.Turns {
			if err := insertTurn(ctx, tx, g.ID, i, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Guide{}, err
	}
	return g, nil
}

// AppendTurn adds a turn to the end of a guide's conversation. A legacy
// content body is first materialized as turn zero so it is not lost.
func (s *Store) AppendTurn(ctx context.Context, owner, id string, t Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var title, content string
		var created int64
		err := tx.QueryRowContext(ctx,
			`SELECT title, content, created_at FROM guides WHERE id = ? AND owner_email = ?`,
			id, owner).Scan(&title, &content, &created)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGuideNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load guide: %w", err)
		}

		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM turns WHERE guide_id = ?`, id).Scan(&next); err != nil {
			return fmt.Errorf("failed to count turns: %w", err)
		}

		if next == 0 && content != "" {
			legacy := Turn{UserPrompt: title, Response: content, CreatedAt: fromUnix(created)}
			if err := insertTurn(ctx, tx, id, 0, legacy); err != nil {
				return err
			}
			next = 1
		}
		if err := insertTurn(ctx, tx, id, next, t); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE guides SET content = '', updated_at = ? WHERE id = ?`,
			toUnix(t.CreatedAt), id)
		if err != nil {
			return fmt.Errorf("failed to touch guide: %w", err)
		}
		return nil
	})
}

// RenameGuide sets a guide's title.
func (s *Store) RenameGuide(ctx context.Context, owner, id, title string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE guides SET title = ?, updated_at = ? WHERE id = ? AND owner_email = ?`,
			title, toUnix(time.Now()), id, owner)
		if err != nil {
			return fmt.Errorf("failed to rename guide: %w", err)
		}
		return requireRow(res)
	})
}

// DeleteGuide removes a guide and its turns.
func (s *Store) DeleteGuide(ctx context.Context, owner, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM guides WHERE id = ? AND owner_email = ?`, id, owner)
		if err != nil {
			return fmt.Errorf("failed to delete guide: %w", err)
		}
		return requireRow(res)
	})
}

func insertTurn(ctx context.Context, tx *sql.Tx, guideID string, pos int, t Turn) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO turns (guide_id, position, user_prompt, response, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		guideID, pos, t.UserPrompt, t.Response, toUnix(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	if n == 0 {
		return ErrGuideNotFound
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// ListGuides returns every guide of owner with its conversation, in
// creation order. Legacy guides are upgraded. Fails with ErrUserNotFound
// when owner is not registered.
func (s *Store) ListGuides(ctx context.Context, owner string) ([]Guide, error) {
	if _, err := s.GetUser(ctx, owner); err != nil {
		return nil, err
	}
	return s.queryGuides(ctx, `WHERE g.owner_email = ?`, owner)
}

// GetGuide returns one guide of owner.
func (s *Store) GetGuide(ctx context.Context, owner, id string) (Guide, error) {
	guides, err := s.queryGuides(ctx, `WHERE g.owner_email = ? AND g.id = ?`, owner, id)
	if err != nil {
		return Guide{}, err
	}
	if len(guides) == 0 {
		return Guide{}, ErrGuideNotFound
	}
	return guides[0], nil
}

// SearchGuides returns guides of owner whose title or any turn contains
// query, case-insensitively.
func (s *Store) SearchGuides(ctx context.Context, owner, query string) ([]Guide, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListGuides(ctx, owner)
	}
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.queryGuides(ctx,
		`WHERE g.owner_email = ? AND (
			lower(g.title) LIKE ? ESCAPE '\' OR lower(g.content) LIKE ? ESCAPE '\' OR
			EXISTS (SELECT 1 FROM turns s WHERE s.guide_id = g.id AND
				(lower(s.user_prompt) LIKE ? ESCAPE '\' OR lower(s.response) LIKE ? ESCAPE '\')))`,
		owner, like, like, like, like)
}

// queryGuides loads guides matching where and attaches their turns.
func (s *Store) queryGuides(ctx context.Context, where string, args ...any) ([]Guide, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.owner_email, g.title, g.content, g.created_at, g.updated_at
		 FROM guides g `+where+` ORDER BY g.created_at ASC, g.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query guides: %w", err)
	}

	var guides []Guide
	index := make(map[string]int)
	for rows.Next() {
		var g Guide
		var created, updated int64
		if err := rows.Scan(&g.ID, &g.OwnerEmail, &g.Title, &g.Content, &created, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan guide: %w", err)
		}
		g.CreatedAt = fromUnix(created)
		g.UpdatedAt = fromUnix(updated)
		index[g.ID] = len(guides)
		guides = append(guides, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guides: %w", err)
	}
	if len(guides) == 0 {
		return []Guide{}, nil
	}

	// One connection: the guide cursor must be closed before this query.
	turnRows, err := s.db.QueryContext(ctx,
		`SELECT t.guide_id, t.user_prompt, t.response, t.created_at
		 FROM turns t JOIN guides g ON g.id = t.guide_id `+where+`
		 ORDER BY t.guide_id, t.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer turnRows.Close()
	for turnRows.Next() {
		var id string
		var t Turn
		var created int64
		if err := turnRows.Scan(&id, &t.UserPrompt, &t.Response, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.CreatedAt = fromUnix(created)
		if i, ok := index[id]; ok {
			guides[i].Turns = append(guides[i].Turns, t)
		}
	}
	if err := turnRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	for i := range guides {
		guides[i] = guides[i].Upgrade()
	}
	return guides, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
