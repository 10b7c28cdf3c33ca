package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pixelcircuits.dev/internal/persistence/document"
	"pixelcircuits.dev/internal/sim/ids"
)

// Document is a stored circuit together with its ownership metadata.
type Document struct {
	ID        string             `json:"id"`
	Owner     string             `json:"owner"`
	Info      document.InfoV1    `json:"info"`
	Body      document.CircuitV1 `json:"body"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Summary is a Document without its body.
type Summary struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	Info      document.InfoV1 `json:"info"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const maxIDAttempts = 8

// CreateDocument stores body under a fresh public id owned by owner.
func (s *SQLite) CreateDocument(ctx context.Context, owner string, body document.CircuitV1) (Document, error) {
	kind, ok := ids.ParseDocumentKind(body.Info.Kind)
	if !ok {
		kind = ids.KindCircuit
	}
	body.Info.Kind = kind.String()
	body.Info.Revision = 1
	if body.Version == 0 {
		body.Version = document.Version
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Document{}, err
	}
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339Nano)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := ids.NewDocumentID(kind)
		if err != nil {
			return Document{}, err
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents(id,owner,kind,title,description,private,revision,forked_from,body_json,created_at,updated_at)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
			id, owner, body.Info.Kind, body.Info.Title, body.Info.Description, boolInt(body.Info.Private),
			body.Info.Revision, body.Info.ForkedFrom, string(raw), ts, ts)
		if err != nil {
			return Document{}, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return Document{ID: id, Owner: owner, Info: body.Info, Body: body, CreatedAt: now, UpdatedAt: now}, nil
		}
	}
	return Document{}, fmt.Errorf("allocate document id: %w", ErrExists)
}

// GetDocument returns the document when it is public or viewer owns it.
func (s *SQLite) GetDocument(ctx context.Context, viewer, id string) (Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if d.Info.Private && d.Owner != viewer {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrForbidden)
	}
	return d, nil
}

// UpdateDocument replaces the body of an owned document and bumps its
// revision. The stored kind and fork origin are kept.
func (s *SQLite) UpdateDocument(ctx context.Context, owner, id string, body document.CircuitV1) (Document, error) {
	cur, err := s.load(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if cur.Owner != owner {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrForbidden)
	}
	body.Info.Kind = cur.Info.Kind
	body.Info.ForkedFrom = cur.Info.ForkedFrom
	body.Info.Revision = cur.Info.Revision + 1
	if body.Version == 0 {
		body.Version = document.Version
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Document{}, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET title=?, description=?, private=?, revision=?, body_json=?, updated_at=?
		 WHERE id=? AND owner=? AND revision=?`,
		body.Info.Title, body.Info.Description, boolInt(body.Info.Private), body.Info.Revision,
		string(raw), now.Format(time.RFC3339Nano), id, owner, cur.Info.Revision)
	if err != nil {
		return Document{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Document{}, fmt.Errorf("document %s changed concurrently: %w", id, ErrExists)
	}
	cur.Info = body.Info
	cur.Body = body
	cur.UpdatedAt = now
	return cur, nil
}

func (s *SQLite) DeleteDocument(ctx context.Context, owner, id string) error {
	cur, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if cur.Owner != owner {
		return fmt.Errorf("document %s: %w", id, ErrForbidden)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=? AND owner=?`, id, owner)
	return err
}

// ForkDocument copies a readable document into owner's collection.
func (s *SQLite) ForkDocument(ctx context.Context, owner, id string) (Document, error) {
	src, err := s.GetDocument(ctx, owner, id)
	if err != nil {
		return Document{}, err
	}
	body := src.Body
	body.Info.ForkedFrom = src.ID
	body.Info.Private = false
	return s.CreateDocument(ctx, owner, body)
}

// ListDocuments lists owner's documents, newest first. Private documents
// are only included when viewer is owner.
func (s *SQLite) ListDocuments(ctx context.Context, viewer, owner string) ([]Summary, error) {
	q := `SELECT id, owner, kind, title, description, private, revision, forked_from, updated_at
		FROM documents WHERE owner=?`
	if viewer != owner {
		q += ` AND private=0`
	}
	q += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sm      Summary
			private int
			updated string
		)
		if err := rows.Scan(&sm.ID, &sm.Owner, &sm.Info.Kind, &sm.Info.Title, &sm.Info.Description,
			&private, &sm.Info.Revision, &sm.Info.ForkedFrom, &updated); err != nil {
			return nil, err
		}
		sm.Info.Private = private != 0
		sm.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *SQLite) load(ctx context.Context, id string) (Document, error) {
	if _, ok := ids.ParseDocumentID(id); !ok {
		return Document{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	var (
		d                Document
		raw              string
		private          int
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, kind, title, description, private, revision, forked_from, body_json, created_at, updated_at
		 FROM documents WHERE id=?`, id).
		Scan(&d.ID, &d.Owner, &d.Info.Kind, &d.Info.Title, &d.Info.Description, &private,
			&d.Info.Revision, &d.Info.ForkedFrom, &raw, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	d.Info.Private = private != 0
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&d.Body); err != nil {
		return Document{}, fmt.Errorf("document %s: corrupt body: %w", id, err)
	}
	d.Body.Info = d.Info
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return d, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
