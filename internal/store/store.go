// Package store persists style guide documents and user subscription tiers
// in SQLite. The engine itself never calls this package; handlers fetch a
// document, run engine operations on the value, and save the result here.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brandforge/guidegen/internal/catalog"
)

// Document is one persisted style guide.
type Document struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Store wraps the SQLite connection.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path and ensures the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			tier TEXT NOT NULL DEFAULT 'starter'
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// CreateDocument inserts a new document and returns it.
func (s *Store) CreateDocument(ctx context.Context, userID, title, content string) (Document, error) {
	now := time.Now().UTC()
	doc := Document{
		ID:        newID(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO documents (id, user_id, title, content, created_at, updated_at)
		 VALUES (:id, :user_id, :title, :content, :created_at, :updated_at)`, doc)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document by id, or nil when it does not exist.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.db.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// SaveContent replaces a document's content after a successful merge or
// replace.
func (s *Store) SaveContent(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return nil
}

// ListDocuments returns all documents owned by a user, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	docs := []Document{}
	err := s.db.SelectContext(ctx, &docs,
		`SELECT * FROM documents WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document. Deleting an absent id is not an error.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// UserTier returns the user's subscription tier. Unknown users are on the
// lowest tier.
func (s *Store) UserTier(ctx context.Context, userID string) (catalog.Tier, error) {
	var tier string
	err := s.db.GetContext(ctx, &tier, `SELECT tier FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.TierStarter, nil
	}
	if err != nil {
		return catalog.TierStarter, fmt.Errorf("get user tier: %w", err)
	}
	return catalog.ParseTier(tier), nil
}

// SetUserTier upserts the user's subscription tier. Called by the payments
// webhook handler when a subscription record changes.
func (s *Store) SetUserTier(ctx context.Context, userID string, tier catalog.Tier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, tier) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET tier = excluded.tier`,
		userID, tier.String())
	if err != nil {
		return fmt.Errorf("set user tier: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// newID returns a 20-char random hex document id.
func newID() string {
	var b [10]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
