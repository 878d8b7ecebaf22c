package presentation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSchema = "livedeck"

var pgIdentRE = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresStore persists presentations and reads slides from PostgreSQL.
type PostgresStore struct {
	pool    *pgxpool.Pool
	schema  string
	codeTTL time.Duration
	now     func() time.Time
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "livedeck").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !isValidPGIdent(schema) {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// WithCodeTTL sets the access-code expiration window used by ExistsByAccessCode.
func WithCodeTTL(d time.Duration) StoreOption {
	return func(s *PostgresStore) error {
		if d < 0 {
			return ErrInvalidInput
		}
		s.codeTTL = d
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: defaultSchema,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Schema returns the configured schema name.
func (s *PostgresStore) Schema() string { return s.schema }

// Migrate applies SchemaSQL for the configured schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return OpError{Op: "presentation.Migrate", Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if _, err := s.pool.Exec(ctx, SchemaSQL(s.schema)); err != nil {
		return fmt.Errorf("presentation.Migrate: %w", err)
	}
	return nil
}

// SchemaSQL returns the DDL for the presentations and slides tables.
func SchemaSQL(schema string) string {
	presentations := pgIdent(schema, "presentations")
	slides := pgIdent(schema, "slides")

	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  presenter_id TEXT NOT NULL,
  access_code TEXT NOT NULL,
  access_code_issued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  status TEXT NOT NULL DEFAULT 'draft',
  current_slide_index INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT chk_presentations_access_code CHECK (access_code ~ '^[0-9]{6}$'),
  CONSTRAINT chk_presentations_status CHECK (status IN ('draft', 'active', 'inactive')),
  CONSTRAINT chk_presentations_slide_index CHECK (current_slide_index >= 0)
);

CREATE INDEX IF NOT EXISTS idx_presentations_access_code ON %s (access_code, access_code_issued_at DESC);

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  presentation_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  slide_order INT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'content',
  content JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT chk_slides_order CHECK (slide_order >= 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_slides_presentation_order ON %s (presentation_id, slide_order);
`, pgx.Identifier{schema}.Sanitize(), presentations, presentations, slides, presentations, slides)
}

// Insert creates a presentation row (seeding and tests; CRUD lives elsewhere).
func (s *PostgresStore) Insert(ctx context.Context, p Session) error {
	const op = "presentation.Insert"
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(p.ID) == "" || !p.Status.Valid() {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.AccessCodeIssuedAt.IsZero() {
		p.AccessCodeIssuedAt = p.CreatedAt
	}

	presentations := pgIdent(s.schema, "presentations")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+presentations+` (
		     id, title, description, presenter_id, access_code, access_code_issued_at,
		     status, current_slide_index, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID,
		p.Title,
		p.Description,
		p.PresenterID,
		p.AccessCode,
		p.AccessCodeIssuedAt,
		string(p.Status),
		p.CurrentSlideIndex,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// InsertSlide creates a slide row (seeding and tests).
func (s *PostgresStore) InsertSlide(ctx context.Context, sl Slide) error {
	const op = "presentation.InsertSlide"
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if strings.TrimSpace(sl.ID) == "" || sl.Order < 0 {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}
	if sl.CreatedAt.IsZero() {
		sl.CreatedAt = s.now()
	}
	content := sl.Content
	if len(content) == 0 {
		content = []byte("{}")
	}
	typ := sl.Type
	if typ == "" {
		typ = "content"
	}

	slides := pgIdent(s.schema, "slides")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+slides+` (id, presentation_id, slide_order, title, type, content, created_at)
		   VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sl.ID, sl.PresentationID, sl.Order, sl.Title, typ, string(content), sl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const selectSessionCols = `id, title, description, presenter_id, access_code, access_code_issued_at,
		        status, current_slide_index, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var (
		out    Session
		status string
	)
	err := row.Scan(
		&out.ID,
		&out.Title,
		&out.Description,
		&out.PresenterID,
		&out.AccessCode,
		&out.AccessCodeIssuedAt,
		&status,
		&out.CurrentSlideIndex,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	out.Status = Status(status)
	return out, err
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Session, error) {
	const op = "presentation.FindByID"
	if s == nil || s.pool == nil {
		return Session{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, OpError{Op: op, Kind: ErrNotFound}
	}

	presentations := pgIdent(s.schema, "presentations")
	out, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+selectSessionCols+`
		   FROM `+presentations+`
		  WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// FindByAccessCode returns the most recently issued session holding code.
func (s *PostgresStore) FindByAccessCode(ctx context.Context, code string) (Session, error) {
	const op = "presentation.FindByAccessCode"
	if s == nil || s.pool == nil {
		return Session{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}

	presentations := pgIdent(s.schema, "presentations")
	out, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+selectSessionCols+`
		   FROM `+presentations+`
		  WHERE access_code = $1
		  ORDER BY access_code_issued_at DESC
		  LIMIT 1`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) ExistsByAccessCode(ctx context.Context, code string) (bool, error) {
	const op = "presentation.ExistsByAccessCode"
	if s == nil || s.pool == nil {
		return false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}

	presentations := pgIdent(s.schema, "presentations")
	var exists bool
	var err error
	if s.codeTTL <= 0 {
		err = s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+presentations+` WHERE access_code = $1)`,
			code,
		).Scan(&exists)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM `+presentations+`
			    WHERE access_code = $1
			      AND access_code_issued_at > $2
			 )`,
			code, s.now().Add(-s.codeTTL),
		).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// Save writes the mutable fields (status, slide pointer, code, metadata).
func (s *PostgresStore) Save(ctx context.Context, p Session) error {
	const op = "presentation.Save"
	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if !p.Status.Valid() || p.CurrentSlideIndex < 0 {
		return OpError{Op: op, Kind: ErrInvalidInput}
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}

	presentations := pgIdent(s.schema, "presentations")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+presentations+`
		    SET title = $2,
		        description = $3,
		        access_code = $4,
		        access_code_issued_at = $5,
		        status = $6,
		        current_slide_index = $7,
		        updated_at = $8
		  WHERE id = $1`,
		p.ID,
		p.Title,
		p.Description,
		p.AccessCode,
		p.AccessCodeIssuedAt,
		string(p.Status),
		p.CurrentSlideIndex,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

func (s *PostgresStore) FindSlideByOrder(ctx context.Context, presentationID string, order int) (Slide, error) {
	const op = "presentation.FindSlideByOrder"
	if s == nil || s.pool == nil {
		return Slide{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if order < 0 {
		return Slide{}, OpError{Op: op, Kind: ErrSlideNotFound}
	}

	slides := pgIdent(s.schema, "slides")
	var (
		out     Slide
		content []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, presentation_id, slide_order, title, type, content, created_at
		   FROM `+slides+`
		  WHERE presentation_id = $1 AND slide_order = $2`,
		presentationID, order,
	).Scan(&out.ID, &out.PresentationID, &out.Order, &out.Title, &out.Type, &content, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slide{}, OpError{Op: op, Kind: ErrSlideNotFound}
		}
		return Slide{}, fmt.Errorf("%s: %w", op, err)
	}
	out.Content = content
	return out, nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

func isValidPGIdent(s string) bool { return pgIdentRE.MatchString(s) }
