package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ ProjectStore  = (*Store)(nil)
	_ ProjectLister = (*Store)(nil)
	_ ScrapStore    = (*Store)(nil)
	_ ScrapReader   = (*Store)(nil)
	_ SourceReader  = (*Store)(nil)
	_ TargetLister  = (*Store)(nil)
	_ DigestStore   = (*Store)(nil)
	_ DraftStore    = (*Store)(nil)
	_ Repository    = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: projects, scraps, digests
		s.migrateV2, // v1 → v2: sweep target index
		s.migrateV3, // v2 → v3: drafts, scrap provenance columns
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);

	CREATE TABLE IF NOT EXISTS scraps (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL,
		project_id    TEXT NOT NULL REFERENCES projects(id),
		stage         TEXT NOT NULL,
		subtitle      TEXT NOT NULL,
		memo          TEXT,
		raw_html_gzip BLOB NOT NULL,
		captured_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scraps_subject ON scraps(owner_id, project_id, stage, captured_at);
	CREATE INDEX IF NOT EXISTS idx_scraps_project ON scraps(owner_id, project_id, captured_at);

	CREATE TABLE IF NOT EXISTS digests (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL,
		project_id       TEXT NOT NULL REFERENCES projects(id),
		stage            TEXT NOT NULL DEFAULT '',
		variant          TEXT NOT NULL,
		prompt_text      TEXT,
		digest_text      TEXT,
		source_watermark TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_digests_subject ON digests(owner_id, project_id, stage);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 indexes scraps by capture time for the sweep target query (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_scraps_captured_at ON scraps(captured_at)`)
	return err
}

// migrateV3 adds the draft table and the provenance columns a committed
// draft carries into its scrap (v2 → v3).
func (s *Store) migrateV3() error {
	stmts := []string{
		`ALTER TABLE scraps ADD COLUMN ai_source TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE scraps ADD COLUMN ai_source_url TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE scraps ADD COLUMN rec_method TEXT NOT NULL DEFAULT 'NONE'`,
		`ALTER TABLE scraps ADD COLUMN user_rec_project INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE scraps ADD COLUMN user_rec_stage INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE scraps ADD COLUMN user_rec_subtitle INTEGER NOT NULL DEFAULT 0`,
		`CREATE TABLE IF NOT EXISTS drafts (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			content_plain TEXT NOT NULL,
			ai_source     TEXT NOT NULL,
			ai_source_url TEXT NOT NULL,
			rec_project_id TEXT,
			rec_stage     TEXT NOT NULL,
			rec_subtitle  TEXT,
			rec_method    TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			expires_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(owner_id, expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, p model.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Description, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("project %s: %w", p.ID, model.ErrDuplicate)
	}
	return err
}

// GetProject returns a project owned by ownerID. A project owned by someone
// else is reported as model.ErrNotFound.
func (s *Store) GetProject(ctx context.Context, ownerID, projectID string) (*model.Project, error) {
	var (
		p                    model.Project
		desc                 sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, created_at, updated_at FROM projects WHERE id = ? AND owner_id = ?`,
		projectID, ownerID,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &desc, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns the owner's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, ownerID string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, created_at, updated_at FROM projects WHERE owner_id = ? ORDER BY updated_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var (
			p                    model.Project
			desc                 sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &desc, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Scraps
// ---------------------------------------------------------------------------

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateScrap inserts a scrap, compressing its raw HTML.
func (s *Store) CreateScrap(ctx context.Context, sc model.Scrap) error {
	return insertScrap(ctx, s.db, sc)
}

func insertScrap(ctx context.Context, db execer, sc model.Scrap) error {
	blob, err := gzipString(sc.RawHTML)
	if err != nil {
		return fmt.Errorf("compress raw html: %w", err)
	}
	if sc.RecMethod == "" {
		sc.RecMethod = model.RecNone
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO scraps (id, owner_id, project_id, stage, subtitle, memo, raw_html_gzip, captured_at,
			ai_source, ai_source_url, rec_method, user_rec_project, user_rec_stage, user_rec_subtitle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.OwnerID, sc.ProjectID, sc.Stage, sc.Subtitle, sc.Memo, blob, formatTime(sc.CapturedAt),
		sc.AISource, sc.AISourceURL, string(sc.RecMethod), sc.UserRecProject, sc.UserRecStage, sc.UserRecSubtitle,
	)
	return err
}

const scrapColumns = `id, owner_id, project_id, stage, subtitle, memo, captured_at,
	ai_source, ai_source_url, rec_method, user_rec_project, user_rec_stage, user_rec_subtitle`

// ListScraps returns one page of a project stage's scraps, newest first,
// starting after the cursor when one is given. Raw HTML is not loaded.
func (s *Store) ListScraps(ctx context.Context, ownerID, projectID, stage string, after *model.ScrapCursor, limit int) ([]model.Scrap, error) {
	query := `SELECT ` + scrapColumns + ` FROM scraps WHERE owner_id = ? AND project_id = ? AND stage = ?`
	args := []interface{}{ownerID, projectID, stage}
	if after != nil {
		at := formatTime(after.CapturedAt)
		query += ` AND (captured_at < ? OR (captured_at = ? AND id < ?))`
		args = append(args, at, at, after.ID)
	}
	query += ` ORDER BY captured_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Scrap
	for rows.Next() {
		sc, err := scanScrap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// GetScrap returns a scrap with its raw HTML, or model.ErrNotFound when the
// owner has no such scrap.
func (s *Store) GetScrap(ctx context.Context, ownerID, scrapID string) (*model.Scrap, error) {
	var blob []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT raw_html_gzip, `+scrapColumns+` FROM scraps WHERE id = ? AND owner_id = ?`,
		scrapID, ownerID,
	)
	sc, err := scanScrap(prefixScanner{row: row, dest: []interface{}{&blob}})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sc.RawHTML, err = gunzipString(blob); err != nil {
		return nil, fmt.Errorf("scrap %s: %w", sc.ID, err)
	}
	return sc, nil
}

// RecentContexts returns, per project, where the owner last saved, most
// recent first.
func (s *Store) RecentContexts(ctx context.Context, ownerID string, limit int) ([]model.ProjectContext, error) {
	// SQLite fills bare columns from the row holding MAX(captured_at).
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.project_id, p.name, sc.stage, MAX(sc.captured_at) AS last_at
		FROM scraps sc
		JOIN projects p ON p.id = sc.project_id AND p.owner_id = sc.owner_id
		WHERE sc.owner_id = ?
		GROUP BY sc.project_id
		ORDER BY last_at DESC
		LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProjectContext
	for rows.Next() {
		var (
			pc model.ProjectContext
			at string
		)
		if err := rows.Scan(&pc.ProjectID, &pc.ProjectName, &pc.LastStage, &at); err != nil {
			return nil, err
		}
		if pc.LastCapturedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// LatestCapturedAt returns the newest capture time for the subject, or nil
// when it has no scraps.
func (s *Store) LatestCapturedAt(ctx context.Context, key model.SubjectKey) (*time.Time, error) {
	query := `SELECT MAX(captured_at) FROM scraps WHERE owner_id = ? AND project_id = ?`
	args := []interface{}{key.OwnerID, key.ProjectID}
	if key.IsStage() {
		query += ` AND stage = ?`
		args = append(args, key.Stage)
	}

	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&latest); err != nil {
		return nil, err
	}
	return parseNullTime(latest)
}

// RecentScraps returns up to limit scraps for the subject, newest first.
func (s *Store) RecentScraps(ctx context.Context, key model.SubjectKey, limit int) ([]model.ScrapInput, error) {
	query := `SELECT id, stage, subtitle, memo, raw_html_gzip, captured_at FROM scraps WHERE owner_id = ? AND project_id = ?`
	args := []interface{}{key.OwnerID, key.ProjectID}
	if key.IsStage() {
		query += ` AND stage = ?`
		args = append(args, key.Stage)
	}
	query += ` ORDER BY captured_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScrapInput
	for rows.Next() {
		var (
			in         model.ScrapInput
			memo       sql.NullString
			blob       []byte
			capturedAt string
		)
		if err := rows.Scan(&in.ID, &in.Stage, &in.Subtitle, &memo, &blob, &capturedAt); err != nil {
			return nil, err
		}
		in.Memo = memo.String
		if in.Text, err = gunzipString(blob); err != nil {
			return nil, fmt.Errorf("scrap %s: %w", in.ID, err)
		}
		if in.CapturedAt, err = parseTime(capturedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// RecentStageTargets returns distinct stage subjects with scraps captured at
// or after since, most recently active first.
func (s *Store) RecentStageTargets(ctx context.Context, since time.Time, limit int) ([]model.SubjectKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, project_id, stage
		FROM scraps
		WHERE captured_at >= ?
		GROUP BY owner_id, project_id, stage
		ORDER BY MAX(captured_at) DESC
		LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.SubjectKey
	for rows.Next() {
		var k model.SubjectKey
		if err := rows.Scan(&k.OwnerID, &k.ProjectID, &k.Stage); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ---------------------------------------------------------------------------
// Digests
// ---------------------------------------------------------------------------

const digestColumns = `id, owner_id, project_id, stage, variant, prompt_text, digest_text, source_watermark, created_at, updated_at`

// FindDigest returns the digest for the subject or model.ErrNotFound.
func (s *Store) FindDigest(ctx context.Context, key model.SubjectKey) (*model.Digest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests WHERE owner_id = ? AND project_id = ? AND stage = ?`,
		key.OwnerID, key.ProjectID, key.Stage,
	)
	d, err := scanDigest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return d, err
}

// InsertDigest creates the digest row for a subject. It returns
// model.ErrDuplicate when another writer created the row first.
func (s *Store) InsertDigest(ctx context.Context, key model.SubjectKey, w model.DigestWrite) (*model.Digest, error) {
	now := formatTime(time.Now())
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO digests (id, owner_id, project_id, stage, variant, prompt_text, digest_text, source_watermark, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+digestColumns,
		uuid.New().String(), key.OwnerID, key.ProjectID, key.Stage,
		string(w.Variant), w.PromptText, w.Text, formatTime(w.Watermark), now, now,
	)
	d, err := scanDigest(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("digest %s: %w", key, model.ErrDuplicate)
	}
	return d, err
}

// UpdateDigest overwrites the generated content of an existing digest. The
// stored watermark never moves backwards.
func (s *Store) UpdateDigest(ctx context.Context, id string, w model.DigestWrite) (*model.Digest, error) {
	wm := formatTime(w.Watermark)
	row := s.db.QueryRowContext(ctx, `
		UPDATE digests SET
			variant = ?,
			prompt_text = ?,
			digest_text = ?,
			source_watermark = CASE
				WHEN source_watermark IS NULL OR source_watermark < ? THEN ?
				ELSE source_watermark
			END,
			updated_at = ?
		WHERE id = ?
		RETURNING `+digestColumns,
		string(w.Variant), w.PromptText, w.Text, wm, wm, formatTime(time.Now()), id,
	)
	d, err := scanDigest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return d, err
}

// ---------------------------------------------------------------------------
// Drafts
// ---------------------------------------------------------------------------

const draftColumns = `id, owner_id, content_plain, ai_source, ai_source_url, rec_project_id, rec_stage, rec_subtitle, rec_method, created_at, expires_at`

// CreateDraft inserts a draft.
func (s *Store) CreateDraft(ctx context.Context, d model.Draft) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (`+draftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.ContentPlain, d.AISource, d.AISourceURL, d.ProjectID, d.Stage, d.Subtitle,
		string(d.RecMethod), formatTime(d.CreatedAt), formatTime(d.ExpiresAt),
	)
	return err
}

// LatestDraft returns the owner's newest draft still valid at now, or
// model.ErrDraftNotFound.
func (s *Store) LatestDraft(ctx context.Context, ownerID string, now time.Time) (*model.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE owner_id = ? AND expires_at > ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		ownerID, formatTime(now),
	)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDraftNotFound
	}
	return d, err
}

// GetDraft returns the owner's draft, expired or not, or model.ErrDraftNotFound.
func (s *Store) GetDraft(ctx context.Context, ownerID, draftID string) (*model.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ? AND owner_id = ?`,
		draftID, ownerID,
	)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDraftNotFound
	}
	return d, err
}

// DeleteDraft removes the owner's draft. Deleting a missing draft is not an error.
func (s *Store) DeleteDraft(ctx context.Context, ownerID, draftID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ? AND owner_id = ?`, draftID, ownerID)
	return err
}

// CommitDraft stores sc and deletes the draft in one transaction. It returns
// model.ErrDraftNotFound, storing nothing, if the draft is already gone.
func (s *Store) CommitDraft(ctx context.Context, draftID string, sc model.Scrap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ? AND owner_id = ?`, draftID, sc.OwnerID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrDraftNotFound
	}
	if err := insertScrap(ctx, tx, sc); err != nil {
		return fmt.Errorf("insert scrap: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

// prefixScanner scans extra leading columns into dest before the row's own.
type prefixScanner struct {
	row  scanner
	dest []interface{}
}

func (p prefixScanner) Scan(dest ...interface{}) error {
	return p.row.Scan(append(p.dest, dest...)...)
}

func scanScrap(row scanner) (*model.Scrap, error) {
	var (
		sc         model.Scrap
		memo       sql.NullString
		capturedAt string
		recMethod  string
	)
	err := row.Scan(&sc.ID, &sc.OwnerID, &sc.ProjectID, &sc.Stage, &sc.Subtitle, &memo, &capturedAt,
		&sc.AISource, &sc.AISourceURL, &recMethod, &sc.UserRecProject, &sc.UserRecStage, &sc.UserRecSubtitle)
	if err != nil {
		return nil, err
	}
	sc.Memo = memo.String
	sc.RecMethod = model.RecMethod(recMethod)
	if sc.CapturedAt, err = parseTime(capturedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

func scanDraft(row scanner) (*model.Draft, error) {
	var (
		d                    model.Draft
		project, subtitle    sql.NullString
		recMethod            string
		createdAt, expiresAt string
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.ContentPlain, &d.AISource, &d.AISourceURL,
		&project, &d.Stage, &subtitle, &recMethod, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	d.ProjectID = nullString(project)
	d.Subtitle = nullString(subtitle)
	d.RecMethod = model.RecMethod(recMethod)
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDigest(row scanner) (*model.Digest, error) {
	var (
		d                    model.Digest
		variant              string
		prompt, text, wm     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.ProjectID, &d.Stage, &variant, &prompt, &text, &wm, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.Variant = model.Variant(variant)
	d.PromptText = nullString(prompt)
	d.Text = nullString(text)
	if d.SourceWatermark, err = parseNullTime(wm); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
