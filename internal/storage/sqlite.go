package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for evermarks, users, and jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "everd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Evermarks ---

const evermarkColumns = `token_id, title, author, description, content_type, source_url, tags,
	metadata_json, ipfs_hash, mint_tx, processing_status, processing_error, user_id, created_at, updated_at`

// CreateEvermark inserts a new evermark with processing_status=pending and
// returns it with the allocated token ID. The source_url column carries a
// UNIQUE constraint; a violation is reported as ErrDuplicate so callers can
// treat a concurrent insert of the same URL as the duplicate path.
func (s *Store) CreateEvermark(e Evermark) (Evermark, error) {
	now := time.Now().UTC()
	tags := e.Tags
	if tags == "" {
		tags = "[]"
	}
	status := e.ProcessingStatus
	if status == "" {
		status = StatusPending
	}

	res, err := s.db.Exec(`
		INSERT INTO evermarks (title, author, description, content_type, source_url, tags,
			metadata_json, processing_status, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Author, e.Description, e.ContentType, e.SourceURL, tags,
		e.MetadataJSON, status, e.UserID, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Evermark{}, ErrDuplicate
		}
		return Evermark{}, err
	}

	tokenID, err := res.LastInsertId()
	if err != nil {
		return Evermark{}, fmt.Errorf("reading allocated token id: %w", err)
	}

	e.TokenID = tokenID
	e.Tags = tags
	e.ProcessingStatus = status
	e.CreatedAt = now
	e.UpdatedAt = now
	return e, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// The modernc driver surfaces constraint errors as plain error strings.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) GetEvermark(tokenID int64) (Evermark, error) {
	row := s.db.QueryRow(`SELECT `+evermarkColumns+` FROM evermarks WHERE token_id = ?`, tokenID)
	return scanEvermark(row)
}

// GetEvermarkBySourceURL looks up an evermark by the exact source URL string.
// No normalization is applied: trailing slashes, query order, and scheme case
// all distinguish records.
func (s *Store) GetEvermarkBySourceURL(sourceURL string) (Evermark, error) {
	row := s.db.QueryRow(`SELECT `+evermarkColumns+` FROM evermarks WHERE source_url = ?`, sourceURL)
	return scanEvermark(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvermark(row rowScanner) (Evermark, error) {
	var e Evermark
	var createdAt, updatedAt string
	err := row.Scan(
		&e.TokenID, &e.Title, &e.Author, &e.Description, &e.ContentType, &e.SourceURL, &e.Tags,
		&e.MetadataJSON, &e.IPFSHash, &e.MintTx, &e.ProcessingStatus, &e.ProcessingError,
		&e.UserID, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return Evermark{}, ErrNotFound
	}
	if err != nil {
		return Evermark{}, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Evermark{}, fmt.Errorf("parsing created_at for token %d: %w", e.TokenID, err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Evermark{}, fmt.Errorf("parsing updated_at for token %d: %w", e.TokenID, err)
	}
	return e, nil
}

// ListRecentEvermarks returns evermarks ordered newest first.
func (s *Store) ListRecentEvermarks(limit, offset int) ([]Evermark, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+evermarkColumns+` FROM evermarks
		ORDER BY created_at DESC, token_id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvermarks(rows)
}

// ListUserEvermarks returns a user's evermarks ordered newest first.
func (s *Store) ListUserEvermarks(userID string, limit int) ([]Evermark, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+evermarkColumns+` FROM evermarks
		WHERE user_id = ? ORDER BY created_at DESC, token_id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvermarks(rows)
}

// SearchEvermarks performs a case-insensitive substring match over title,
// description, and tags.
func (s *Store) SearchEvermarks(query string, limit int) ([]Evermark, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(`SELECT `+evermarkColumns+` FROM evermarks
		WHERE lower(title) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ?
		ORDER BY created_at DESC, token_id DESC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvermarks(rows)
}

func collectEvermarks(rows *sql.Rows) ([]Evermark, error) {
	var out []Evermark
	for rows.Next() {
		e, err := scanEvermark(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountEvermarks() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM evermarks`).Scan(&n)
	return n, err
}

// MarkMetadataUploaded records a successful IPFS upload. pending → metadata_uploaded.
func (s *Store) MarkMetadataUploaded(tokenID int64, ipfsHash, metadataJSON string) error {
	return s.updateEvermark(tokenID, `UPDATE evermarks
		SET ipfs_hash = ?, metadata_json = ?, processing_status = ?, updated_at = ?
		WHERE token_id = ?`,
		ipfsHash, metadataJSON, StatusMetadataUploaded, nowRFC3339(), tokenID)
}

// MarkUploadFailed records a failed IPFS upload. pending → ipfs_failed.
// The evermark itself is kept; it persists in a degraded state.
func (s *Store) MarkUploadFailed(tokenID int64, uploadErr string) error {
	return s.updateEvermark(tokenID, `UPDATE evermarks
		SET processing_status = ?, processing_error = ?, updated_at = ?
		WHERE token_id = ?`,
		StatusIPFSFailed, uploadErr, nowRFC3339(), tokenID)
}

// SetMintResult records the transaction reference produced by the mint
// worker and moves the record to its final completed status.
func (s *Store) SetMintResult(tokenID int64, mintTx string) error {
	return s.updateEvermark(tokenID, `UPDATE evermarks
		SET mint_tx = ?, processing_status = ?, updated_at = ? WHERE token_id = ?`,
		mintTx, StatusCompleted, nowRFC3339(), tokenID)
}

func (s *Store) updateEvermark(tokenID int64, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// AddTags merges new tags into the record identified by the exact source URL.
// Existing tags are kept; duplicates are dropped.
func (s *Store) AddTags(sourceURL string, newTags []string) error {
	e, err := s.GetEvermarkBySourceURL(sourceURL)
	if err != nil {
		return err
	}

	var tags []string
	if err := json.Unmarshal([]byte(e.Tags), &tags); err != nil {
		tags = nil
	}
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	for _, t := range newTags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; !ok {
			tags = append(tags, t)
			seen[t] = struct{}{}
		}
	}

	merged, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return s.updateEvermark(e.TokenID, `UPDATE evermarks SET tags = ?, updated_at = ? WHERE token_id = ?`,
		string(merged), nowRFC3339(), e.TokenID)
}

// TagCounts returns how many evermarks carry each tag.
func (s *Store) TagCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT tags FROM evermarks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			counts[t]++
		}
	}
	return counts, rows.Err()
}

// ContentTypeCounts returns how many evermarks exist per content type.
func (s *Store) ContentTypeCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT content_type, COUNT(*) FROM evermarks GROUP BY content_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ct string
		var n int
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, err
		}
		counts[ct] = n
	}
	return counts, rows.Err()
}

// --- Users ---

// GetOrCreateUser looks up a user by Farcaster ID, creating the record on
// first sight.
func (s *Store) GetOrCreateUser(fid int64, username string) (User, error) {
	u, err := s.getUserByFID(fid)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	u = User{
		ID:        uuid.New().String(),
		FID:       fid,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.Exec(`INSERT INTO users (id, fid, username, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.FID, u.Username, u.CreatedAt.Format(time.RFC3339))
	if isUniqueViolation(err) {
		// Lost a race with a concurrent insert for the same fid.
		return s.getUserByFID(fid)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) getUserByFID(fid int64) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRow(`SELECT id, fid, username, created_at FROM users WHERE fid = ?`, fid).
		Scan(&u.ID, &u.FID, &u.Username, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at for user %s: %w", u.ID, err)
	}
	return u, nil
}

// GetUserStats aggregates archive activity for a user identified by fid.
func (s *Store) GetUserStats(fid int64) (UserStats, error) {
	u, err := s.getUserByFID(fid)
	if err == ErrNotFound {
		return UserStats{}, nil
	}
	if err != nil {
		return UserStats{}, err
	}

	var stats UserStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM evermarks WHERE user_id = ?`, u.ID).Scan(&stats.TotalSaves); err != nil {
		return UserStats{}, err
	}

	monthStart := time.Now().UTC().AddDate(0, -1, 0).Format(time.RFC3339)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM evermarks WHERE user_id = ? AND created_at >= ?`,
		u.ID, monthStart).Scan(&stats.ThisMonth); err != nil {
		return UserStats{}, err
	}

	rows, err := s.db.Query(`SELECT source_url, tags FROM evermarks WHERE user_id = ?`, u.ID)
	if err != nil {
		return UserStats{}, err
	}
	defer rows.Close()

	tagSet := make(map[string]struct{})
	domainCounts := make(map[string]int)
	for rows.Next() {
		var sourceURL, tagsJSON string
		if err := rows.Scan(&sourceURL, &tagsJSON); err != nil {
			return UserStats{}, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err == nil {
			for _, t := range tags {
				tagSet[t] = struct{}{}
			}
		}
		if parsed, err := url.Parse(sourceURL); err == nil && parsed.Hostname() != "" {
			domainCounts[parsed.Hostname()]++
		}
	}
	if err := rows.Err(); err != nil {
		return UserStats{}, err
	}

	stats.TagsUsed = len(tagSet)
	top := 0
	for domain, n := range domainCounts {
		if n > top || (n == top && domain < stats.TopDomain) {
			top = n
			stats.TopDomain = domain
		}
	}
	return stats, nil
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

// ClaimNextJob atomically claims the oldest runnable pending job of one of
// the given types, transitioning it to running. Returns nil when nothing is
// due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt string
	var lastError sql.NullString
	var updatedAt string
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob increments the attempt counter. Jobs that still have attempts left
// go back to pending with an exponential backoff; exhausted jobs are marked
// failed permanently.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}

	var attempts, maxAttempts int
	if err := tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).
		Scan(&attempts, &maxAttempts); err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("reading job %s: %w", id, err)
	}

	attempts++
	now := time.Now().UTC()
	status := "pending"
	runAfter := now.Add(time.Duration(attempts*attempts) * 30 * time.Second)
	if attempts >= maxAttempts {
		status = "failed"
		runAfter = now
	}

	_, err = tx.Exec(`UPDATE jobs SET status = ?, attempts = ?, run_after = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, attempts, runAfter.Format(time.RFC3339), errMsg, now.Format(time.RFC3339), id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("updating job %s: %w", id, err)
	}

	return tx.Commit()
}
