// Package journal 记录土地登记提交，阻止重复上链
//
// 核心功能:
//   - 按记录指纹判断是否已提交（已确认的记录不能再次提交）
//   - 跟踪每次提交的状态: pending / confirmed / failed
//   - 失败的提交允许重试
//   - 超过 pending 超时的提交视为已放弃，可再次提交
//
// 存储:
//   - SQLite（modernc.org/sqlite，纯 Go 驱动）
//   - WAL 模式，迁移脚本内嵌在二进制中
//
// 使用示例:
//
//	j, _ := journal.Open("data/journal.db")
//	id, err := j.Begin(ctx, rec)
//	...
//	j.Complete(ctx, id, receipt.TxHash)
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"landRegistry/pkg/journal/migrations"
	"landRegistry/pkg/land"
)

// Status of a submission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

var (
	ErrDuplicate  = errors.New("land record already registered")
	ErrInFlight   = errors.New("land record submission already in progress")
	ErrNotFound   = errors.New("submission not found")
	ErrNotPending = errors.New("submission is not pending")
)

// DefaultPendingTimeout is how long a pending submission blocks resubmission
// before it is treated as abandoned.
const DefaultPendingTimeout = 10 * time.Minute

// abandonedMessage is stored on pending rows that expired or were reset.
const abandonedMessage = "submission abandoned while pending"

// Submission is one attempt to register a record.
type Submission struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Status      Status    `json:"status"`
	TxHash      string    `json:"txHash,omitempty"`
	Error       string    `json:"error,omitempty"`
	Area        string    `json:"area"`
	City        string    `json:"city"`
	Identifier  string    `json:"identifier"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Journal is a SQLite-backed submission log.
type Journal struct {
	db   *sql.DB
	path string
	// serializes Begin so the duplicate check and insert are atomic
	mu sync.Mutex

	pendingTimeout time.Duration
	now            func() time.Time
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	j := &Journal{
		db:             db,
		path:           path,
		pendingTimeout: DefaultPendingTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	if err := j.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SetPendingTimeout sets how long a pending submission blocks the same
// record. Zero keeps pending rows blocking until they finish or are reset.
func (j *Journal) SetPendingTimeout(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pendingTimeout = d
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) migrate(fsys embed.FS) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := j.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := j.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Begin records a pending submission for rec. A record that was already
// confirmed returns ErrDuplicate, one still pending returns ErrInFlight.
// Pending rows older than the pending timeout are marked failed first.
func (j *Journal) Begin(ctx context.Context, rec land.Record) (string, error) {
	fp := rec.Fingerprint()

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `SELECT id, status, updated_at FROM submissions WHERE fingerprint = ?`, fp)
	if err != nil {
		return "", fmt.Errorf("querying submissions: %w", err)
	}
	type prior struct {
		id      string
		status  Status
		updated time.Time
	}
	var priors []prior
	for rows.Next() {
		var p prior
		var s string
		if err := rows.Scan(&p.id, &s, &p.updated); err != nil {
			rows.Close()
			return "", fmt.Errorf("scanning submission: %w", err)
		}
		p.status = Status(s)
		priors = append(priors, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating submissions: %w", err)
	}

	now := j.now()
	var stale []string
	for _, p := range priors {
		switch p.status {
		case StatusConfirmed:
			return "", ErrDuplicate
		case StatusPending:
			if j.pendingTimeout <= 0 || now.Sub(p.updated) < j.pendingTimeout {
				return "", ErrInFlight
			}
			stale = append(stale, p.id)
		}
	}
	for _, id := range stale {
		if err := j.finish(ctx, id, StatusFailed, "", abandonedMessage); err != nil {
			return "", err
		}
	}

	id := uuid.New().String()
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO submissions (id, fingerprint, status, area, city, identifier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, fp, string(StatusPending), rec.Area, rec.City, rec.OwnerIdentifier, now, now)
	if err != nil {
		return "", fmt.Errorf("saving submission: %w", err)
	}
	return id, nil
}

// Complete marks a submission confirmed.
func (j *Journal) Complete(ctx context.Context, id, txHash string) error {
	return j.finish(ctx, id, StatusConfirmed, txHash, "")
}

// Fail marks a submission failed. The record may be submitted again.
func (j *Journal) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.finish(ctx, id, StatusFailed, "", msg)
}

// Reset marks a pending submission failed so the record can be submitted
// again. Submissions that are not pending return ErrNotPending.
func (j *Journal) Reset(ctx context.Context, id string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusFailed), abandonedMessage, j.now(), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("resetting submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resetting submission: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := j.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotPending
}

func (j *Journal) finish(ctx context.Context, id string, status Status, txHash, msg string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, tx_hash = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(status), txHash, msg, j.now(), id)
	if err != nil {
		return fmt.Errorf("updating submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating submission: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one submission.
func (j *Journal) Get(ctx context.Context, id string) (*Submission, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, status, tx_hash, error, area, city, identifier, created_at, updated_at
		FROM submissions WHERE id = ?
	`, id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns all submissions, newest first.
func (j *Journal) List(ctx context.Context) ([]Submission, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, fingerprint, status, tx_hash, error, area, city, identifier, created_at, updated_at
		FROM submissions ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var s Submission
	var status string
	if err := row.Scan(&s.ID, &s.Fingerprint, &status, &s.TxHash, &s.Error,
		&s.Area, &s.City, &s.Identifier, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning submission: %w", err)
	}
	s.Status = Status(status)
	return &s, nil
}
