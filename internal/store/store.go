// Package store persists manuscript descriptions in SQLite. Each save
// creates a new revision holding the xz-compressed markup and its BLAKE3
// digest. Saving markup identical to the current revision is a no-op.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/msdesc/core/cache"
	"github.com/FocuswithJustin/msdesc/core/errors"
	"github.com/FocuswithJustin/msdesc/core/sqlite"
	"github.com/FocuswithJustin/msdesc/core/xml"
	"github.com/FocuswithJustin/msdesc/internal/logging"
	"github.com/FocuswithJustin/msdesc/internal/validation"
)

// Injectable functions for testing.
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
	now         = time.Now
)

// blobCacheBytes bounds the decompressed markup kept in memory.
const blobCacheBytes = 16 << 20

const schemaSQL = `
CREATE TABLE IF NOT EXISTS descriptions (
	id         TEXT PRIMARY KEY,
	subtype    TEXT NOT NULL,
	revision   INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS revisions (
	id         TEXT NOT NULL REFERENCES descriptions(id) ON DELETE CASCADE,
	revision   INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	size       INTEGER NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (id, revision)
);`

// Description is one stored revision of a description.
type Description struct {
	ID        string
	Subtype   string
	Revision  int64
	Digest    string
	Markup    []byte
	UpdatedAt time.Time
}

// Summary describes a revision without its markup.
type Summary struct {
	ID        string    `json:"id"`
	Subtype   string    `json:"subtype"`
	Revision  int64     `json:"revision"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a description database.
type Store struct {
	db    *sql.DB
	blobs *cache.BoundedCache[string, []byte]
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create store schema")
	}
	return newStore(db), nil
}

// OpenReadOnly opens an existing database for reading. Put and Delete
// fail on a read-only store.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	size := func(b []byte) int64 { return int64(len(b)) }
	return &Store{
		db:    db,
		blobs: cache.NewBoundedCache[string, []byte](cache.DefaultConfig(), blobCacheBytes, size),
	}
}

// Close releases the blob cache and closes the database.
func (s *Store) Close() error {
	st := s.blobs.Stats()
	logging.Debug("blob_cache", "hits", st.Hits, "misses", st.Misses, "bytes", st.TotalBytes)
	s.blobs.Clear()
	return s.db.Close()
}

// Put saves markup as the next revision of id and returns the revision
// number. Markup must be well-formed. If it equals the current revision
// the current revision number is returned and nothing is written.
func (s *Store) Put(ctx context.Context, id, subtype string, markup []byte) (int64, error) {
	if err := validation.ValidateID(id); err != nil {
		return 0, err
	}
	if subtype == "" {
		return 0, errors.NewValidation("subtype", "must not be empty")
	}
	if err := validation.ValidateMarkupSize(int64(len(markup))); err != nil {
		return 0, err
	}
	if res := xml.Validate(markup); !res.Valid {
		first := res.Errors[0]
		return 0, errors.NewValidation("markup", fmt.Sprintf("line %d: %s", first.Line, first.Message))
	}
	digest := cache.Digest(subtype, markup)

	data, err := compress(markup)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin put")
	}
	defer tx.Rollback()

	var (
		current    int64
		currDigest string
	)
	err = tx.QueryRowContext(ctx, `SELECT revision, digest FROM descriptions WHERE id = ?`, id).Scan(&current, &currDigest)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return 0, errors.Wrap(err, "read current revision")
	case currDigest == digest:
		logging.StoreEvent(ctx, "unchanged", id, current)
		return current, nil
	}

	rev := current + 1
	ts := now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO descriptions (id, subtype, revision, digest, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET subtype = excluded.subtype, revision = excluded.revision,
		 digest = excluded.digest, updated_at = excluded.updated_at`,
		id, subtype, rev, digest, ts); err != nil {
		return 0, errors.Wrap(err, "write description")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (id, revision, digest, size, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, rev, digest, len(markup), data, ts); err != nil {
		return 0, errors.Wrap(err, "write revision")
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit put")
	}

	s.blobs.Put(digest, bytes.Clone(markup))
	logging.StoreEvent(ctx, "put", id, rev, "bytes", len(markup), "compressed", len(data))
	return rev, nil
}

// Get returns the current revision of id.
func (s *Store) Get(ctx context.Context, id string) (*Description, error) {
	return s.get(ctx, id, `SELECT d.subtype, r.revision, r.digest, r.data, r.created_at
		FROM descriptions d JOIN revisions r ON r.id = d.id AND r.revision = d.revision
		WHERE d.id = ?`, id)
}

// GetRevision returns revision rev of id.
func (s *Store) GetRevision(ctx context.Context, id string, rev int64) (*Description, error) {
	return s.get(ctx, id, `SELECT d.subtype, r.revision, r.digest, r.data, r.created_at
		FROM descriptions d JOIN revisions r ON r.id = d.id
		WHERE d.id = ? AND r.revision = ?`, id, rev)
}

func (s *Store) get(ctx context.Context, id, query string, args ...any) (*Description, error) {
	var (
		d    = Description{ID: id}
		data []byte
		ts   int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&d.Subtype, &d.Revision, &d.Digest, &data, &ts)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("description", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read description")
	}
	d.UpdatedAt = time.Unix(ts, 0).UTC()

	if markup, ok := s.blobs.Get(d.Digest); ok {
		d.Markup = bytes.Clone(markup)
		return &d, nil
	}
	markup, err := decompress(data)
	if err != nil {
		return nil, err
	}
	if got := cache.Digest(d.Subtype, markup); got != d.Digest {
		return nil, fmt.Errorf("description %s revision %d: digest mismatch: %w", id, d.Revision, errors.ErrInternal)
	}
	s.blobs.Put(d.Digest, bytes.Clone(markup))
	d.Markup = markup
	return &d, nil
}

// List returns the current revision of every description, ordered by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	return s.summaries(ctx, `SELECT d.id, d.subtype, r.revision, r.digest, r.size, d.updated_at
		FROM descriptions d JOIN revisions r ON r.id = d.id AND r.revision = d.revision
		ORDER BY d.id`)
}

// Revisions returns all revisions of id, oldest first.
func (s *Store) Revisions(ctx context.Context, id string) ([]Summary, error) {
	out, err := s.summaries(ctx, `SELECT d.id, d.subtype, r.revision, r.digest, r.size, r.created_at
		FROM descriptions d JOIN revisions r ON r.id = d.id
		WHERE d.id = ? ORDER BY r.revision`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.NewNotFound("description", id)
	}
	return out, nil
}

func (s *Store) summaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list descriptions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum Summary
			ts  int64
		)
		if err := rows.Scan(&sum.ID, &sum.Subtype, &sum.Revision, &sum.Digest, &sum.Size, &ts); err != nil {
			return nil, errors.Wrap(err, "scan description")
		}
		sum.UpdatedAt = time.Unix(ts, 0).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes id and all its revisions.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete")
	}
	defer tx.Rollback()

	digests, err := revisionDigests(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM revisions WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "delete revisions")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM descriptions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete description")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("description", id)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit delete")
	}
	for _, d := range digests {
		s.blobs.Remove(d)
	}
	logging.StoreEvent(ctx, "delete", id, 0, "revisions", len(digests))
	return nil
}

func revisionDigests(ctx context.Context, tx *sql.Tx, id string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT digest FROM revisions WHERE id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "list revision digests")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errors.Wrap(err, "scan revision digest")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xzNewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "create xz writer")
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "compress markup")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "finish xz stream")
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xzNewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open xz stream")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "decompress markup")
	}
	return out, nil
}
