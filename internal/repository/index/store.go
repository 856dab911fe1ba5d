package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/kailas-cloud/docindex/internal/domain"
	"github.com/kailas-cloud/docindex/internal/domain/chunk"
	domindex "github.com/kailas-cloud/docindex/internal/domain/index"
)

// FormatVersion is the snapshot layout written by Save.
const FormatVersion = 1

const (
	metaFormatVersion = "format_version"
	metaModel         = "embedder_model"
	metaDimension     = "dimension"
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE entries (
	seq       INTEGER PRIMARY KEY,
	id        TEXT NOT NULL,
	content   TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding BLOB NOT NULL,
	position  INTEGER NOT NULL
);`

// Store persists an index as a single SQLite snapshot file.
// Save replaces the file atomically, so readers see either the old or the new snapshot.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store for the snapshot at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("index path is required: %w", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: filepath.Clean(path), logger: logger}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether a snapshot has been written.
func (s *Store) Exists() (bool, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioError("stat", s.path, err)
	}
	if fi.IsDir() {
		return false, ioError("stat", s.path, errors.New("path is a directory"))
	}
	return true, nil
}

// Writable checks that a snapshot can be created next to the configured path.
func (s *Store) Writable() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("create dir", dir, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-probe-*.tmp")
	if err != nil {
		return ioError("probe", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return ioError("probe cleanup", name, err)
	}
	return nil
}

// Load reads the snapshot. The file is opened read-only.
func (s *Store) Load(ctx context.Context) (*domindex.Index, error) {
	dsn, err := sqliteDSN(s.path, url.Values{"mode": {"ro"}})
	if err != nil {
		return nil, ioError("open", s.path, err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ioError("open", s.path, err)
	}
	defer db.Close()

	binding, err := readMeta(ctx, db)
	if err != nil {
		return nil, ioError("read meta", s.path, err)
	}

	entries, err := readEntries(ctx, db, binding.Dimension)
	if err != nil {
		return nil, ioError("read entries", s.path, err)
	}

	s.logger.Debug("Index loaded",
		zap.String("path", s.path),
		zap.String("model", binding.Model),
		zap.Int("dimension", binding.Dimension),
		zap.Int("entries", len(entries)),
	)
	return domindex.Reconstruct(binding, entries), nil
}

// Save writes idx to a temp file next to the snapshot and renames it into place.
// On any failure the temp file is removed and the previous snapshot is untouched.
func (s *Store) Save(ctx context.Context, idx *domindex.Index) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioError("create dir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return ioError("create temp", dir, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ioError("create temp", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeSnapshot(ctx, tmpPath, idx); err != nil {
		return ioError("write", tmpPath, err)
	}
	if err := syncFile(tmpPath); err != nil {
		return ioError("sync", tmpPath, err)
	}
	if err := ctx.Err(); err != nil {
		return ioError("save", s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return ioError("rename", s.path, err)
	}
	if derr := syncDir(dir); derr != nil {
		s.logger.Warn("Index dir sync failed", zap.String("dir", dir), zap.Error(derr))
	}

	s.logger.Debug("Index saved",
		zap.String("path", s.path),
		zap.Int("entries", idx.Len()),
	)
	return nil
}

// sqliteDSN builds a file: URI for path. The path is made absolute and escaped, so '#', '?'
// and '%' in file names reach SQLite as part of the name.
func sqliteDSN(path string, params url.Values) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: params.Encode()}
	return u.String(), nil
}

func writeSnapshot(ctx context.Context, path string, idx *domindex.Index) error {
	dsn, err := sqliteDSN(path, url.Values{"_pragma": {"journal_mode(OFF)", "synchronous(OFF)"}})
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	b := idx.Binding()
	meta := [][2]string{
		{metaFormatVersion, strconv.Itoa(FormatVersion)},
		{metaModel, b.Model},
		{metaDimension, strconv.Itoa(b.Dimension)},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert meta %s: %w", kv[0], err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries(seq, id, content, metadata, embedding, position) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range idx.Entries() {
		c := e.Chunk()
		meta, err := json.Marshal(c.Metadata())
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", c.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx,
			i, c.ID(), c.Content(), string(meta), domain.VectorToBytes(e.Vector()), c.Position(),
		); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return db.Close()
}

func readMeta(ctx context.Context, db *sql.DB) (domindex.Binding, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return domindex.Binding{}, err
	}
	defer rows.Close()

	meta := make(map[string]string, 3)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domindex.Binding{}, err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return domindex.Binding{}, err
	}

	if v := meta[metaFormatVersion]; v != strconv.Itoa(FormatVersion) {
		return domindex.Binding{}, fmt.Errorf("unsupported format version %q", v)
	}
	model := meta[metaModel]
	if model == "" {
		return domindex.Binding{}, errors.New("embedder model not recorded")
	}
	dim, err := strconv.Atoi(meta[metaDimension])
	if err != nil || dim < 0 {
		return domindex.Binding{}, fmt.Errorf("invalid dimension %q", meta[metaDimension])
	}
	return domindex.Binding{Model: model, Dimension: dim}, nil
}

func readEntries(ctx context.Context, db *sql.DB, dim int) ([]domindex.Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, content, metadata, embedding, position FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domindex.Entry
	for rows.Next() {
		var (
			id, content, rawMeta string
			blob                 []byte
			position             int
		)
		if err := rows.Scan(&id, &content, &rawMeta, &blob, &position); err != nil {
			return nil, err
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
		}
		vec, err := domain.BytesToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", id, err)
		}
		if len(vec) == 0 || len(vec) != dim {
			return nil, fmt.Errorf("entry %s has dimension %d, index expects %d", id, len(vec), dim)
		}

		entries = append(entries, domindex.NewEntry(chunk.Reconstruct(id, content, meta, position), vec))
	}
	return entries, rows.Err()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func ioError(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, domain.ErrIndexIO, err)
}
