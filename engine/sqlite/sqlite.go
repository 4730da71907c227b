// Package sqlite implements the "sqlite" engine, a row-store baseline that
// keeps one vector per row as a little-endian float32 BLOB.
//
// SQLite needs a local file, so only local dataset URIs are supported.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/internal/conv"
	"github.com/hupe1980/colbench/selection"
	_ "github.com/mattn/go-sqlite3" // register driver
)

// Extension is the file extension of sqlite datasets.
const Extension = "sqlite"

const schema = `
CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE vectors (id INTEGER PRIMARY KEY, vector BLOB NOT NULL);
`

// Engine stores datasets in SQLite databases.
type Engine struct {
	stores   *engine.Stores
	maxConns int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConns limits the connections per open dataset.
func WithMaxConns(n int) Option {
	return func(e *Engine) { e.maxConns = n }
}

// New creates a sqlite engine.
func New(stores *engine.Stores, opts ...Option) *Engine {
	e := &Engine{stores: stores}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "sqlite".
func (e *Engine) Name() string { return "sqlite" }

func (e *Engine) path(op, uri string) (string, error) {
	loc, err := engine.ParseURI(uri)
	if err != nil {
		return "", engine.NewError(op, e.Name(), uri, engine.KindInvalid, err)
	}
	if !loc.Local() {
		return "", engine.NewError(op, e.Name(), uri, engine.KindInvalid,
			fmt.Errorf("%w: %s datasets need a local path", engine.ErrUnsupported, e.Name()))
	}
	return filepath.Join(loc.Path, engine.DataFile(Extension)), nil
}

// Exists reports whether a sqlite dataset with expectedRows rows is present.
func (e *Engine) Exists(ctx context.Context, uri string, expectedRows int64) bool {
	h, err := e.Open(ctx, uri)
	if err != nil {
		return false
	}
	defer h.Close()
	return expectedRows < 0 || h.NumRows() == expectedRows
}

// Open opens an existing dataset read-only.
func (e *Engine) Open(ctx context.Context, uri string) (engine.Handle, error) {
	path, err := e.path("open", uri)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, engine.NewError("open", e.Name(), uri, engine.ClassifyIO(err), err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, engine.NewError("open", e.Name(), uri, engine.KindIO, err)
	}
	if e.maxConns > 0 {
		db.SetMaxOpenConns(e.maxConns)
		db.SetMaxIdleConns(e.maxConns)
	}

	h := &handle{uri: uri, db: db, size: fi.Size(), mem: memory.DefaultAllocator}
	if err := h.load(ctx); err != nil {
		_ = db.Close()
		return nil, engine.NewError("open", e.Name(), uri, engine.KindFormat, err)
	}
	return h, nil
}

// Write materializes src into a new database and swaps it into place.
func (e *Engine) Write(ctx context.Context, uri string, src engine.BatchSource) (engine.Handle, error) {
	path, err := e.path("write", uri)
	if err != nil {
		return nil, err
	}
	if err := write(ctx, path, src); err != nil {
		return nil, engine.NewError("write", e.Name(), uri, engine.KindIO, err)
	}
	return e.Open(ctx, uri)
}

func write(ctx context.Context, path string, src engine.BatchSource) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	db, err := sql.Open("sqlite3", "file:"+tmp+"?_journal_mode=OFF&_synchronous=OFF")
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	dim := src.Dim()
	var id int64
	buf := make([]byte, 0, dim*4)
	for {
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := engine.CheckBatch(batch, dim); err != nil {
			return err
		}
		if err := insertBatch(ctx, db, batch, dim, &id, buf); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('dim', ?), ('rows', ?)`,
		strconv.Itoa(dim), strconv.FormatInt(id, 10)); err != nil {
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func insertBatch(ctx context.Context, db *sql.DB, batch []float32, dim int, id *int64, buf []byte) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (id, vector) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < len(batch); i += dim {
		buf = conv.AppendFloat32s(buf[:0], batch[i:i+dim])
		if _, err := stmt.ExecContext(ctx, *id, buf); err != nil {
			return err
		}
		*id++
	}
	return tx.Commit()
}

// DropCache evicts the database file from the page cache.
func (e *Engine) DropCache(ctx context.Context, uri string) error {
	if _, err := e.path("drop cache", uri); err != nil {
		return err
	}
	store, _, err := e.stores.Open(ctx, uri)
	if err != nil {
		return engine.NewError("drop cache", e.Name(), uri, engine.KindInvalid, err)
	}
	if _, err := engine.DropStoreCache(ctx, store); err != nil {
		return engine.NewError("drop cache", e.Name(), uri, engine.KindIO, err)
	}
	return nil
}

type handle struct {
	uri  string
	db   *sql.DB
	size int64
	dim  int
	rows int64
	mem  memory.Allocator
}

func (h *handle) load(ctx context.Context) error {
	rows, err := h.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return err
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if h.dim, err = strconv.Atoi(meta["dim"]); err != nil || h.dim <= 0 {
		return fmt.Errorf("sqlite: invalid dim %q", meta["dim"])
	}
	if h.rows, err = strconv.ParseInt(meta["rows"], 10, 64); err != nil || h.rows < 0 {
		return fmt.Errorf("sqlite: invalid rows %q", meta["rows"])
	}
	return nil
}

func (h *handle) NumRows() int64 { return h.rows }
func (h *handle) Size() int64    { return h.size }
func (h *handle) Close() error   { return h.db.Close() }

func (h *handle) Take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	rec, err := h.take(ctx, indices)
	if err != nil {
		return nil, engine.NewError("take", "sqlite", h.uri, engine.ClassifyTake(err), err)
	}
	return rec, nil
}

func (h *handle) take(ctx context.Context, indices []uint64) (arrow.Record, error) {
	sel, err := selection.FromIndices(indices, uint64(h.rows)) //nolint:gosec
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, int(sel.Selected())*h.dim) //nolint:gosec
	for _, rg := range sel.Ranges() {
		out, err = h.query(ctx, out, int64(rg.Len()), //nolint:gosec
			`SELECT vector FROM vectors WHERE id >= ? AND id < ? ORDER BY id`, rg.Start, rg.End)
		if err != nil {
			return nil, err
		}
	}
	return engine.NewRecord(h.mem, h.dim, out), nil
}

// query appends the vectors returned by q to out and checks the row count.
func (h *handle) query(ctx context.Context, out []float32, want int64, q string, args ...any) ([]float32, error) {
	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		if len(blob) != h.dim*4 {
			return nil, fmt.Errorf("sqlite: vector has %d bytes, want %d", len(blob), h.dim*4)
		}
		if out, err = conv.AppendDecodedFloat32s(out, blob); err != nil {
			return nil, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if want >= 0 && n != want {
		return nil, fmt.Errorf("sqlite: query returned %d rows, want %d", n, want)
	}
	return out, nil
}

func (h *handle) Scan(ctx context.Context) (int64, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT vector FROM vectors ORDER BY id`)
	if err != nil {
		return 0, engine.NewError("scan", "sqlite", h.uri, engine.KindIO, err)
	}
	defer rows.Close()

	var (
		n      int64
		values = make([]float32, h.dim)
	)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return n, engine.NewError("scan", "sqlite", h.uri, engine.KindIO, err)
		}
		if err := conv.DecodeFloat32s(values, blob); err != nil {
			return n, engine.NewError("scan", "sqlite", h.uri, engine.KindFormat, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, engine.NewError("scan", "sqlite", h.uri, engine.KindIO, err)
	}
	return n, nil
}
