package archive

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of frames to buffer before flushing to the database.
	DefaultBatchSize = 16
)

// Metadata describes a frame pack.
type Metadata struct {
	Name         string
	Mode         string // normal or height
	Convention   string // opengl or directx
	Size         int    // edge length in pixels
	Frames       int
	LoopDuration time.Duration
	ExportID     string
	Preset       string // preset document the frames were rendered from
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Mode != "" {
		result["mode"] = m.Mode
	}
	if m.Convention != "" {
		result["convention"] = m.Convention
	}
	if m.Size > 0 {
		result["size"] = strconv.Itoa(m.Size)
	}
	if m.Frames > 0 {
		result["frames"] = strconv.Itoa(m.Frames)
	}
	if m.LoopDuration > 0 {
		result["loop"] = strconv.FormatFloat(m.LoopDuration.Seconds(), 'f', -1, 64)
	}
	if m.ExportID != "" {
		result["export_id"] = m.ExportID
	}
	if m.Preset != "" {
		result["preset"] = m.Preset
	}
	result["format"] = "png"

	return result
}

func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:       values["name"],
		Mode:       values["mode"],
		Convention: values["convention"],
		ExportID:   values["export_id"],
		Preset:     values["preset"],
	}
	if v, err := strconv.Atoi(values["size"]); err == nil {
		meta.Size = v
	}
	if v, err := strconv.Atoi(values["frames"]); err == nil {
		meta.Frames = v
	}
	if v, err := strconv.ParseFloat(values["loop"], 64); err == nil {
		meta.LoopDuration = time.Duration(v * float64(time.Second))
	}
	return meta
}

type frameEntry struct {
	data  []byte
	index int
}

// Pack writes frames to a SQLite database.
type Pack struct {
	path      string
	db        *sql.DB
	batch     []frameEntry
	batchSize int
	mu        sync.Mutex
}

// NewPack creates a frame pack at path. An existing pack is reused, but its
// metadata and frames are cleared first so it never mixes two exports.
func NewPack(path string, meta Metadata) (*Pack, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := resetPack(db, meta); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reset pack: %w", err)
	}

	return &Pack{
		path:      path,
		db:        db,
		batch:     make([]frameEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS frames (
			frame_index INTEGER NOT NULL,
			frame_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS frame_index_idx ON frames (frame_index);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// resetPack drops all frames and replaces the metadata in one transaction.
func resetPack(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM frames"); err != nil {
		return fmt.Errorf("failed to clear frames: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// WriteFrame adds a frame to the batch. When the batch is full, it is
// flushed. The PNG data is gzip-compressed before storage.
func (p *Pack) WriteFrame(index int, png []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batch = append(p.batch, frameEntry{index: index, data: png})
	if len(p.batch) >= p.batchSize {
		return p.flushLocked()
	}
	return nil
}

// Flush writes any buffered frames to the database.
func (p *Pack) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *Pack) flushLocked() error {
	if len(p.batch) == 0 {
		return nil
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO frames (frame_index, frame_data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range p.batch {
		compressed, err := gzipCompress(f.data)
		if err != nil {
			return fmt.Errorf("failed to compress frame %d: %w", f.index, err)
		}
		if _, err := stmt.Exec(f.index, compressed); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.batch = p.batch[:0]
	return nil
}

// Close flushes any remaining frames and closes the database.
func (p *Pack) Close() error {
	if err := p.Flush(); err != nil {
		p.db.Close()
		return err
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Abort discards buffered frames, closes the database and removes the pack
// file together with its WAL files.
func (p *Pack) Abort() error {
	p.mu.Lock()
	p.batch = p.batch[:0]
	p.mu.Unlock()

	p.db.Close()
	for _, name := range []string{p.path, p.path + "-wal", p.path + "-shm"} {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

// PackReader reads frames back from a pack.
type PackReader struct {
	db *sql.DB
}

// OpenPack opens a frame pack for reading.
func OpenPack(path string) (*PackReader, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='frames'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain frames table")
	}

	return &PackReader{db: db}, nil
}

// Frame returns the PNG data of one frame.
func (r *PackReader) Frame(index int) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRow("SELECT frame_data FROM frames WHERE frame_index=?", index).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("frame not found: %d", index)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query frame: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress frame %d: %w", index, err)
	}
	return data, nil
}

// Indices returns the stored frame indices in ascending order.
func (r *PackReader) Indices() ([]int, error) {
	rows, err := r.db.Query("SELECT frame_index FROM frames ORDER BY frame_index")
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frames: %w", err)
	}
	return out, nil
}

// Metadata reads the pack metadata.
func (r *PackReader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *PackReader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
