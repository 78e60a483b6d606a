package bridge

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/julianshen/rubichan/internal/diagram"
)

// CacheStore memoizes render results keyed by a hash of the Mermaid
// source and config, so a caller that re-renders the same wiki's
// diagrams across repeated pipeline runs (internal/wiki regenerates
// diagrams on every Run) can skip unchanged work. It sits one layer
// above the pure internal/diagram.Render function, the same way
// internal/store sits above the in-memory chat state it persists.
type CacheStore struct {
	db *sql.DB
}

// OpenCacheStore opens (creating if necessary) a SQLite-backed
// CacheStore at path.
func OpenCacheStore(path string) (*CacheStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening diagram cache %q: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS diagram_cache (
	source_hash TEXT PRIMARY KEY,
	ascii       INTEGER NOT NULL,
	output      TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating diagram cache schema: %w", err)
	}
	return &CacheStore{db: db}, nil
}

// Close closes the underlying database handle.
func (c *CacheStore) Close() error {
	return c.db.Close()
}

func cacheKey(source string, cfg diagram.Config) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%v\x00%d\x00%d", source, cfg.ASCII, cfg.PaddingX, cfg.PaddingY)))
	return hex.EncodeToString(h[:])
}

// Render returns a cached render of source under cfg if present;
// otherwise it renders, stores the result, and returns it. The
// renderer itself stays pure — this method is the only place a
// diagram-cache side effect happens.
func (c *CacheStore) Render(source string, cfg diagram.Config) (string, error) {
	key := cacheKey(source, cfg)

	var output string
	err := c.db.QueryRow(`SELECT output FROM diagram_cache WHERE source_hash = ?`, key).Scan(&output)
	if err == nil {
		return output, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("reading diagram cache: %w", err)
	}

	output, err = diagram.Render(source, cfg)
	if err != nil {
		return "", err
	}

	ascii := 0
	if cfg.ASCII {
		ascii = 1
	}
	if _, err := c.db.Exec(
		`INSERT OR REPLACE INTO diagram_cache (source_hash, ascii, output) VALUES (?, ?, ?)`,
		key, ascii, output,
	); err != nil {
		return "", fmt.Errorf("writing diagram cache: %w", err)
	}
	return output, nil
}
