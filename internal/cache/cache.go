// Package cache is a content-addressed store of per-chunk translation
// results. Entries are keyed by a hash of (chunk text, source language,
// target language), so identical chunks are translated once and reused
// across jobs. A missing entry is never an error; it simply causes
// recomputation.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// keySeparator joins the hashed fields. The unit separator cannot appear
// in a language tag, so the concatenation is unambiguous.
const keySeparator = "\x1f"

type Cache struct {
	db *sql.DB
}

// Entry is a memoized translation pair for one chunk.
type Entry struct {
	MachineTranslation string
	TranslatedText     string
}

// Stats summarises cache usage.
type Stats struct {
	TotalEntries int
	OldestUse    time.Time
	NewestUse    time.Time
}

func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS translation_cache (
		hash_key TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		original_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		machine_translation TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_used TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_last_used ON translation_cache(last_used);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached translation pair for (text, sourceLang,
// targetLang), refreshing the entry's last-used timestamp. The second
// return value is false when no entry exists.
func (c *Cache) Get(ctx context.Context, text, sourceLang, targetLang string) (Entry, bool, error) {
	key := cacheKey(text, sourceLang, targetLang)

	var e Entry
	err := c.db.QueryRowContext(ctx,
		`SELECT translated_text, machine_translation FROM translation_cache WHERE hash_key = ?`,
		key).Scan(&e.TranslatedText, &e.MachineTranslation)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	// The refresh only feeds age-based eviction; a failed touch must not
	// turn a successful read into a miss or an error.
	_, _ = c.db.ExecContext(ctx,
		`UPDATE translation_cache SET last_used = ? WHERE hash_key = ?`,
		time.Now(), key)
	return e, true, nil
}

// Put stores a translation pair, fully overwriting any prior entry under
// the same key including its refined text.
func (c *Cache) Put(ctx context.Context, text, translatedText, machineTranslation, sourceLang, targetLang string) error {
	key := cacheKey(text, sourceLang, targetLang)
	now := time.Now()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_cache
		 (hash_key, source_lang, target_lang, original_text, translated_text, machine_translation, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, normalizeTag(sourceLang), normalizeTag(targetLang), text, translatedText, machineTranslation, now, now)
	return err
}

// EvictOlderThan deletes entries whose last use is older than age and
// returns the number removed. This is advisory maintenance, not
// correctness-critical.
func (c *Cache) EvictOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM translation_cache WHERE last_used < ?`,
		time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns summary statistics for the cache.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var oldest, newest sql.NullTime

	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(last_used), MAX(last_used) FROM translation_cache`).
		Scan(&stats.TotalEntries, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		stats.OldestUse = oldest.Time
	}
	if newest.Valid {
		stats.NewestUse = newest.Time
	}
	return stats, nil
}

// Ping verifies the underlying database is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// cacheKey derives the content address: a SHA-256 hex digest over the
// NFC-normalized text and canonicalized language tags. Tag normalization
// keeps call sites with differing tag casing from silently fragmenting
// the cache.
func cacheKey(text, sourceLang, targetLang string) string {
	h := sha256.New()
	h.Write([]byte(normalizeText(text)))
	h.Write([]byte(keySeparator))
	h.Write([]byte(normalizeTag(sourceLang)))
	h.Write([]byte(keySeparator))
	h.Write([]byte(normalizeTag(targetLang)))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText applies Unicode NFC normalization so byte-distinct but
// canonically equal texts share a key.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}

// normalizeTag canonicalizes a BCP 47 language tag ("EN" → "en",
// "pt_br" → "pt-BR"). Unparseable tags fall back to lowercase trimming.
func normalizeTag(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if parsed, err := language.Parse(trimmed); err == nil {
		return parsed.String()
	}
	return strings.ToLower(trimmed)
}
