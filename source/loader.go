package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"rowfilter/config"
)

// CacheEntry stores cached URL data with timestamp.
type CacheEntry struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	DataFile  string    `json:"data_file"` // Relative filename for table data
}

// Loader handles fetching and parsing tables from local files and URLs.
type Loader struct {
	Client  *http.Client
	DataDir string        // Directory for caching URL data
	MaxAge  time.Duration // Cached URL data older than this is fetched again; zero means never
}

// NewLoader creates a new Loader with a default HTTP client.
func NewLoader(dataDir string) *Loader {
	return &Loader{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		DataDir: dataDir,
	}
}

// Load reads the table described by src.
func (l *Loader) Load(ctx context.Context, src config.Table) (*Table, error) {
	sep := ','
	if r := []rune(src.Separator); len(r) == 1 {
		sep = r[0]
	}

	var (
		t   *Table
		err error
	)
	switch {
	case src.Path != "":
		t, err = l.LoadFromPath(src.Path, sep)
	case src.URL != "":
		t, err = l.LoadFromURLWithCache(ctx, src.URL, sep)
	default:
		return nil, fmt.Errorf("table '%s' has no source", src.Name)
	}
	if err != nil {
		return nil, err
	}

	t.Name = src.Name
	return t, nil
}

// LoadFromPath reads a table from a local file.
func (l *Loader) LoadFromPath(path string, sep rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTable(path, f, sep)
}

// LoadFromURLWithCache returns the cached copy of url while it is younger
// than MaxAge, fetching it otherwise. A stale copy is used when the fetch fails.
func (l *Loader) LoadFromURLWithCache(ctx context.Context, url string, sep rune) (*Table, error) {
	cacheKey := urlToCacheKey(url)
	metaFile := filepath.Join(l.DataDir, cacheKey+".meta.json")
	dataFile := filepath.Join(l.DataDir, cacheKey+".data")

	// 1. Try to load from cache first
	meta, metaErr := l.readCacheMeta(metaFile)
	fresh := metaErr == nil && (l.MaxAge <= 0 || time.Since(meta.FetchedAt) < l.MaxAge)
	if fresh {
		cached, err := l.LoadFromPath(dataFile, sep)
		if err == nil {
			log.Debugf("Using cached table for '%s'", url)
			return cached, nil
		}
		log.Printf("Failed to load cache for '%s': %v", url, err)
	}

	// 2. Fetch fresh data
	t, err := l.fetch(ctx, url, sep, metaFile, dataFile)
	if err == nil {
		return t, nil
	}

	// 3. Fall back to a stale copy
	if metaErr == nil && !fresh {
		if stale, staleErr := l.LoadFromPath(dataFile, sep); staleErr == nil {
			log.Warnf("Fetching '%s' failed (%v), using copy from %s", url, err, meta.FetchedAt.Format(time.RFC3339))
			return stale, nil
		}
	}
	return nil, err
}

func (l *Loader) fetch(ctx context.Context, url string, sep rune, metaFile, dataFile string) (*Table, error) {
	log.Printf("Fetching table from '%s'...", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	t, err := ReadTable(url, bytes.NewReader(data), sep)
	if err != nil {
		return nil, err
	}

	// Ensure data dir exists
	if err := os.MkdirAll(l.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(dataFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to create cache file: %w", err)
	}

	meta := CacheEntry{
		URL:       url,
		FetchedAt: time.Now(),
		DataFile:  filepath.Base(dataFile),
	}
	if err := l.writeCacheMeta(metaFile, meta); err != nil {
		log.Printf("Failed to write cache metadata for '%s': %v", url, err)
	}

	log.Printf("Cached %d rows from '%s'", len(t.Rows), url)
	return t, nil
}

func (l *Loader) readCacheMeta(path string) (CacheEntry, error) {
	var entry CacheEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

func (l *Loader) writeCacheMeta(path string, entry CacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func urlToCacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:8]) // First 8 bytes (16 chars)
}
