package intel

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const (
	cacheEnvVar = "INTELSCOUT_CACHE_DIR"
	cacheSubdir = "intelscout/reports"
	// Reports regenerate server-side; keep the local copy short-lived and
	// revalidate with conditional requests past the TTL.
	cacheTTL        = 15 * time.Minute
	payloadSuffix   = ".body"
	cacheMetaSuffix = ".meta"
)

// reportCache stores fetched report payloads on disk keyed by query id, with
// ETag/Last-Modified metadata for conditional revalidation. Re-activating a
// query from history is served locally while the entry is fresh.
type reportCache struct {
	dir    string
	client *http.Client
}

type reportCacheMeta struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"contentType"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"lastModified"`
	CachedAt     time.Time `json:"cachedAt"`
}

func newReportCache(dir string, client *http.Client) (*reportCache, error) {
	if dir == "" {
		dir = os.Getenv(cacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "intelscout-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &reportCache{dir: dir, client: client}, nil
}

// Fetch returns the report payload and its content type, downloading only
// when the cached entry is missing, stale, or invalidated by the server.
func (c *reportCache) Fetch(ctx context.Context, key, url string) ([]byte, string, error) {
	bodyPath, metaPath := c.pathsFor(key)

	meta, metaErr := readReportMeta(metaPath)
	if metaErr == nil && time.Since(meta.CachedAt) < cacheTTL {
		if payload, err := os.ReadFile(bodyPath); err == nil {
			return payload, meta.ContentType, nil
		}
	}

	payload, contentType, err := c.download(ctx, url, bodyPath, metaPath, meta)
	if err == nil {
		return payload, contentType, nil
	}
	// Serve a stale copy over failing outright when one exists.
	if metaErr == nil {
		if payload, readErr := os.ReadFile(bodyPath); readErr == nil {
			return payload, meta.ContentType, nil
		}
	}
	return nil, "", err
}

func (c *reportCache) download(ctx context.Context, url, bodyPath, metaPath string, meta reportCacheMeta) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &ServiceError{Op: "fetch report", Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		payload, err := os.ReadFile(bodyPath)
		if err != nil {
			// Meta survived but the body is gone; refetch unconditionally.
			return c.download(ctx, url, bodyPath, metaPath, reportCacheMeta{})
		}
		meta.CachedAt = time.Now().UTC()
		if err := writeReportMeta(metaPath, meta); err != nil {
			return nil, "", err
		}
		return payload, meta.ContentType, nil
	case resp.StatusCode >= 400:
		return nil, "", serviceErrorFromResponse("fetch report", resp)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &ServiceError{Op: "fetch report", Message: err.Error()}
	}
	contentType := resp.Header.Get("Content-Type")
	if err := os.WriteFile(bodyPath, payload, 0o644); err != nil {
		return nil, "", err
	}
	err = writeReportMeta(metaPath, reportCacheMeta{
		URL:          url,
		ContentType:  contentType,
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		CachedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, "", err
	}
	return payload, contentType, nil
}

func (c *reportCache) pathsFor(key string) (string, string) {
	safe := sanitizeCacheKey(key)
	return filepath.Join(c.dir, safe+payloadSuffix), filepath.Join(c.dir, safe+cacheMetaSuffix)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func sanitizeCacheKey(key string) string {
	safe := unsafeKeyChars.ReplaceAllString(key, "-")
	if safe == "" || len(safe) > 120 {
		sum := sha1.Sum([]byte(key))
		return hex.EncodeToString(sum[:])
	}
	return safe
}

func readReportMeta(path string) (reportCacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reportCacheMeta{}, err
	}
	var meta reportCacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return reportCacheMeta{}, err
	}
	if meta.CachedAt.IsZero() {
		return reportCacheMeta{}, fmt.Errorf("invalid cache metadata in %s", path)
	}
	return meta, nil
}

func writeReportMeta(path string, meta reportCacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
