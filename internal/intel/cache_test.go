package intel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func newFixtureCache(t *testing.T, handler http.Handler) (*reportCache, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cache, err := newReportCache(t.TempDir(), server.Client())
	if err != nil {
		t.Fatalf("newReportCache() error = %v", err)
	}
	return cache, server.URL
}

func TestReportCacheRevalidatesWithETag(t *testing.T) {
	t.Parallel()

	requests := 0
	cache, url := newFixtureCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Etag", `"v1"`)
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte("# Report\nbody"))
	}))

	ctx := context.Background()
	payload, contentType, err := cache.Fetch(ctx, "q-1", url)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	if string(payload) != "# Report\nbody" || contentType != "text/markdown" {
		t.Fatalf("unexpected payload %q (%q)", payload, contentType)
	}

	// Age the entry past the TTL so the next fetch must revalidate.
	_, metaPath := cache.pathsFor("q-1")
	meta, err := readReportMeta(metaPath)
	if err != nil {
		t.Fatalf("readReportMeta() error = %v", err)
	}
	meta.CachedAt = time.Now().Add(-2 * cacheTTL)
	if err := writeReportMeta(metaPath, meta); err != nil {
		t.Fatalf("writeReportMeta() error = %v", err)
	}

	payload, _, err = cache.Fetch(ctx, "q-1", url)
	if err != nil {
		t.Fatalf("revalidating Fetch() error = %v", err)
	}
	if string(payload) != "# Report\nbody" {
		t.Fatalf("payload lost across revalidation: %q", payload)
	}
	if requests != 2 {
		t.Fatalf("expected exactly 2 upstream requests, got %d", requests)
	}
}

func TestReportCacheServesStaleOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	healthy := true
	cache, url := newFixtureCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte("# Report\nbody"))
	}))

	ctx := context.Background()
	if _, _, err := cache.Fetch(ctx, "q-1", url); err != nil {
		t.Fatalf("priming Fetch() error = %v", err)
	}

	_, metaPath := cache.pathsFor("q-1")
	meta, _ := readReportMeta(metaPath)
	meta.CachedAt = time.Now().Add(-2 * cacheTTL)
	writeReportMeta(metaPath, meta)

	healthy = false
	payload, _, err := cache.Fetch(ctx, "q-1", url)
	if err != nil {
		t.Fatalf("expected stale payload, got error %v", err)
	}
	if string(payload) != "# Report\nbody" {
		t.Fatalf("stale payload mismatch: %q", payload)
	}
}

func TestReportCacheSurfacesMetaWriteFailure(t *testing.T) {
	t.Parallel()

	cache, url := newFixtureCache(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		w.Write([]byte("# Report\nbody"))
	}))

	// Occupy the metadata path so the sidecar write must fail.
	_, metaPath := cache.pathsFor("q-1")
	if err := os.MkdirAll(metaPath, 0o755); err != nil {
		t.Fatalf("prepare meta path: %v", err)
	}

	if _, _, err := cache.Fetch(context.Background(), "q-1", url); err == nil {
		t.Fatal("expected the metadata write failure to surface")
	}
}

func TestSanitizeCacheKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"plain", "q-123"},
		{"slashes", "../../etc/passwd"},
		{"empty", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := sanitizeCacheKey(tt.in)
			if got == "" {
				t.Fatal("sanitized key must not be empty")
			}
			for _, r := range got {
				switch {
				case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
				default:
					t.Fatalf("unsafe rune %q in key %q", r, got)
				}
			}
		})
	}
}

func TestReportCacheDefaultsDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(cacheEnvVar, dir)

	cache, err := newReportCache("", http.DefaultClient)
	if err != nil {
		t.Fatalf("newReportCache() error = %v", err)
	}
	if cache.dir != dir {
		t.Fatalf("cache dir = %q, want %q", cache.dir, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("cache dir not created: %v", err)
	}
}
