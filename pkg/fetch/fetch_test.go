package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/overlay/pkg/cache"
	"github.com/matzehuels/overlay/pkg/errors"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func fastOptions() Options {
	return Options{RetryDelay: time.Millisecond, AllowFiles: true}
}

func TestFetchHTTP(t *testing.T) {
	body := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c, _ := cache.NewFileCache(t.TempDir())
	f := New(c, nil, fastOptions())

	a, err := f.Fetch(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(a.Data, body) || a.ContentType != "image/png" || a.Cached {
		t.Errorf("asset = %d bytes, %s, cached=%v", len(a.Data), a.ContentType, a.Cached)
	}
	if a.Hash != cache.Hash(body) {
		t.Error("hash mismatch")
	}

	again, err := f.Fetch(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !again.Cached || hits.Load() != 1 {
		t.Errorf("second fetch: cached=%v server hits=%d, want cache hit", again.Cached, hits.Load())
	}
}

func TestFetchHTTPRetries(t *testing.T) {
	body := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	a, err := New(nil, nil, fastOptions()).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits.Load() != 3 || !bytes.Equal(a.Data, body) {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestFetchHTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		want   errors.Code
	}{
		{"not found", http.StatusNotFound, nil, errors.ErrCodeNotFound},
		{"forbidden", http.StatusForbidden, nil, errors.ErrCodeFetch},
		{"server error", http.StatusInternalServerError, nil, errors.ErrCodeFetch},
		{"html page", http.StatusOK, []byte("<html><body>nope</body></html>"), errors.ErrCodeFetch},
		{"too large", http.StatusOK, make([]byte, 2048), errors.ErrCodeSizeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			opts := fastOptions()
			opts.MaxBytes = 1024
			_, err := New(nil, nil, opts).Fetch(context.Background(), srv.URL)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want code %s", err, tt.want)
			}
		})
	}
}

func TestFetchHTTPCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, nil, fastOptions()).Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("Fetch with a cancelled context should fail")
	}
}

func TestFetchDataURI(t *testing.T) {
	body := pngBytes(t)
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(body)

	a, err := New(nil, nil, fastOptions()).Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(a.Data, body) || a.ContentType != "image/png" {
		t.Errorf("asset = %d bytes, %s", len(a.Data), a.ContentType)
	}
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		wantData string
		wantType string
		wantErr  errors.Code
	}{
		{"base64", "data:text/plain;base64,aGk=", "hi", "text/plain", ""},
		{"unpadded", "data:text/plain;base64,aGk", "hi", "text/plain", ""},
		{"percent", "data:,a%20b", "a b", "", ""},
		{"missing comma", "data:image/png;base64", "", "", errors.ErrCodeInvalidInput},
		{"bad base64", "data:;base64,!!!", "", "", errors.ErrCodeDecode},
		{"too large", "data:,0123456789abcdef", "", "", errors.ErrCodeSizeLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ctype, err := decodeDataURI(tt.ref, 8)
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != tt.wantData || ctype != tt.wantType {
				t.Errorf("got %q (%s), want %q (%s)", data, ctype, tt.wantData, tt.wantType)
			}
		})
	}
}

func TestFetchFile(t *testing.T) {
	body := pngBytes(t)
	path := filepath.Join(t.TempDir(), "logo.png")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	f := New(nil, nil, fastOptions())
	for _, ref := range []string{path, "file://" + path} {
		a, err := f.Fetch(context.Background(), ref)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", ref, err)
		}
		if !bytes.Equal(a.Data, body) {
			t.Errorf("Fetch(%s) returned different bytes", ref)
		}
	}

	if _, err := f.Fetch(context.Background(), filepath.Join(filepath.Dir(path), "missing.png")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file: %v, want NOT_FOUND", err)
	}

	locked := New(nil, nil, Options{})
	if _, err := locked.Fetch(context.Background(), path); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("files disabled: %v, want UNSUPPORTED", err)
	}
}

type presets map[string]string

func (p presets) Resolve(_ context.Context, id string) (string, error) {
	ref, ok := p[id]
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "preset %q not found", id)
	}
	return ref, nil
}

func TestFetchPreset(t *testing.T) {
	body := pngBytes(t)
	opts := fastOptions()
	opts.Presets = presets{
		"acme": "data:image/png;base64," + base64.StdEncoding.EncodeToString(body),
		"loop": "preset:acme",
	}
	f := New(nil, nil, opts)

	a, err := f.Fetch(context.Background(), "preset:acme")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if a.Ref != "preset:acme" || !bytes.Equal(a.Data, body) {
		t.Errorf("asset ref %s, %d bytes", a.Ref, len(a.Data))
	}

	if _, err := f.Fetch(context.Background(), "preset:nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown preset: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "preset:loop"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("chained preset: %v", err)
	}
	if _, err := New(nil, nil, fastOptions()).Fetch(context.Background(), "preset:acme"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("no catalog: %v", err)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return ErrNotFound
	})
	if err != ErrNotFound || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return Retryable(ErrNetwork)
	})
	if !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := Retry(cancelled, 3, time.Hour, func() error { return Retryable(ErrNetwork) }); err != context.Canceled {
		t.Errorf("cancelled: %v", err)
	}
}
