// Package fetch retrieves the raw bytes behind background and overlay
// source references.
//
// Supported references:
//
//	https://example.com/bg.gif   HTTP(S), cached, retried with backoff
//	data:image/png;base64,...    inline data URI
//	file:///srv/logos/a.png      local file (when AllowFiles is set)
//	/srv/logos/a.png             local file (when AllowFiles is set)
//	preset:acme                  catalog entry, resolved to one of the above
//
// Every source is size-capped and must look like an image.
package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/overlay/pkg/cache"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/observability"
)

const (
	// DefaultMaxBytes is the per-source payload limit.
	DefaultMaxBytes = 20 << 20

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 15 * time.Second

	// DefaultAttempts is the number of HTTP attempts for transient failures.
	DefaultAttempts = 3

	// DefaultRetryDelay is the first backoff delay; it doubles per attempt.
	DefaultRetryDelay = time.Second

	// DefaultUserAgent is sent with every HTTP request.
	DefaultUserAgent = "overlay-fetch/1.0"
)

// PresetPrefix marks a catalog reference.
const PresetPrefix = "preset:"

// Asset is a fetched source.
type Asset struct {
	Ref         string
	Data        []byte
	ContentType string
	Hash        string // sha256 of Data
	Cached      bool
}

// PresetResolver turns a preset id into a concrete source reference.
type PresetResolver interface {
	Resolve(ctx context.Context, id string) (string, error)
}

// Options configures a Fetcher. Zero values take the defaults.
type Options struct {
	MaxBytes   int64
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	UserAgent  string
	AllowFiles bool
	Presets    PresetResolver
	Logger     *log.Logger
}

func (o *Options) setDefaults() {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Fetcher retrieves source bytes. It is safe for concurrent use.
type Fetcher struct {
	http  *http.Client
	cache cache.Cache
	keyer cache.Keyer
	opts  Options
}

// New creates a Fetcher. A nil cache disables caching; a nil keyer uses
// cache.DefaultKeyer.
func New(c cache.Cache, keyer cache.Keyer, opts Options) *Fetcher {
	opts.setDefaults()
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Fetcher{
		http:  &http.Client{Timeout: opts.Timeout},
		cache: c,
		keyer: keyer,
		opts:  opts,
	}
}

// MaxBytes returns the per-source payload limit.
func (f *Fetcher) MaxBytes() int64 { return f.opts.MaxBytes }

// Fetch retrieves ref. Errors carry the codes FETCH_FAILED, NOT_FOUND,
// SIZE_LIMIT_EXCEEDED, UNSUPPORTED or INVALID_INPUT.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Asset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty source reference")
	}

	if id, ok := strings.CutPrefix(ref, PresetPrefix); ok {
		if f.opts.Presets == nil {
			return nil, errors.New(errors.ErrCodeUnsupported, "preset %q: no catalog configured", id)
		}
		resolved, err := f.opts.Presets.Resolve(ctx, id)
		if err != nil {
			return nil, errors.Ensure(errors.ErrCodeNotFound, err, "preset %q", id)
		}
		if strings.HasPrefix(resolved, PresetPrefix) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "preset %q resolves to another preset", id)
		}
		a, err := f.Fetch(ctx, resolved)
		if err != nil {
			return nil, err
		}
		a.Ref = ref
		return a, nil
	}

	var (
		data   []byte
		ctype  string
		cached bool
		err    error
	)
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, ctype, err = decodeDataURI(ref, f.opts.MaxBytes)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, ctype, cached, err = f.fetchHTTP(ctx, ref)
	default:
		data, err = f.readFile(ref)
	}
	if err != nil {
		return nil, err
	}

	ctype, err = imageType(ctype, data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "source %s", redact(ref))
	}
	return &Asset{
		Ref:         ref,
		Data:        data,
		ContentType: ctype,
		Hash:        cache.Hash(data),
		Cached:      cached,
	}, nil
}

// =============================================================================
// HTTP
// =============================================================================

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, string, bool, error) {
	key := f.keyer.AssetKey(ref)
	if data, hit, err := f.cache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "asset")
		return data, "", true, nil
	} else if err != nil {
		f.opts.Logger.Warn("asset cache read failed", "err", err)
	}
	observability.Cache().OnCacheMiss(ctx, "asset")

	var (
		data  []byte
		ctype string
	)
	err := Retry(ctx, f.opts.Attempts, f.opts.RetryDelay, func() error {
		var err error
		data, ctype, err = f.get(ctx, ref)
		return err
	})
	if err != nil {
		switch {
		case errors.GetCode(err) != "":
			return nil, "", false, err
		case stderrors.Is(err, ErrNotFound):
			return nil, "", false, errors.Wrap(errors.ErrCodeNotFound, err, "fetch %s", ref)
		case ctx.Err() != nil:
			return nil, "", false, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "fetch %s", ref)
		default:
			return nil, "", false, errors.Wrap(errors.ErrCodeFetch, err, "fetch %s", ref)
		}
	}

	if err := f.cache.Set(ctx, key, data, cache.TTLAsset); err != nil {
		f.opts.Logger.Warn("asset cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "asset", len(data))
	}
	return data, ctype, false, nil
}

func (f *Fetcher) get(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid url")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "image/*")

	host, path := req.URL.Host, req.URL.Path
	observability.HTTP().OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := f.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, "", err
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return nil, "", errors.SizeLimit("source bytes", resp.ContentLength, f.opts.MaxBytes)
	}

	data, err := readLimited(resp.Body, f.opts.MaxBytes)
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, "", err
		}
		return nil, "", Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// =============================================================================
// Local files and data URIs
// =============================================================================

func (f *Fetcher) readFile(ref string) ([]byte, error) {
	path := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "invalid file url")
		}
		path = u.Path
	}
	if !f.opts.AllowFiles {
		return nil, errors.New(errors.ErrCodeUnsupported, "local file sources are disabled")
	}
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "source file %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "open %s", path)
	}
	defer fh.Close()

	if st, err := fh.Stat(); err == nil && st.Size() > f.opts.MaxBytes {
		return nil, errors.SizeLimit("source bytes", st.Size(), f.opts.MaxBytes)
	}
	data, err := readLimited(fh, f.opts.MaxBytes)
	if err != nil {
		return nil, errors.Ensure(errors.ErrCodeFetch, err, "read %s", path)
	}
	return data, nil
}

// readLimited reads at most limit bytes and fails if r holds more.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, errors.SizeLimit("source bytes", n, limit)
	}
	return buf.Bytes(), nil
}

// imageType picks the content type of data, preferring the sniffed type.
// Non-image payloads are rejected.
func imageType(declared string, data []byte) (string, error) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "image/") {
		return mt, nil
	}
	if declared == "" {
		return "", fmt.Errorf("not an image (sniffed %s)", sniffed)
	}
	return "", fmt.Errorf("not an image (content type %s)", declared)
}

func redact(ref string) string {
	if strings.HasPrefix(ref, "data:") && len(ref) > 32 {
		return ref[:32] + "..."
	}
	return ref
}
