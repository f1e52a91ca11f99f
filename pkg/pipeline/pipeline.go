// Package pipeline runs a complete overlay render: fetch the sources, decode
// them under the configured limits, compose, and cache the encoded result.
//
// The same Runner backs the CLI and the HTTP server:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	req, err := pipeline.DecodeRequest(data, "")
//	if err != nil {
//	    return err
//	}
//	res, err := runner.Render(ctx, *req)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile(res.Filename, res.Data, 0o644)
//
// # Stages
//
//  1. Fetch: the background and every image overlay source concurrently.
//  2. Decode: headers are checked against [Limits] before pixels are decoded.
//  3. Compose: static images via [compose.Compositor.Static], animated GIFs
//     via [compose.Compositor.Animated]. A single-frame GIF is static.
//
// A Runner returns exactly one typed error (see pkg/errors) and never
// partial output.
package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/overlay/pkg/cache"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/geometry"
	"github.com/matzehuels/overlay/pkg/scene"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultMaxPayloadBytes bounds static backgrounds and overlay sources.
	DefaultMaxPayloadBytes = 20 << 20

	// DefaultMaxGIFBytes bounds animated backgrounds. It is never larger
	// than MaxPayloadBytes.
	DefaultMaxGIFBytes = 10 << 20

	// DefaultMaxDimension bounds the width and height of every decoded
	// source and of the output canvas.
	DefaultMaxDimension = 8192

	// DefaultMaxFramePixels bounds frames × canvas pixels of an animation.
	DefaultMaxFramePixels = 500_000_000

	// DefaultMaxOverlays bounds the number of overlays per request.
	DefaultMaxOverlays = 64
)

// Request file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// =============================================================================
// Limits
// =============================================================================

// Limits are the resource bounds enforced before decoding and composing.
type Limits struct {
	MaxPayloadBytes int64 `toml:"max_payload_bytes" json:"max_payload_bytes"`
	MaxGIFBytes     int64 `toml:"max_gif_bytes" json:"max_gif_bytes"`
	MaxDimension    int   `toml:"max_dimension" json:"max_dimension"`
	MaxFramePixels  int64 `toml:"max_frame_pixels" json:"max_frame_pixels"`
	MaxOverlays     int   `toml:"max_overlays" json:"max_overlays"`
}

// SetDefaults fills zero limits.
func (l *Limits) SetDefaults() {
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if l.MaxGIFBytes <= 0 {
		l.MaxGIFBytes = DefaultMaxGIFBytes
	}
	if l.MaxGIFBytes > l.MaxPayloadBytes {
		l.MaxGIFBytes = l.MaxPayloadBytes
	}
	if l.MaxDimension <= 0 {
		l.MaxDimension = DefaultMaxDimension
	}
	if l.MaxFramePixels <= 0 {
		l.MaxFramePixels = DefaultMaxFramePixels
	}
	if l.MaxOverlays <= 0 {
		l.MaxOverlays = DefaultMaxOverlays
	}
}

// FetchBytes is the largest payload any source may have.
func (l *Limits) FetchBytes() int64 {
	return l.MaxPayloadBytes
}

// =============================================================================
// Request
// =============================================================================

// Request is one render. It supports JSON and YAML serialization.
type Request struct {
	Background string           `json:"background" yaml:"background"`
	Canvas     scene.Canvas     `json:"canvas" yaml:"canvas"`
	Overlays   []scene.Overlay  `json:"overlays,omitempty" yaml:"overlays,omitempty"`
	Variant    geometry.Variant `json:"variant,omitempty" yaml:"variant,omitempty"`

	// Refresh bypasses the artifact cache lookup (the result is still stored).
	Refresh bool `json:"refresh,omitempty" yaml:"refresh,omitempty"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the request and applies defaults.
// This method is idempotent.
func (r *Request) ValidateAndSetDefaults() error {
	if r.validated {
		return nil
	}
	if strings.TrimSpace(r.Background) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "background is required")
	}

	v, err := geometry.ParseVariant(string(r.Variant))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "variant")
	}
	r.Variant = v

	r.Canvas.SetDefaults()
	if err := r.Canvas.Validate(); err != nil {
		return err
	}

	for i, o := range r.Overlays {
		if err := o.Check(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "overlay %d", i)
		}
		switch o.Kind {
		case scene.KindText:
			err = o.Text.Validate()
		case scene.KindImage:
			err = o.Image.Validate()
		}
		if err != nil {
			return err
		}
	}

	r.validated = true
	return nil
}

// Hash identifies the request's rendered output (together with the source
// content hashes, see cache.ArtifactKeyOpts).
func (r *Request) Hash() (string, error) {
	c := *r
	c.Refresh = false
	return cache.HashJSON(&c)
}

// DecodeRequest parses a JSON or YAML request. An empty format sniffs the
// data: a leading '{' means JSON, anything else YAML.
func DecodeRequest(data []byte, format string) (*Request, error) {
	if format == "" {
		format = FormatYAML
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			format = FormatJSON
		}
	}

	switch format {
	case FormatJSON:
	case FormatYAML, "yml":
		// YAML goes through JSON so the overlay union has a single decoder.
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse yaml request")
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "convert yaml request")
		}
		data = converted
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid request format: %q (must be one of: json, yaml)", format)
	}

	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, errors.Ensure(errors.ErrCodeInvalidInput, err, "parse request")
	}
	return &req, nil
}

// =============================================================================
// Result
// =============================================================================

// Result is a successful render.
type Result struct {
	RequestID   string
	Data        []byte
	Format      string
	ContentType string
	Filename    string // suggested download name, "overlay-<uuid>.<ext>"
	Width       int
	Height      int
	Frames      int

	// Diagnostics are non-fatal markup issues.
	Diagnostics []string

	Stats    Stats
	CacheHit bool
}

// Stats contains per-stage timings.
type Stats struct {
	FetchTime   time.Duration
	DecodeTime  time.Duration
	ComposeTime time.Duration
	TotalTime   time.Duration
	SourceBytes int
}
