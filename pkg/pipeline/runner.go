package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register the WebP decoder for overlay sources
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/overlay/pkg/cache"
	"github.com/matzehuels/overlay/pkg/compose"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/fetch"
	"github.com/matzehuels/overlay/pkg/fonts"
	"github.com/matzehuels/overlay/pkg/observability"
	"github.com/matzehuels/overlay/pkg/scene"
)

// fetchConcurrency bounds in-flight source fetches per request.
const fetchConcurrency = 8

// Runner executes renders with caching. It holds no per-request state, so
// one Runner serves concurrent requests.
type Runner struct {
	Cache       cache.Cache
	Keyer       cache.Keyer
	Fetcher     *fetch.Fetcher
	Fonts       *fonts.Loader
	Limits      Limits
	JPEGQuality int
	Logger      *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// A nil keyer means DefaultKeyer, a nil cache disables caching and a nil
// logger means log.Default(). The fetcher shares the cache and does not
// read local files; replace Fetcher to change that.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	var limits Limits
	limits.SetDefaults()
	return &Runner{
		Cache:       c,
		Keyer:       keyer,
		Fetcher:     fetch.New(c, keyer, fetch.Options{MaxBytes: limits.FetchBytes(), Logger: logger}),
		Fonts:       fonts.Shared,
		Limits:      limits,
		JPEGQuality: compose.DefaultJPEGQuality,
		Logger:      logger,
	}
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// Render runs fetch → decode → compose for req.
func (r *Runner) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := req.ValidateAndSetDefaults(); err != nil {
		return nil, errors.Ensure(errors.ErrCodeInvalidInput, err, "invalid request")
	}
	limits := r.Limits
	limits.SetDefaults()
	if n := len(req.Overlays); n > limits.MaxOverlays {
		return nil, errors.SizeLimit("overlays", int64(n), int64(limits.MaxOverlays))
	}
	if r.JPEGQuality < 0 || r.JPEGQuality > 100 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "jpeg quality must be within [1, 100], got %d", r.JPEGQuality)
	}

	id := uuid.NewString()
	logger := r.Logger.With("request", id)
	result := &Result{RequestID: id}

	texts, images, err := scene.Split(req.Overlays)
	if err != nil {
		return nil, err
	}

	// Stage 1: Fetch
	fetchStart := time.Now()
	bg, assets, err := r.fetchAll(ctx, id, req.Background, images)
	if err != nil {
		return nil, err
	}
	result.Stats.FetchTime = time.Since(fetchStart)
	result.Stats.SourceBytes = len(bg.Data)
	for _, a := range assets {
		if a != nil {
			result.Stats.SourceBytes += len(a.Data)
		}
	}
	logger.Debug("fetched sources", "count", len(assets)+1, "bytes", result.Stats.SourceBytes, "duration", result.Stats.FetchTime)

	var font *fonts.Handle
	if len(texts) > 0 {
		if font, err = r.Fonts.Get(ctx); err != nil {
			return nil, errors.Ensure(errors.ErrCodeFont, err, "load font")
		}
	}

	key, cacheable := r.artifactKey(&req, bg, assets, font)
	if cacheable && !req.Refresh {
		if art, ok := r.cachedArtifact(ctx, key); ok {
			art.fill(result)
			result.CacheHit = true
			result.Stats.TotalTime = time.Since(start)
			logger.Info("served from cache", "format", result.Format, "bytes", len(result.Data))
			return result, nil
		}
	}

	// Stage 2: Decode
	decodeStart := time.Now()
	for i := range images {
		if assets[i] != nil {
			img, err := decodeStill(assets[i], limits)
			if err != nil {
				return nil, errors.Wrap(errors.GetCode(err), err, "overlay %q", images[i].Source)
			}
			images[i].Image = img
		}
		if err := images[i].Normalize(); err != nil {
			return nil, err
		}
	}

	var (
		still image.Image
		anim  *gif.GIF
	)
	if bg.ContentType == "image/gif" {
		g, err := decodeGIF(bg, req.Canvas, limits)
		if err != nil {
			return nil, err
		}
		if len(g.Image) == 1 {
			still = flatten(g)
		} else {
			anim = g
		}
	} else if still, err = decodeStill(bg, limits); err != nil {
		return nil, err
	}
	result.Stats.DecodeTime = time.Since(decodeStart)

	var natural image.Point
	if anim != nil {
		natural = image.Pt(anim.Config.Width, anim.Config.Height)
	} else {
		natural = still.Bounds().Size()
	}
	canvas := req.Canvas.Sized(natural.X, natural.Y)
	if err := checkDimensions("canvas", canvas.Width, canvas.Height, limits); err != nil {
		return nil, err
	}

	// Stage 3: Compose
	observability.Render().OnRenderStart(ctx, id, anim != nil)
	composeStart := time.Now()

	comp := compose.New(font, logger)
	if r.JPEGQuality > 0 {
		comp.JPEGQuality = r.JPEGQuality
	}
	s := compose.Scene{Canvas: canvas, Texts: texts, Images: images, Variant: req.Variant}

	var out *compose.Output
	if anim != nil {
		out, err = comp.Animated(anim, s)
	} else {
		out, err = comp.Static(still, s)
	}
	result.Stats.ComposeTime = time.Since(composeStart)
	if err != nil {
		observability.Render().OnRenderComplete(ctx, id, "", 0, result.Stats.ComposeTime, err)
		return nil, errors.Ensure(errors.ErrCodeInternal, err, "compose")
	}
	observability.Render().OnRenderComplete(ctx, id, out.Format, out.Frames, result.Stats.ComposeTime, nil)

	art := newArtifact(out)
	art.fill(result)
	result.Stats.TotalTime = time.Since(start)

	if cacheable {
		r.storeArtifact(ctx, key, art)
	}

	logger.Info("rendered",
		"format", result.Format,
		"width", result.Width,
		"height", result.Height,
		"frames", result.Frames,
		"bytes", len(result.Data),
		"duration", result.Stats.TotalTime)
	return result, nil
}

// fetchAll retrieves the background and the overlay sources concurrently.
// The first failure cancels the rest. Overlays that already carry pixels
// are not fetched and get a nil asset.
func (r *Runner) fetchAll(ctx context.Context, id, background string, images []scene.ImageOverlay) (*fetch.Asset, []*fetch.Asset, error) {
	refs := make([]string, len(images)+1)
	refs[0] = background
	for i, o := range images {
		if o.Image == nil {
			refs[i+1] = o.Source
		}
	}

	assets := make([]*fetch.Asset, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			observability.Render().OnFetchStart(gctx, id, ref)
			a, err := r.Fetcher.Fetch(gctx, ref)
			size := 0
			if a != nil {
				size = len(a.Data)
			}
			observability.Render().OnFetchComplete(gctx, id, ref, size, time.Since(start), err)
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Ensure(errors.ErrCodeFetch, err, "fetch sources")
	}
	return assets[0], assets[1:], nil
}

// =============================================================================
// Decoding
// =============================================================================

func checkDimensions(what string, w, h int, l Limits) error {
	if w > l.MaxDimension {
		return errors.SizeLimit(what+" width", int64(w), int64(l.MaxDimension))
	}
	if h > l.MaxDimension {
		return errors.SizeLimit(what+" height", int64(h), int64(l.MaxDimension))
	}
	if w <= 0 || h <= 0 {
		return errors.New(errors.ErrCodeDecode, "%s has no pixels (%dx%d)", what, w, h)
	}
	return nil
}

// decodeStill decodes a single-frame image after checking its header.
func decodeStill(a *fetch.Asset, l Limits) (image.Image, error) {
	if n := int64(len(a.Data)); n > l.MaxPayloadBytes {
		return nil, errors.SizeLimit("image bytes", n, l.MaxPayloadBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(a.Data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "read image header")
	}
	if err := checkDimensions(format+" image", cfg.Width, cfg.Height, l); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(a.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode %s image", format)
	}
	return img, nil
}

// decodeGIF decodes every frame of a GIF. The byte size, the logical screen,
// the decoded frame area and, for animations, the frames × canvas pixel
// budget are all checked from the block structure before any frame is
// decompressed.
func decodeGIF(a *fetch.Asset, cv scene.Canvas, l Limits) (*gif.GIF, error) {
	if n := int64(len(a.Data)); n > l.MaxGIFBytes {
		return nil, errors.SizeLimit("gif bytes", n, l.MaxGIFBytes)
	}
	info, err := scanGIF(a.Data)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions("gif", info.Width, info.Height, l); err != nil {
		return nil, err
	}
	if info.FramePixels > l.MaxFramePixels {
		return nil, errors.SizeLimit("gif frame pixels", info.FramePixels, l.MaxFramePixels)
	}
	if info.Frames > 1 {
		c := cv.Sized(info.Width, info.Height)
		if err := checkDimensions("canvas", c.Width, c.Height, l); err != nil {
			return nil, err
		}
		if px := int64(info.Frames) * int64(c.Width) * int64(c.Height); px > l.MaxFramePixels {
			return nil, errors.SizeLimit("animation frames × pixels", px, l.MaxFramePixels)
		}
	}

	g, err := gif.DecodeAll(bytes.NewReader(a.Data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, err, "decode gif")
	}
	if len(g.Image) == 0 {
		return nil, errors.New(errors.ErrCodeDecode, "gif has no frames")
	}
	return g, nil
}

// flatten draws a one-frame GIF onto its logical screen.
func flatten(g *gif.GIF) image.Image {
	frame := g.Image[0]
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		return frame
	}
	return imaging.Paste(imaging.New(w, h, color.Transparent), frame, frame.Bounds().Min)
}

// =============================================================================
// Artifact cache
// =============================================================================

// artifact is the cached form of a render.
type artifact struct {
	Data        []byte   `json:"data"`
	Format      string   `json:"format"`
	ContentType string   `json:"content_type"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Frames      int      `json:"frames"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

func newArtifact(out *compose.Output) *artifact {
	a := &artifact{
		Data:        out.Data,
		Format:      out.Format,
		ContentType: out.ContentType,
		Width:       out.Width,
		Height:      out.Height,
		Frames:      out.Frames,
	}
	for _, d := range out.Diagnostics {
		a.Diagnostics = append(a.Diagnostics, errors.UserMessage(d))
	}
	return a
}

func (a *artifact) fill(res *Result) {
	res.Data = a.Data
	res.Format = a.Format
	res.ContentType = a.ContentType
	res.Width = a.Width
	res.Height = a.Height
	res.Frames = a.Frames
	res.Diagnostics = a.Diagnostics
	res.Filename = "overlay-" + res.RequestID + "." + (&compose.Output{Format: a.Format}).Ext()
}

// artifactKey derives the cache key from the request and the content of its
// sources. Requests with overlays attached in memory are not cacheable.
func (r *Runner) artifactKey(req *Request, bg *fetch.Asset, assets []*fetch.Asset, font *fonts.Handle) (string, bool) {
	opts := cache.ArtifactKeyOpts{
		Assets:      []string{bg.Hash},
		JPEGQuality: r.JPEGQuality,
	}
	for _, a := range assets {
		if a == nil {
			return "", false
		}
		opts.Assets = append(opts.Assets, a.Hash)
	}
	if font != nil {
		opts.Font = font.Name()
	}
	h, err := req.Hash()
	if err != nil {
		r.Logger.Warn("request not hashable, skipping cache", "err", err)
		return "", false
	}
	return r.Keyer.ArtifactKey(h, opts), true
}

func (r *Runner) cachedArtifact(ctx context.Context, key string) (*artifact, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("artifact cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil || len(a.Data) == 0 {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, "artifact")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "artifact")
	return &a, true
}

func (r *Runner) storeArtifact(ctx context.Context, key string, a *artifact) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		r.Logger.Warn("artifact cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "artifact", len(data))
}
