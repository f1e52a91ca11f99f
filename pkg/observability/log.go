package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports every event to a logger at debug level, failures at warn.
// It implements RenderHooks, CacheHooks and HTTPHooks.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks writing to logger (log.Default() when nil).
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger.WithPrefix("obs")}
}

// Install registers h for every hook category.
func (h *LogHooks) Install() {
	SetRenderHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnFetchStart(_ context.Context, requestID, ref string) {
	h.logger.Debug("fetch start", "request", requestID, "ref", ref)
}

func (h *LogHooks) OnFetchComplete(_ context.Context, requestID, ref string, size int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("fetch failed", "request", requestID, "ref", ref, "duration", d, "err", err)
		return
	}
	h.logger.Debug("fetch done", "request", requestID, "ref", ref, "bytes", size, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, requestID string, animated bool) {
	h.logger.Debug("render start", "request", requestID, "animated", animated)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, requestID, format string, frames int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("render failed", "request", requestID, "duration", d, "err", err)
		return
	}
	h.logger.Debug("render done", "request", requestID, "format", format, "frames", frames, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Warn("http error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ RenderHooks = (*LogHooks)(nil)
	_ CacheHooks  = (*LogHooks)(nil)
	_ HTTPHooks   = (*LogHooks)(nil)
)
