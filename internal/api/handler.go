package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/eugenenazirov/webconf/internal/config"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// SettingsView is the read side of config.Settings the handlers need.
type SettingsView interface {
	Snapshot() config.Snapshot
	IsDev() bool
	Encoding() string
}

// Handler serves diagnostic endpoints over the resolved settings.
type Handler struct {
	settings SettingsView
	clock    func() time.Time
	started  time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler reading from settings.
func NewHandler(settings SettingsView, opts ...HandlerOption) *Handler {
	h := &Handler{
		settings: settings,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	now := h.clock()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now,
		Uptime:    now.Sub(h.started).String(),
		Dev:       h.settings.IsDev(),
	}
	writeJSONCharset(w, http.StatusOK, resp, h.settings.Encoding())
}

// handleSettings exposes the resolved settings in development mode only.
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !h.settings.IsDev() {
		http.NotFound(w, r)
		return
	}
	writeJSONCharset(w, http.StatusOK, h.settings.Snapshot(), h.settings.Encoding())
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Dev       bool      `json:"dev"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSONCharset(w, status, payload, "utf-8")
}

// writeJSONCharset writes payload transcoded into charset. Charsets the
// encoding index does not know, or text the charset cannot represent, fall
// back to UTF-8 so the label always matches the bytes.
func writeJSONCharset(w http.ResponseWriter, status int, payload any, charset string) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)

	body, label := transcode(buf.Bytes(), charset)
	contentType := mime.FormatMediaType("application/json", map[string]string{"charset": label})
	if contentType == "" {
		body, contentType = buf.Bytes(), "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(body)
}

func transcode(body []byte, charset string) ([]byte, string) {
	if charset == "" {
		return body, "utf-8"
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return body, "utf-8"
	}
	out, err := enc.NewEncoder().Bytes(body)
	if err != nil {
		return body, "utf-8"
	}
	return out, charset
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

// WritePage writes the file at path as an HTML page with the given status.
// It reports false, writing nothing, when path is empty or unreadable.
func WritePage(w http.ResponseWriter, status int, path string) bool {
	if path == "" {
		return false
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return true
}
