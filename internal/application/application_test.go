package application

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/webconf/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewAppliesConfigurationFile(t *testing.T) {
	root := t.TempDir()
	confPath := filepath.Join(root, "app.properties")
	writeFile(t, confPath, "app.base-package=com.acme\nserver.port=9123\nhttp.xss=true\n")

	settings := config.NewSettings()
	settings.SetWebRoot(root)

	app, err := New(confPath, baseTestOptions(), settings, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if app.Server().Addr != ":9123" {
		t.Fatalf("expected port from configuration, got %s", app.Server().Addr)
	}
	if app.LoadResult().Status != config.StatusApplied {
		t.Fatalf("expected applied load, got %s", app.LoadResult().Status)
	}
	if app.Settings().InterceptorPackage() != "com.acme.interceptor" {
		t.Fatalf("expected derived interceptor package, got %q", app.Settings().InterceptorPackage())
	}
	if app.Resolver().Environment() == nil {
		t.Fatalf("expected environment to be retained")
	}
	if app.router == nil {
		t.Fatalf("expected router to be initialized")
	}
}

func TestNewFallsBackOnMissingFile(t *testing.T) {
	app, err := New(filepath.Join(t.TempDir(), "absent.properties"), baseTestOptions(), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("missing configuration must not fail startup: %v", err)
	}

	if app.LoadResult().Status != config.StatusFailed {
		t.Fatalf("expected failed load, got %s", app.LoadResult().Status)
	}
	if app.Server().Addr != ":9000" {
		t.Fatalf("expected default port, got %s", app.Server().Addr)
	}
	if !app.Settings().IsDev() {
		t.Fatalf("expected defaults to be kept")
	}
}

func TestNewPortOverrideWins(t *testing.T) {
	root := t.TempDir()
	confPath := filepath.Join(root, "app.properties")
	writeFile(t, confPath, "server.port=9123\n")

	opts := baseTestOptions()
	opts.Port = 8088

	app, err := New(confPath, opts, nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if app.Server().Addr != ":8088" {
		t.Fatalf("expected override port, got %s", app.Server().Addr)
	}
}

func TestNewServerAppliesOptions(t *testing.T) {
	opts := baseTestOptions()
	handler := http.NewServeMux()

	server := NewServer(opts, 9090, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != opts.ReadHeaderTimeout ||
		server.WriteTimeout != opts.WriteTimeout ||
		server.IdleTimeout != opts.IdleTimeout {
		t.Fatalf("server timeouts do not match options")
	}
}

func TestBuildRootHandler(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "index.txt"), "hello")
	writeFile(t, filepath.Join(root, "css", "app.css"), "body{}")
	writeFile(t, filepath.Join(root, "errors", "404.html"), "<h1>missing</h1>")

	settings := config.NewSettings()
	settings.AddStaticFolders("css", "/css/")
	settings.SetView404("errors/404.html")
	settings.SetHTTPXss(true)
	settings.SetHTTPCache(true)

	apiInvoked := false
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiInvoked = true
		w.WriteHeader(http.StatusNoContent)
	})

	handler, err := BuildRootHandler(settings, root, apiHandler, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("BuildRootHandler returned error: %v", err)
	}

	t.Run("serves default static folder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/index.txt", nil))

		if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
			t.Fatalf("expected static file, got %d %q", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Cache-Control") != "public, max-age=3600" {
			t.Fatalf("expected cacheable static response")
		}
		if rec.Header().Get("X-XSS-Protection") == "" {
			t.Fatalf("expected XSS header when http.xss is on")
		}
	})

	t.Run("serves configured folder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/app.css", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("renders 404 view", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

		if rec.Code != http.StatusNotFound || rec.Body.String() != "<h1>missing</h1>" {
			t.Fatalf("expected 404 view, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("forwards api traffic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		if rec.Code != http.StatusNoContent || !apiInvoked {
			t.Fatalf("expected API handler to be invoked, got %d", rec.Code)
		}
	})
}

func TestBuildRootHandlerWithoutViews(t *testing.T) {
	settings := config.NewSettings()
	handler, err := BuildRootHandler(settings, t.TempDir(), http.NotFoundHandler(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("BuildRootHandler returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected plain 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-XSS-Protection") != "" {
		t.Fatalf("expected no XSS header when http.xss is off")
	}
}

func TestStaticPrefix(t *testing.T) {
	tests := []struct {
		folder string
		want   string
		ok     bool
	}{
		{"/public", "/public", true},
		{"css", "/css", true},
		{"/css/", "/css", true},
		{"a/b", "/a/b", true},
		{"/", "", false},
		{"  ", "", false},
		{"/{id}", "", false},
		{"with space", "", false},
	}
	for _, tt := range tests {
		got, ok := staticPrefix(tt.folder)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("staticPrefix(%q) = %q, %v; want %q, %v", tt.folder, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveView(t *testing.T) {
	if got := resolveView("/srv", ""); got != "" {
		t.Fatalf("expected empty view, got %q", got)
	}
	if got := resolveView("/srv", "/abs/500.html"); got != "/abs/500.html" {
		t.Fatalf("expected absolute view unchanged, got %q", got)
	}
	if got := resolveView("/srv", "views/500.html"); got != filepath.Join("/srv", "views", "500.html") {
		t.Fatalf("expected view under web root, got %q", got)
	}
}

func baseTestOptions() config.ServerOptions {
	return config.ServerOptions{
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}
