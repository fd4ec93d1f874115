package application

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/webconf/internal/api"
	"github.com/eugenenazirov/webconf/internal/config"
)

// App encapsulates the resolved settings and the HTTP server they drive.
type App struct {
	settings *config.Settings
	resolver *config.Resolver
	result   config.LoadResult
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New resolves the configuration file at path into settings and builds the
// HTTP server. A missing or malformed file is not an error: the server starts
// on the defaults and the outcome is available through LoadResult.
func New(path string, opts config.ServerOptions, settings *config.Settings, logger *zap.Logger, resolverOpts ...config.ResolverOption) (*App, error) {
	if settings == nil {
		settings = config.NewSettings()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		resolvedPort int
		hasPort      bool
	)
	resolverOpts = append(resolverOpts,
		config.WithLogger(logger),
		config.WithPortListener(func(port int) {
			resolvedPort, hasPort = port, true
		}),
	)
	resolver := config.NewResolver(settings, resolverOpts...)
	result := resolver.Load(path)

	webRoot, err := resolveWebRoot(settings.WebRoot())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve web root: %w", err)
	}

	handler := api.NewHandler(settings)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(opts.EnableRequestLogging),
		api.WithRateLimit(opts.RateLimitRPS, opts.RateLimitBurst),
		api.WithErrorPage(resolveView(webRoot, settings.View500())),
	)

	rootHandler, err := BuildRootHandler(settings, webRoot, apiRouter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}

	port := opts.ResolvePort(resolvedPort, hasPort)
	logger.Info("server port resolved",
		zap.Int("port", port),
		zap.Bool("from_config", opts.Port == 0 && hasPort),
	)

	return &App{
		settings: settings,
		resolver: resolver,
		result:   result,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(opts, port, rootHandler),
	}, nil
}

// BuildRootHandler mounts every static folder under webRoot, routes /api/
// traffic to apiHandler and answers everything else with the 404 view when
// one is configured.
func BuildRootHandler(settings *config.Settings, webRoot string, apiHandler http.Handler, logger *zap.Logger) (http.Handler, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)

	mounted := map[string]struct{}{"/api": {}}
	for _, folder := range settings.StaticFolders() {
		prefix, ok := staticPrefix(folder)
		if !ok {
			logger.Warn("static folder skipped", zap.String("folder", folder))
			continue
		}
		if _, dup := mounted[prefix]; dup {
			continue
		}
		mounted[prefix] = struct{}{}

		dir := http.Dir(filepath.Join(webRoot, filepath.FromSlash(prefix)))
		files := http.StripPrefix(prefix, http.FileServer(dir))
		mux.Handle(prefix+"/", api.CacheControl(settings.HTTPCache(), files))
	}

	notFoundPage := resolveView(webRoot, settings.View404())
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.WritePage(w, http.StatusNotFound, notFoundPage) {
			return
		}
		http.NotFound(w, r)
	}))

	var root http.Handler = mux
	if settings.HTTPXss() {
		root = api.SecurityHeaders(root)
	}
	return root, nil
}

// NewServer creates and configures an HTTP server listening on port.
func NewServer(opts config.ServerOptions, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.Bool("dev", a.settings.IsDev()),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Settings returns the resolved settings.
func (a *App) Settings() *config.Settings {
	return a.settings
}

// Resolver returns the resolver that loaded the configuration file.
func (a *App) Resolver() *config.Resolver {
	return a.resolver
}

// LoadResult reports how the configuration file was applied.
func (a *App) LoadResult() config.LoadResult {
	return a.result
}

func resolveWebRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return filepath.Abs(root)
}

// resolveView maps a configured view to a file under webRoot.
func resolveView(webRoot, view string) string {
	if view == "" {
		return ""
	}
	if filepath.IsAbs(view) {
		return view
	}
	return filepath.Join(webRoot, filepath.FromSlash(view))
}

// staticPrefix normalises a folder name to a mux prefix. Names that would
// form an invalid or catch-all pattern are rejected.
func staticPrefix(folder string) (string, bool) {
	folder = strings.TrimSpace(folder)
	if folder == "" || strings.ContainsAny(folder, "{} \t") {
		return "", false
	}
	prefix := path.Clean("/" + strings.Trim(folder, "/"))
	if prefix == "/" {
		return "", false
	}
	return prefix, true
}
