package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eugenenazirov/webconf/internal/environment"
)

// Recognised configuration keys.
const (
	KeyDev          = "app.dev"
	KeyBasePackage  = "app.base-package"
	KeyIoc          = "app.ioc"
	KeyView404      = "app.view.404"
	KeyView500      = "app.view.500"
	KeyHTTPCache    = "http.cache"
	KeyHTTPXss      = "http.xss"
	KeyHTTPEncoding = "http.encoding"
	KeyHTTPFilters  = "http.filters"
	KeyServerPort   = "server.port"
)

// Source is a read-only key/value configuration provider. Getters must wrap
// environment.ErrNotFound when a key is absent.
type Source interface {
	String(key string) (string, error)
	Int(key string) (int, error)
	Bool(key string) (bool, error)
}

// Opener acquires a Source for a path.
type Opener func(path string) (Source, error)

// EnvironmentOpener opens files with environment.Load.
func EnvironmentOpener(opts ...environment.Option) Opener {
	return func(path string) (Source, error) {
		env, err := environment.Load(path, opts...)
		if err != nil {
			return nil, err
		}
		return env, nil
	}
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOpener replaces the default file-backed opener.
func WithOpener(open Opener) ResolverOption {
	return func(r *Resolver) {
		if open != nil {
			r.open = open
		}
	}
}

// WithPortListener registers fn to receive the port resolved from
// server.port. It is called at most once, during the resolving Load.
func WithPortListener(fn func(port int)) ResolverOption {
	return func(r *Resolver) {
		r.onPort = fn
	}
}

// WithLogger sets the logger Load reports its outcome to.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type sourceHolder struct {
	src Source
}

// Resolver applies a configuration source to Settings exactly once.
type Resolver struct {
	settings *Settings
	open     Opener
	onPort   func(int)
	logger   *zap.Logger

	loadMu      sync.Mutex
	initialized atomic.Bool
	env         atomic.Pointer[sourceHolder]
}

// NewResolver returns a Resolver writing into settings. A nil settings gets
// fresh defaults.
func NewResolver(settings *Settings, opts ...ResolverOption) *Resolver {
	if settings == nil {
		settings = NewSettings()
	}
	r := &Resolver{
		settings: settings,
		open:     EnvironmentOpener(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the settings the resolver writes into.
func (r *Resolver) Settings() *Settings {
	return r.settings
}

// Environment returns the source retained by the resolving Load, or nil.
func (r *Resolver) Environment() Source {
	if h := r.env.Load(); h != nil {
		return h.src
	}
	return nil
}

// Initialized reports whether a Load has acquired its source.
func (r *Resolver) Initialized() bool {
	return r.initialized.Load()
}

// Load reads path and resolves the recognised keys into Settings. Only the
// first call that acquires its source does any work; later calls return
// StatusSkipped. A source that cannot be acquired leaves Settings untouched
// and the resolver open for another attempt. Load never fails its caller.
//
// Keys absent from the source leave their fields unchanged, so values set on
// Settings before Load survive unless the file names them.
//
// Load sets the interceptor package whenever app.base-package is present, so
// SetInterceptorPackage must be called after Load to take precedence.
func (r *Resolver) Load(path string) (result LoadResult) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	result.Path = path
	defer func() {
		if rec := recover(); rec != nil {
			result.Status = StatusFailed
			result.addIssue(fmt.Errorf("%w: %v", ErrLoadPanic, rec))
		}
		r.logResult(result)
	}()

	if r.initialized.Load() {
		result.Status = StatusSkipped
		return result
	}

	src, err := r.open(path)
	if err == nil && src == nil {
		err = ErrNoSource
	}
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("open %s: %w", path, err)
		return result
	}

	r.env.Store(&sourceHolder{src: src})
	r.initialized.Store(true)

	r.resolve(src, &result)

	result.Status = StatusApplied
	if result.Err != nil {
		result.Status = StatusPartial
	}
	return result
}

func (r *Resolver) resolve(src Source, result *LoadResult) {
	s := r.settings

	if v, ok := lookup(src.Bool, KeyDev, result); ok {
		s.SetDev(v)
	}
	if v, ok := lookup(src.Bool, KeyHTTPCache, result); ok {
		s.SetHTTPCache(v)
	}
	if v, ok := lookup(src.Bool, KeyHTTPXss, result); ok {
		s.SetHTTPXss(v)
	}
	if v, ok := lookupText(src, KeyHTTPEncoding, result); ok {
		s.SetEncoding(v)
	}
	if v, ok := lookupText(src, KeyIoc, result); ok {
		s.AddIocPackages(v)
	}
	if v, ok := lookupText(src, KeyView500, result); ok {
		s.SetView500(v)
	}
	if v, ok := lookupText(src, KeyView404, result); ok {
		s.SetView404(v)
	}

	if port, ok := lookup(src.Int, KeyServerPort, result); ok {
		result.port, result.hasPort = port, true
		if r.onPort != nil {
			r.onPort(port)
		}
	}

	// http.filters has always fed the static folders.
	if v, ok := lookupText(src, KeyHTTPFilters, result); ok {
		s.AddStaticFolders(splitList(v)...)
	}

	if base, ok := lookupText(src, KeyBasePackage, result); ok {
		s.SetBasePackage(base)
		s.AddIocPackages(base + ".service.*")
		s.AddRoutePackages(base + ".controller")
		s.SetInterceptorPackage(base + ".interceptor")
	}
}

// lookup returns the value under key. Absent keys are skipped silently; other
// errors are recorded on result and the value is skipped.
func lookup[T any](get func(string) (T, error), key string, result *LoadResult) (T, bool) {
	v, err := get(key)
	if err != nil {
		if !errors.Is(err, environment.ErrNotFound) {
			result.addIssue(fmt.Errorf("resolve %s: %w", key, err))
		}
		var zero T
		return zero, false
	}
	return v, true
}

// lookupText is lookup for strings, treating blank values as absent.
func lookupText(src Source, key string, result *LoadResult) (string, bool) {
	v, ok := lookup(src.String, key, result)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *Resolver) logResult(result LoadResult) {
	fields := []zap.Field{
		zap.String("path", result.Path),
		zap.Stringer("status", result.Status),
	}
	if port, ok := result.Port(); ok {
		fields = append(fields, zap.Int("port", port))
	}

	switch result.Status {
	case StatusSkipped:
		r.logger.Debug("configuration already loaded", fields...)
	case StatusPartial, StatusFailed:
		r.logger.Warn("configuration load incomplete", append(fields, zap.Error(result.Err))...)
	default:
		r.logger.Info("configuration loaded", fields...)
	}
}
