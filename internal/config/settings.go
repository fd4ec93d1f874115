package config

import (
	"sort"
	"strings"
	"sync"
)

const defaultEncoding = "utf-8"

var defaultStaticFolders = []string{"/public", "/assets", "/static"}

// DefaultStaticFolders returns a copy of the folders every Settings starts with.
func DefaultStaticFolders() []string {
	return cloneAndSort(defaultStaticFolders)
}

// Settings holds the process-wide web configuration. Collection settings only
// grow by union; scalar settings are last-write-wins. It is safe for
// concurrent use.
type Settings struct {
	mu sync.RWMutex

	routePackages map[string]struct{}
	iocPackages   map[string]struct{}
	staticFolders map[string]struct{}

	basePackage        string
	interceptorPackage string
	encoding           string
	webRoot            string
	view404            string
	view500            string

	dev       bool
	httpXss   bool
	httpCache bool
}

// NewSettings returns Settings holding the built-in defaults.
func NewSettings() *Settings {
	s := &Settings{
		routePackages: make(map[string]struct{}),
		iocPackages:   make(map[string]struct{}),
		staticFolders: make(map[string]struct{}, len(defaultStaticFolders)),
		encoding:      defaultEncoding,
		dev:           true,
	}
	for _, folder := range defaultStaticFolders {
		s.staticFolders[folder] = struct{}{}
	}
	return s
}

// AddRoutePackages unions the non-blank names into the route packages.
func (s *Settings) AddRoutePackages(names ...string) {
	s.addTo(s.routePackages, names)
}

// AddIocPackages unions the non-blank names into the IOC packages.
func (s *Settings) AddIocPackages(names ...string) {
	s.addTo(s.iocPackages, names)
}

// AddStaticFolders unions the non-blank names into the static folders. The
// built-in folders are never removed.
func (s *Settings) AddStaticFolders(names ...string) {
	s.addTo(s.staticFolders, names)
}

func (s *Settings) addTo(set map[string]struct{}, names []string) {
	if len(names) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		set[name] = struct{}{}
	}
}

// RoutePackages returns a sorted copy of the route packages.
func (s *Settings) RoutePackages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.routePackages)
}

// IocPackages returns a sorted copy of the IOC packages.
func (s *Settings) IocPackages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.iocPackages)
}

// StaticFolders returns a sorted copy of the static folders.
func (s *Settings) StaticFolders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.staticFolders)
}

// BasePackage returns the application's root package, or "" when unset.
func (s *Settings) BasePackage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basePackage
}

// SetBasePackage sets the root package. Derived packages are not touched.
func (s *Settings) SetBasePackage(name string) {
	s.mu.Lock()
	s.basePackage = name
	s.mu.Unlock()
}

// InterceptorPackage is derived from the base package during Load unless set
// afterwards; see Resolver.Load for the ordering rule.
func (s *Settings) InterceptorPackage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interceptorPackage
}

// SetInterceptorPackage sets the package scanned for interceptors.
func (s *Settings) SetInterceptorPackage(name string) {
	s.mu.Lock()
	s.interceptorPackage = name
	s.mu.Unlock()
}

// Encoding returns the HTTP character encoding. Defaults to utf-8.
func (s *Settings) Encoding() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

// SetEncoding sets the HTTP character encoding.
func (s *Settings) SetEncoding(encoding string) {
	s.mu.Lock()
	s.encoding = encoding
	s.mu.Unlock()
}

// WebRoot returns the directory static folders and views resolve against.
func (s *Settings) WebRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webRoot
}

// SetWebRoot sets the directory static folders and views resolve against.
func (s *Settings) SetWebRoot(root string) {
	s.mu.Lock()
	s.webRoot = root
	s.mu.Unlock()
}

// View404 returns the page served for unknown paths, or "" when unset.
func (s *Settings) View404() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view404
}

// SetView404 sets the page served for unknown paths.
func (s *Settings) SetView404(view string) {
	s.mu.Lock()
	s.view404 = view
	s.mu.Unlock()
}

// View500 returns the page served after a handler panic, or "" when unset.
func (s *Settings) View500() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view500
}

// SetView500 sets the page served after a handler panic.
func (s *Settings) SetView500(view string) {
	s.mu.Lock()
	s.view500 = view
	s.mu.Unlock()
}

// IsDev reports whether development mode is on. Defaults to true.
func (s *Settings) IsDev() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dev
}

// SetDev switches development mode.
func (s *Settings) SetDev(dev bool) {
	s.mu.Lock()
	s.dev = dev
	s.mu.Unlock()
}

// HTTPXss reports whether XSS protection headers are sent.
func (s *Settings) HTTPXss() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpXss
}

// SetHTTPXss toggles the XSS protection headers.
func (s *Settings) SetHTTPXss(enabled bool) {
	s.mu.Lock()
	s.httpXss = enabled
	s.mu.Unlock()
}

// HTTPCache reports whether static responses are marked cacheable.
func (s *Settings) HTTPCache() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpCache
}

// SetHTTPCache toggles caching of static responses.
func (s *Settings) SetHTTPCache(enabled bool) {
	s.mu.Lock()
	s.httpCache = enabled
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of Settings.
type Snapshot struct {
	BasePackage        string   `json:"basePackage,omitempty" yaml:"base_package,omitempty"`
	InterceptorPackage string   `json:"interceptorPackage,omitempty" yaml:"interceptor_package,omitempty"`
	RoutePackages      []string `json:"routePackages" yaml:"route_packages"`
	IocPackages        []string `json:"iocPackages" yaml:"ioc_packages"`
	StaticFolders      []string `json:"staticFolders" yaml:"static_folders"`
	Encoding           string   `json:"encoding" yaml:"encoding"`
	WebRoot            string   `json:"webRoot,omitempty" yaml:"web_root,omitempty"`
	View404            string   `json:"view404,omitempty" yaml:"view_404,omitempty"`
	View500            string   `json:"view500,omitempty" yaml:"view_500,omitempty"`
	Dev                bool     `json:"dev" yaml:"dev"`
	HTTPXss            bool     `json:"httpXss" yaml:"http_xss"`
	HTTPCache          bool     `json:"httpCache" yaml:"http_cache"`
}

// Snapshot copies every setting under a single read lock.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		BasePackage:        s.basePackage,
		InterceptorPackage: s.interceptorPackage,
		RoutePackages:      setToSlice(s.routePackages),
		IocPackages:        setToSlice(s.iocPackages),
		StaticFolders:      setToSlice(s.staticFolders),
		Encoding:           s.encoding,
		WebRoot:            s.webRoot,
		View404:            s.view404,
		View500:            s.view500,
		Dev:                s.dev,
		HTTPXss:            s.httpXss,
		HTTPCache:          s.httpCache,
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func cloneAndSort(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	sort.Strings(out)
	return out
}
