package environment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const delim = "."

var (
	// ErrNotFound indicates the key is absent from the environment.
	ErrNotFound = errors.New("key not found")
	// ErrEmptyPath indicates Load was called without a file path.
	ErrEmptyPath = errors.New("environment path is empty")
	// ErrUnsupportedFormat indicates the file format could not be determined.
	ErrUnsupportedFormat = errors.New("unsupported environment format")
	// ErrNotScalar indicates the key holds a table rather than a single value.
	ErrNotScalar = errors.New("value is not a scalar")
)

// Option configures Load.
type Option func(*options)

type options struct {
	format    Format
	envPrefix string
}

// WithFormat forces the file format instead of detecting it from the extension.
func WithFormat(format Format) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithEnvPrefix overlays process environment variables carrying the prefix on
// top of the file values. The prefix is stripped, the rest is lowercased, a
// double underscore becomes a dash and a single underscore becomes a dot:
// PREFIX_APP_BASE__PACKAGE resolves to app.base-package.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// Environment is a read-only key/value store loaded from a single file.
type Environment struct {
	path string
	k    *koanf.Koanf
}

// Load reads the file at path into a new Environment.
func Load(path string, opts ...Option) (*Environment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	format := o.format
	if format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}

	k := koanf.New(delim)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if o.envPrefix != "" {
		if err := k.Load(env.Provider(o.envPrefix, delim, envKeyTransform(o.envPrefix)), nil); err != nil {
			return nil, fmt.Errorf("load environment variables: %w", err)
		}
	}

	return &Environment{path: path, k: k}, nil
}

func envKeyTransform(prefix string) func(string) string {
	return func(name string) string {
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		key = strings.ReplaceAll(key, "__", "-")
		return strings.ReplaceAll(key, "_", delim)
	}
}

// Path returns the file the environment was loaded from.
func (e *Environment) Path() string {
	return e.path
}

// Keys returns every leaf key in sorted order.
func (e *Environment) Keys() []string {
	return e.k.Keys()
}

// Has reports whether key holds a scalar value.
func (e *Environment) Has(key string) bool {
	_, ok := e.Lookup(key)
	return ok
}

// Lookup returns the string form of the value stored under key.
func (e *Environment) Lookup(key string) (string, bool) {
	value, err := e.raw(key)
	return value, err == nil
}

// String returns the value stored under key.
func (e *Environment) String(key string) (string, error) {
	return e.raw(key)
}

// Int returns the value stored under key parsed as a base-10 integer.
func (e *Environment) Int(key string) (int, error) {
	value, err := e.raw(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s as int: %w", key, err)
	}
	return n, nil
}

// Bool returns the value stored under key parsed with strconv.ParseBool.
func (e *Environment) Bool(key string) (bool, error) {
	value, err := e.raw(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("parse %s as bool: %w", key, err)
	}
	return b, nil
}

// StringOr returns the value under key, or def when the key is absent.
func (e *Environment) StringOr(key, def string) string {
	if value, err := e.String(key); err == nil {
		return value
	}
	return def
}

// IntOr returns the integer under key, or def when it is absent or malformed.
func (e *Environment) IntOr(key string, def int) int {
	if value, err := e.Int(key); err == nil {
		return value
	}
	return def
}

// BoolOr returns the boolean under key, or def when it is absent or malformed.
func (e *Environment) BoolOr(key string, def bool) bool {
	if value, err := e.Bool(key); err == nil {
		return value
	}
	return def
}

func (e *Environment) raw(key string) (string, error) {
	if e == nil || e.k == nil || !e.k.Exists(key) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	stored := e.k.Get(key)
	if stored == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	value, ok := scalar(stored)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotScalar, key)
	}
	return value, nil
}

// scalar renders a decoded value as the string a properties file would hold.
// Lists are joined with commas.
func scalar(v interface{}) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case bool:
		return strconv.FormatBool(value), true
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(value), true
	case []interface{}:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := scalar(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}
