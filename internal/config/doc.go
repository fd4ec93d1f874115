// Package config resolves the web host's settings. Settings accumulates
// package and folder collections by union and holds last-write-wins scalars;
// Resolver applies a configuration file to Settings exactly once, deriving
// controller, service and interceptor packages from app.base-package and
// never failing startup on a missing or malformed file. ServerOptions carries
// the host server's runtime knobs with precedence: CLI flags > Environment
// variables > Defaults.
package config
