// Package application wires the configuration resolver into the host HTTP
// server. It runs the one-shot resolver, receives the port derived from
// server.port, mounts the resolved static folders and error views, and builds
// the http.Server, keeping main focused on CLI parsing and orchestration.
package application
