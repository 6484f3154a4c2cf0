// Package server implements the file drop server: a single accept loop over
// a raw TCP listener, the route table and its handlers, authentication with
// the shared token cookie, and the mapping of failures to status codes.
// Optional collaborators (object mirror, audit trail, upload-root watcher)
// are supplied through Config and never affect the response a client gets.
package server
