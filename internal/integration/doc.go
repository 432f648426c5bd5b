// Package integration exercises the client core end to end against the
// in-process development server.
package integration
