// Package server implements the HTTP surface of filedrop: the /v1/file
// routes, the /healthz probe and /metrics. It wires the file service and
// the health store into a ServeMux and provides lifecycle helpers used by
// tests and the production binary.
package server
