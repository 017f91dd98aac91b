// Package app wires a batch-edit script, the grid and the report writer
// together. It knows nothing about flags or exit codes; see package cli.
package app
