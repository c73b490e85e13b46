// Package preflight provides readiness checks for the filesystem paths, the
// field configuration and the LTP backend that exports depend on.
//
// The CLI "ltpexport preflight" command prints RunAll; "serve" runs it once at
// startup and refuses to start when a check fails.
package preflight
