// Package dirlock provides the advisory lock used to serialize writers of a
// staging directory, plus a flock-based single-instance guard for long-running
// commands.
//
// A directory is locked while a file named "lock" exists inside it. The default
// marker mode checks for the file and creates it in two steps, so concurrent
// writers can both proceed and the last writer wins. The exclusive mode creates
// the marker atomically.
package dirlock
