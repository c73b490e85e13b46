// Package entity models the content objects that are exported and provides a
// YAML-backed repository used to load them and to persist identifier
// write-backs.
package entity
