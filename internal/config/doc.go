// Package config loads, normalizes, and validates ltpexport configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for backend
// credentials such as LTPEXPORT_AM_USERNAME. The Config type centralizes every
// knob the exporter, queue worker, and CLI need: staging roots, the selected
// LTP system and its connection settings, the field configuration, and lock
// and polling intervals.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors. A
// malformed field configuration or an unknown LTP system is rejected here,
// before anything touches the staging tree.
package config
