// Package textutil provides small string helpers shared by the exporters:
// filename sanitization and ASCII transliteration for backend-facing names.
package textutil
