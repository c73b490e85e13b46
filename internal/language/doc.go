// Package language normalizes entity language codes to BCP 47 tags.
package language
