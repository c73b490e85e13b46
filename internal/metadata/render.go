package metadata

import (
	"regexp"
	"strings"

	"ltpexport/internal/entity"
)

var tokenPattern = regexp.MustCompile(`\[([^\[\]\s]+)\]`)

// Render replaces every [token] in template with fields[token]. Unknown tokens
// are cleared.
func Render(template string, fields map[string]string) string {
	if !strings.Contains(template, "[") {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		return fields[match[1:len(match)-1]]
	})
}

// Tokens builds the token snapshot of e in lang. Keys are "<type>:<name>";
// translation values override base field values.
func Tokens(e *entity.Entity, lang string) map[string]string {
	prefix := e.Type + ":"
	out := make(map[string]string, len(e.Fields)+8)
	for name, value := range e.Fields {
		out[prefix+name] = value
	}
	for name, value := range e.Translation(lang) {
		out[prefix+name] = value
	}
	out[prefix+"id"] = e.ID
	out[prefix+"uuid"] = e.UUID
	out[prefix+"bundle"] = e.Bundle
	out[prefix+"langcode"] = lang
	out[prefix+"status"] = status(e)
	return out
}
