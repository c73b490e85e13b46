package language

import (
	"sort"
	"strings"

	xlang "golang.org/x/text/language"
)

// Undetermined is the tag used when an entity carries no language.
const Undetermined = "und"

// Normalize returns the canonical BCP 47 form of code ("EN" -> "en",
// "eng" -> "en", "pt_br" -> "pt-BR"). Empty input yields "und". Codes that do
// not parse are lower-cased and returned unchanged so site-specific language
// codes still round-trip.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return Undetermined
	}
	tag, err := xlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(code)
	}
	return tag.String()
}

// Valid reports whether code parses as a BCP 47 tag.
func Valid(code string) bool {
	_, err := xlang.Parse(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
	return err == nil
}

// NormalizeList normalizes, deduplicates and sorts language codes.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		norm := Normalize(code)
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}
