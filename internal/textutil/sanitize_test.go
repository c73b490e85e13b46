package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"scan.tif":          "scan.tif",
		"  a/b\\c:d*.tif  ": "a-b-c-d-.tif",
		`what?"<>|.png`:     "what.png",
		"   ":               "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestASCIIFold(t *testing.T) {
	cases := map[string]string{
		"demo_nid_42.zip_1700000000": "demo_nid_42.zip_1700000000",
		"Přehled_čísel.zip":          "Prehled_cisel.zip",
		"Ærø":                        "?r?",
		"日本":                         "??",
	}
	for in, want := range cases {
		if got := ASCIIFold(in); got != want {
			t.Errorf("ASCIIFold(%q) = %q, want %q", in, got, want)
		}
	}
}
