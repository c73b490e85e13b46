package entity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"ltpexport/internal/entity"
	"ltpexport/internal/services"
)

const testUUID = "0d3c5b7e-4a7f-4a43-9c1e-0f2f6c1e8a11"

func TestUID(t *testing.T) {
	cases := map[string]string{
		entity.TypeNode:               "demo_nid_42",
		entity.TypeMedia:              "demo_mid_42",
		entity.TypeTaxonomyTerm:       "demo_tid_42",
		entity.TypeTaxonomyVocabulary: "demo_vid_42",
		entity.TypeUser:               "demo_uid_42",
		"comment":                     "demo_id_42",
	}
	for typ, want := range cases {
		if got := entity.UID("demo", &entity.Entity{Type: typ, ID: "42"}); got != want {
			t.Errorf("UID(%s) = %s, want %s", typ, got, want)
		}
	}
}

func TestLanguagesSorted(t *testing.T) {
	e := &entity.Entity{Translations: map[string]map[string]string{"en": nil, "cs": nil, "de": nil}}
	if got := e.Languages(); !slices.Equal(got, []string{"cs", "de", "en"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if (&entity.Entity{}).Languages() != nil {
		t.Fatal("expected nil languages for untranslated entity")
	}
}

func TestTranslationMatchesNormalizedTag(t *testing.T) {
	e := &entity.Entity{Translations: map[string]map[string]string{
		"pt_BR": {"title": "Ola"},
		"EN":    {"title": "Hello"},
	}}
	if got := e.Languages(); !slices.Equal(got, []string{"en", "pt-BR"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if got := e.Translation("pt-BR")["title"]; got != "Ola" {
		t.Fatalf("pt-BR title = %q", got)
	}
	if got := e.Translation("en")["title"]; got != "Hello" {
		t.Fatalf("en title = %q", got)
	}
	if e.Translation("fr") != nil {
		t.Fatal("expected no translation for fr")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := entity.NewFileStore(t.TempDir())
	ctx := context.Background()

	original := &entity.Entity{
		Type:      entity.TypeMedia,
		ID:        "7",
		UUID:      testUUID,
		Bundle:    "image",
		Published: true,
		Language:  "EN",
		Fields:    map[string]string{"name": "Scan"},
		Translations: map[string]map[string]string{
			"en":    {"name": "Scan"},
			"cs_CZ": {"name": "Sken"},
		},
		File: &entity.File{Path: "/data/scan.tif", Name: "scan.tif"},
	}
	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, entity.TypeMedia, testUUID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != "7" || loaded.Bundle != "image" || !loaded.Published || loaded.Language != "en" {
		t.Fatalf("unexpected entity %+v", loaded)
	}
	if !loaded.HasFile() || loaded.File.Name != "scan.tif" {
		t.Fatalf("expected attached file, got %+v", loaded.File)
	}
	if got := loaded.Languages(); !slices.Equal(got, []string{"cs-CZ", "en"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if loaded.Translations["cs-CZ"]["name"] != "Sken" {
		t.Fatalf("unexpected translation %v", loaded.Translations)
	}

	loaded.SetField("field_transfer_uuid", "t-1")
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("Save after write-back: %v", err)
	}
	again, err := store.Load(ctx, entity.TypeMedia, testUUID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Field("field_transfer_uuid") != "t-1" {
		t.Fatalf("write-back not persisted: %v", again.Fields)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := entity.NewFileStore(t.TempDir())
	_, err := store.Load(context.Background(), entity.TypeNode, testUUID)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsInvalidKeys(t *testing.T) {
	store := entity.NewFileStore(t.TempDir())
	ctx := context.Background()
	if _, err := store.Load(ctx, entity.TypeNode, "not-a-uuid"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad uuid, got %v", err)
	}
	if _, err := store.Load(ctx, "../node", testUUID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
}

func TestFileStoreListAndDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, entity.TypeNode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "id: \"42\"\nbundle: article\npublished: false\nfields:\n  title: Hello\n"
	if err := os.WriteFile(filepath.Join(dir, testUUID+".yaml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := entity.NewFileStore(root)
	list, err := store.List(context.Background(), entity.TypeNode)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(list))
	}
	e := list[0]
	if e.Type != entity.TypeNode || e.UUID != testUUID || e.Language != "und" || e.Field("title") != "Hello" {
		t.Fatalf("unexpected defaults %+v", e)
	}

	empty, err := store.List(context.Background(), entity.TypeMedia)
	if err != nil || empty != nil {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
}
