package shelf

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"floatshelf/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), "floating_shelves.json", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func testButton(label string) *domain.ButtonSpec {
	return &domain.ButtonSpec{
		Label:   label,
		Command: fmt.Sprintf("print(%q)", label),
		Icon:    "commandButton.png",
		Tooltip: label,
		Kind:    domain.ScriptJS,
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	col, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if col.Default != domain.DefaultShelfName {
		t.Errorf("got default %q, want %q", col.Default, domain.DefaultShelfName)
	}
	if len(col.Shelves) != 1 {
		t.Fatalf("got %d shelves, want 1", len(col.Shelves))
	}
	if buttons := col.Shelves[domain.DefaultShelfName]; len(buttons) != 0 {
		t.Errorf("got %d buttons on fresh default shelf, want 0", len(buttons))
	}
}

func TestFileStoreLoadInvalidJSON(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	col, err := store.Load()
	if err != nil {
		t.Fatalf("Load should not fail on invalid JSON: %v", err)
	}
	if col.Default != domain.DefaultShelfName || len(col.Shelves) != 1 {
		t.Errorf("expected fresh default collection, got default %q with %d shelves", col.Default, len(col.Shelves))
	}
}

func TestFileStoreLoadWrongShape(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"shelf not an array", `{"Default": "oops", "_default": "Default"}`},
		{"default not a string", `{"Default": [], "_default": 42}`},
		{"top level array", `[1, 2, 3]`},
		{"button not an object", `{"Default": [17], "_default": "Default"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			if err := os.WriteFile(store.Path(), []byte(tc.doc), 0600); err != nil {
				t.Fatalf("write: %v", err)
			}

			col, err := store.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if col.Default != domain.DefaultShelfName {
				t.Errorf("got default %q, want %q", col.Default, domain.DefaultShelfName)
			}
			if len(col.Shelves) != 1 {
				t.Errorf("got %d shelves, want fresh collection with 1", len(col.Shelves))
			}
		})
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	col := domain.NewCollection()
	col.Shelves["Tools"] = []*domain.ButtonSpec{
		testButton("Freeze"),
		testButton("Center Pivot"),
	}
	col.Shelves["Tools"][1].Kind = domain.ScriptLua
	col.Default = "Tools"

	if err := store.Save(col); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Default != "Tools" {
		t.Errorf("got default %q, want %q", got.Default, "Tools")
	}
	if len(got.Shelves) != 2 {
		t.Fatalf("got %d shelves, want 2", len(got.Shelves))
	}

	buttons := got.Shelves["Tools"]
	if len(buttons) != 2 {
		t.Fatalf("got %d buttons, want 2", len(buttons))
	}
	// Order and every persisted field survive.
	want := col.Shelves["Tools"]
	for i := range want {
		if buttons[i].Label != want[i].Label {
			t.Errorf("button %d: got label %q, want %q", i, buttons[i].Label, want[i].Label)
		}
		if buttons[i].Command != want[i].Command {
			t.Errorf("button %d: got command %q, want %q", i, buttons[i].Command, want[i].Command)
		}
		if buttons[i].Icon != want[i].Icon {
			t.Errorf("button %d: got icon %q, want %q", i, buttons[i].Icon, want[i].Icon)
		}
		if buttons[i].Tooltip != want[i].Tooltip {
			t.Errorf("button %d: got tooltip %q, want %q", i, buttons[i].Tooltip, want[i].Tooltip)
		}
		if buttons[i].Kind != want[i].Kind {
			t.Errorf("button %d: got kind %q, want %q", i, buttons[i].Kind, want[i].Kind)
		}
	}
}

func TestFileStoreLoadAssignsIDs(t *testing.T) {
	store := newTestStore(t)

	col := domain.NewCollection()
	col.Shelves[domain.DefaultShelfName] = []*domain.ButtonSpec{
		testButton("A"),
		testButton("B"),
	}
	if err := store.Save(col); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seen := map[string]bool{}
	for _, b := range got.Shelves[domain.DefaultShelfName] {
		if b.ID == "" {
			t.Errorf("button %q loaded without an ID", b.Label)
		}
		if seen[b.ID] {
			t.Errorf("duplicate button ID %q", b.ID)
		}
		seen[b.ID] = true
	}
}

func TestFileStoreDocumentLayout(t *testing.T) {
	store := newTestStore(t)

	col := domain.NewCollection()
	col.Shelves["Rigging"] = []*domain.ButtonSpec{testButton("Bind Skin")}
	if err := store.Save(col); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var def string
	if err := json.Unmarshal(doc[domain.DefaultKey], &def); err != nil {
		t.Fatalf("%s should be a string: %v", domain.DefaultKey, err)
	}
	if def != domain.DefaultShelfName {
		t.Errorf("got %s %q, want %q", domain.DefaultKey, def, domain.DefaultShelfName)
	}

	var buttons []map[string]any
	if err := json.Unmarshal(doc["Rigging"], &buttons); err != nil {
		t.Fatalf("shelf should be an array of objects: %v", err)
	}
	if len(buttons) != 1 {
		t.Fatalf("got %d buttons, want 1", len(buttons))
	}
	for _, key := range []string{"label", "command", "icon", "tooltip", "type"} {
		if _, ok := buttons[0][key]; !ok {
			t.Errorf("persisted button is missing key %q", key)
		}
	}
	// IDs are in-memory only.
	if _, ok := buttons[0]["id"]; ok {
		t.Error("button ID must not be persisted")
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	first := domain.NewCollection()
	first.Shelves["Tools"] = []*domain.ButtonSpec{testButton("Old")}
	if err := store.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := domain.NewCollection()
	if err := store.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got.Shelves["Tools"]; ok {
		t.Error("save must overwrite the whole document, not merge")
	}
	if len(got.Shelves) != 1 {
		t.Errorf("got %d shelves, want 1", len(got.Shelves))
	}
}

func TestFileStorePersistence(t *testing.T) {
	dir := t.TempDir()
	store1, err := NewFileStore(dir, "floating_shelves.json", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	col := domain.NewCollection()
	col.Shelves["Anim"] = []*domain.ButtonSpec{testButton("Playblast")}
	if err := store1.Save(col); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Re-open and verify.
	store2, err := NewFileStore(dir, "floating_shelves.json", testLogger())
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	got, err := store2.Load()
	if err != nil {
		t.Fatalf("Load after re-open: %v", err)
	}
	if len(got.Shelves["Anim"]) != 1 {
		t.Fatalf("got %d buttons after re-open, want 1", len(got.Shelves["Anim"]))
	}
	if got.Shelves["Anim"][0].Label != "Playblast" {
		t.Errorf("got label %q, want %q", got.Shelves["Anim"][0].Label, "Playblast")
	}
}

func TestFileStorePathInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "floating_shelves.json", testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	want := filepath.Join(dir, "floating_shelves.json")
	if store.Path() != want {
		t.Errorf("got path %q, want %q", store.Path(), want)
	}
}
