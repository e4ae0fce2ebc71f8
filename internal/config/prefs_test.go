package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPrefsStore_DefaultsWhenMissing(t *testing.T) {
	store, err := NewPrefsStore(filepath.Join(t.TempDir(), "prefs.ini"))
	if err != nil {
		t.Fatalf("NewPrefsStore: %v", err)
	}

	p, err := store.Get("telegramFileList")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(p, DefaultListPrefs()) {
		t.Errorf("Get() = %+v, want defaults", p)
	}
}

func TestPrefsStore_SetGetPerKey(t *testing.T) {
	store, _ := NewPrefsStore(filepath.Join(t.TempDir(), "prefs.ini"))

	p := DefaultListPrefs()
	p.RowHeight = RowLarge
	p.Layout = LayoutGallery
	if err := store.Set("telegramFileList", p); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get("telegramFileList")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RowHeight != RowLarge || got.Layout != LayoutGallery {
		t.Errorf("Get() = %+v", got)
	}

	other, _ := store.Get("otherList")
	if other.RowHeight != RowMedium {
		t.Error("preferences must be keyed per list identity")
	}
}

func TestPrefsStore_ToleratesUnknownAndInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.ini")
	content := "[telegramFileList]\nrow_height = xl\nlayout = gallery\nfuture_key = 1\ncolumns = size,-type,bogus\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	store, _ := NewPrefsStore(path)

	p, err := store.Get("telegramFileList")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.RowHeight != RowMedium {
		t.Errorf("invalid row height should default, got %q", p.RowHeight)
	}
	if p.Layout != LayoutGallery {
		t.Errorf("Layout = %q, want gallery", p.Layout)
	}
	if p.Columns[0].ID != "size" || p.Columns[1].ID != "type" || p.Columns[1].Visible {
		t.Errorf("column order/visibility not honoured: %+v", p.Columns)
	}
	if len(p.Columns) != len(DefaultColumns) {
		t.Errorf("expected %d columns (unknown dropped, missing appended), got %d", len(DefaultColumns), len(p.Columns))
	}
	want := []string{"size", "content", "status", "extra", "actions"}
	if !reflect.DeepEqual(p.VisibleColumns(), want) {
		t.Errorf("VisibleColumns() = %v, want %v", p.VisibleColumns(), want)
	}
}

func TestPrefsStore_Update(t *testing.T) {
	store, _ := NewPrefsStore(filepath.Join(t.TempDir(), "prefs.ini"))

	if _, err := store.Update("list", "row_height", "s"); err != nil {
		t.Fatalf("Update row_height: %v", err)
	}
	if _, err := store.Update("list", "layout", "wide"); err == nil {
		t.Error("expected error for invalid layout")
	}
	if _, err := store.Update("list", "colour", "red"); err == nil {
		t.Error("expected error for unknown preference")
	}

	p, _ := store.Get("list")
	if p.RowHeight != RowSmall {
		t.Errorf("RowHeight = %q, want s", p.RowHeight)
	}
}
