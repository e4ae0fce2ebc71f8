package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

// RowHeight is the table row density.
type RowHeight string

const (
	RowSmall  RowHeight = "s"
	RowMedium RowHeight = "m"
	RowLarge  RowHeight = "l"
)

// Layout is the file list presentation.
type Layout string

const (
	LayoutDetailed Layout = "detailed"
	LayoutGallery  Layout = "gallery"
)

// Column is one table column and whether it is shown.
type Column struct {
	ID      string
	Visible bool
}

// DefaultColumns is the baseline column order of the file list.
var DefaultColumns = []Column{
	{ID: "content", Visible: true},
	{ID: "type", Visible: true},
	{ID: "size", Visible: true},
	{ID: "status", Visible: true},
	{ID: "extra", Visible: true},
	{ID: "actions", Visible: true},
}

// ListPrefs are the display preferences of one logical list.
type ListPrefs struct {
	RowHeight RowHeight
	Layout    Layout
	Columns   []Column
}

// DefaultListPrefs returns the baseline preferences.
func DefaultListPrefs() ListPrefs {
	cols := make([]Column, len(DefaultColumns))
	copy(cols, DefaultColumns)
	return ListPrefs{RowHeight: RowMedium, Layout: LayoutDetailed, Columns: cols}
}

// VisibleColumns returns the ids of shown columns in order.
func (p ListPrefs) VisibleColumns() []string {
	ids := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if c.Visible {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// PrefsStore persists ListPrefs keyed by list identity (e.g.
// "telegramFileList"). Each identity is one INI section:
//
//	[telegramFileList]
//	row_height = m
//	layout = detailed
//	columns = content,type,-size,status
//
// A leading "-" hides a column. Unknown keys are ignored and missing or
// invalid values fall back to the baseline.
type PrefsStore struct {
	path string
	mu   sync.Mutex
}

// NewPrefsStore returns a store backed by path. An empty path uses
// prefs.ini in the default config directory.
func NewPrefsStore(path string) (*PrefsStore, error) {
	if path == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "prefs.ini")
	}
	return &PrefsStore{path: path}, nil
}

// Path returns the backing file.
func (s *PrefsStore) Path() string {
	return s.path
}

func (s *PrefsStore) load() (*ini.File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return ini.Empty(), nil
	}
	f, err := ini.Load(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return f, nil
}

// Get returns the preferences for key. A missing file or section yields
// the defaults.
func (s *PrefsStore) Get(key string) (ListPrefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return DefaultListPrefs(), err
	}
	return parseListPrefs(f.Section(key)), nil
}

// Set writes the preferences for key, keeping other sections.
func (s *PrefsStore) Set(key string, p ListPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}
	sec := f.Section(key)
	sec.Key("row_height").SetValue(string(p.RowHeight))
	sec.Key("layout").SetValue(string(p.Layout))
	sec.Key("columns").SetValue(formatColumns(p.Columns))

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	return atomicSave(f, s.path)
}

// Update applies one field change ("row_height", "layout" or "columns").
func (s *PrefsStore) Update(key, field, value string) (ListPrefs, error) {
	p, err := s.Get(key)
	if err != nil {
		return p, err
	}
	switch field {
	case "row_height":
		rh, ok := parseRowHeight(value)
		if !ok {
			return p, fmt.Errorf("invalid row height %q (want s, m or l)", value)
		}
		p.RowHeight = rh
	case "layout":
		l, ok := parseLayout(value)
		if !ok {
			return p, fmt.Errorf("invalid layout %q (want detailed or gallery)", value)
		}
		p.Layout = l
	case "columns":
		p.Columns = parseColumns(value)
	default:
		return p, fmt.Errorf("unknown preference %q", field)
	}
	return p, s.Set(key, p)
}

func parseListPrefs(sec *ini.Section) ListPrefs {
	p := DefaultListPrefs()
	if rh, ok := parseRowHeight(sec.Key("row_height").String()); ok {
		p.RowHeight = rh
	}
	if l, ok := parseLayout(sec.Key("layout").String()); ok {
		p.Layout = l
	}
	if raw := sec.Key("columns").String(); raw != "" {
		p.Columns = parseColumns(raw)
	}
	return p
}

func parseRowHeight(s string) (RowHeight, bool) {
	switch rh := RowHeight(strings.ToLower(strings.TrimSpace(s))); rh {
	case RowSmall, RowMedium, RowLarge:
		return rh, true
	}
	return "", false
}

func parseLayout(s string) (Layout, bool) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutDetailed, LayoutGallery:
		return l, true
	}
	return "", false
}

// parseColumns reads an ordered column list. Unknown ids are dropped and
// baseline columns missing from the list are appended visible.
func parseColumns(raw string) []Column {
	known := make(map[string]bool, len(DefaultColumns))
	for _, c := range DefaultColumns {
		known[c.ID] = true
	}

	seen := make(map[string]bool)
	cols := make([]Column, 0, len(DefaultColumns))
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		visible := !strings.HasPrefix(part, "-")
		id := strings.TrimPrefix(part, "-")
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		cols = append(cols, Column{ID: id, Visible: visible})
	}
	for _, c := range DefaultColumns {
		if !seen[c.ID] {
			cols = append(cols, c)
		}
	}
	return cols
}

func formatColumns(cols []Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c.Visible {
			parts[i] = c.ID
		} else {
			parts[i] = "-" + c.ID
		}
	}
	return strings.Join(parts, ",")
}
