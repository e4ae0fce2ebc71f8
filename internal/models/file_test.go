package models

import (
	"encoding/json"
	"testing"
)

func TestFileRecord_DecodeServerShape(t *testing.T) {
	data := `{"id":7,"uniqueId":"AQAD","chatId":-100,"messageId":42,"type":"file",
		"size":2048,"downloadedSize":512,"fileName":"report.pdf","downloadStatus":"downloading"}`

	var rec FileRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if rec.Type != TypeDocument {
		t.Errorf("Type = %q, want %q", rec.Type, TypeDocument)
	}
	if rec.Progress != 512 {
		t.Errorf("Progress = %d, want 512 (from downloadedSize)", rec.Progress)
	}
	if rec.Key() != (RecordKey{ChatID: -100, ID: 7}) {
		t.Errorf("Key() = %v", rec.Key())
	}
	if rec.Percent() != 25 {
		t.Errorf("Percent() = %v, want 25", rec.Percent())
	}
}

func TestFileRecord_MissingStatusDefaultsIdle(t *testing.T) {
	var rec FileRecord
	if err := json.Unmarshal([]byte(`{"id":1,"chatId":1,"type":"photo"}`), &rec); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if rec.DownloadStatus != StatusIdle {
		t.Errorf("DownloadStatus = %q, want idle", rec.DownloadStatus)
	}
}

func TestFileRecord_UnknownTypeRejected(t *testing.T) {
	var rec FileRecord
	if err := json.Unmarshal([]byte(`{"id":1,"type":"sticker"}`), &rec); err == nil {
		t.Error("expected error for unknown file type")
	}
}

func TestParseRecordKey(t *testing.T) {
	k, err := ParseRecordKey("-1001:55")
	if err != nil {
		t.Fatalf("ParseRecordKey() error = %v", err)
	}
	if k.ChatID != -1001 || k.ID != 55 {
		t.Errorf("ParseRecordKey() = %+v", k)
	}
	if k.String() != "-1001:55" {
		t.Errorf("String() = %q", k.String())
	}
	if _, err := ParseRecordKey("55"); err == nil {
		t.Error("expected error for key without chat id")
	}
}

func TestDownloadStatusStage(t *testing.T) {
	order := []DownloadStatus{StatusIdle, StatusDownloading, StatusError, StatusCompleted}
	for i := 1; i < len(order); i++ {
		if order[i].Stage() <= order[i-1].Stage() {
			t.Errorf("%s should be ahead of %s", order[i], order[i-1])
		}
	}
	if StatusPaused.Stage() != StatusDownloading.Stage() {
		t.Error("paused and downloading should share a stage")
	}
}

func TestStatusDelta_ApplyOnlySuppliedFields(t *testing.T) {
	rec := FileRecord{ID: 1, Progress: 100, LocalPath: "/keep", DownloadStatus: StatusDownloading}
	st := StatusCompleted
	StatusDelta{Status: &st}.Apply(&rec)

	if rec.DownloadStatus != StatusCompleted {
		t.Errorf("DownloadStatus = %q", rec.DownloadStatus)
	}
	if rec.Progress != 100 || rec.LocalPath != "/keep" {
		t.Errorf("unsupplied fields changed: %+v", rec)
	}
}

func TestFilterSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    FilterSpec
		wantErr bool
	}{
		{"default", DefaultFilter(), false},
		{"photo idle", FilterSpec{Type: "photo", Status: "idle"}, false},
		{"file alias", FilterSpec{Type: "file", Status: FilterAll}, false},
		{"bad type", FilterSpec{Type: "gif", Status: FilterAll}, true},
		{"bad status", FilterSpec{Type: FilterAll, Status: "queued"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Normalize().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if (FilterSpec{Search: " x "}).Normalize() != (FilterSpec{Search: "x", Type: FilterAll, Status: FilterAll}) {
		t.Error("Normalize() should trim search and default type/status")
	}

	upper := FilterSpec{Type: "PHOTO", Status: " IDLE "}.Normalize()
	if upper != (FilterSpec{Type: "photo", Status: "idle"}) {
		t.Errorf("Normalize() = %+v, want lower-case type and status", upper)
	}
	if got := (FilterSpec{Type: "All", Status: "ALL"}).Normalize(); got != DefaultFilter() {
		t.Errorf("Normalize() = %+v, want the default filter", got)
	}
	if got := (FilterSpec{Status: "Queued"}).Normalize(); got.Status != "Queued" {
		t.Errorf("unknown status should be left for Validate, got %q", got.Status)
	}
}

type labelVisitor struct{}

func (labelVisitor) Photo() string    { return "IMG" }
func (labelVisitor) Video() string    { return "VID" }
func (labelVisitor) Audio() string    { return "AUD" }
func (labelVisitor) Document() string { return "DOC" }

func TestVisitFileType(t *testing.T) {
	want := map[FileType]string{TypePhoto: "IMG", TypeVideo: "VID", TypeAudio: "AUD", TypeDocument: "DOC"}
	for _, ft := range FileTypes {
		if got := VisitFileType[string](ft, labelVisitor{}); got != want[ft] {
			t.Errorf("VisitFileType(%s) = %q, want %q", ft, got, want[ft])
		}
	}
}
