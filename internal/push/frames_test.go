package push

import (
	"errors"
	"testing"

	"github.com/telegram-files/tfsync/internal/models"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		check   func(t *testing.T, ev Event)
	}{
		{
			name: "speed with account",
			data: `{"kind":"speed","accountId":"3","bytesPerSecond":100}`,
			check: func(t *testing.T, ev Event) {
				if ev != (SpeedEvent{AccountID: "3", BytesPerSecond: 100}) {
					t.Errorf("got %+v", ev)
				}
			},
		},
		{
			name: "speed defaults account",
			data: `{"kind":"speed","bytesPerSecond":0}`,
			check: func(t *testing.T, ev Event) {
				if ev.(SpeedEvent).AccountID != "default" {
					t.Errorf("got %+v", ev)
				}
			},
		},
		{
			name: "status only",
			data: `{"kind":"fileStatus","fileId":9,"downloadStatus":"paused"}`,
			check: func(t *testing.T, ev Event) {
				fs := ev.(FileStatusEvent)
				if fs.ID != 9 || fs.Status == nil || *fs.Status != models.StatusPaused {
					t.Errorf("got %+v", fs)
				}
				if fs.Progress != nil || fs.LocalPath != nil {
					t.Error("absent fields should stay nil")
				}
			},
		},
		{
			name: "progress only",
			data: `{"kind":"fileStatus","chatId":1,"fileId":9,"downloadedSize":512}`,
			check: func(t *testing.T, ev Event) {
				fs := ev.(FileStatusEvent)
				if fs.Status != nil || fs.Progress == nil || *fs.Progress != 512 {
					t.Errorf("got %+v", fs)
				}
			},
		},
		{
			name: "id and progress",
			data: `{"kind":"fileStatus","chatId":7,"id":42,"downloadStatus":"downloading","progress":10}`,
			check: func(t *testing.T, ev Event) {
				fs := ev.(FileStatusEvent)
				if fs.ChatID != 7 || fs.ID != 42 || fs.Status == nil || *fs.Status != models.StatusDownloading {
					t.Errorf("got %+v", fs)
				}
				if fs.Progress == nil || *fs.Progress != 10 {
					t.Errorf("Progress = %v, want 10", fs.Progress)
				}
			},
		},
		{
			name: "id wins over fileId",
			data: `{"kind":"fileStatus","id":5,"fileId":6,"progress":1,"downloadedSize":2}`,
			check: func(t *testing.T, ev Event) {
				fs := ev.(FileStatusEvent)
				if fs.ID != 5 || *fs.Progress != 1 {
					t.Errorf("got %+v", fs)
				}
			},
		},
		{name: "speed without value", data: `{"kind":"speed"}`, wantErr: true},
		{name: "status without file", data: `{"kind":"fileStatus","downloadStatus":"idle"}`, wantErr: true},
		{name: "bad status", data: `{"kind":"fileStatus","fileId":1,"downloadStatus":"queued"}`, wantErr: true},
		{name: "not json", data: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.data), "default")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, ev)
			}
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"authorization"}`), "")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Decode() error = %v, want ErrUnknownKind", err)
	}
}

func TestFileStatusEvent_Delta(t *testing.T) {
	st := models.StatusCompleted
	ev := FileStatusEvent{ID: 4, Status: &st}

	d := ev.Delta(-100)
	if d.Key != (models.RecordKey{ChatID: -100, ID: 4}) {
		t.Errorf("Key = %v, want default chat", d.Key)
	}

	ev.ChatID = 8
	if ev.Delta(-100).Key.ChatID != 8 {
		t.Error("frame chat id should take precedence")
	}
}
