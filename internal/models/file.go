package models

import (
	"encoding/json"
	"fmt"
)

// RecordKey is the stable merge key of a FileRecord. File ids are only
// unique within a chat, so the chat id is part of the key.
type RecordKey struct {
	ChatID int64 `json:"chatId"`
	ID     int64 `json:"id"`
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%d:%d", k.ChatID, k.ID)
}

// ParseRecordKey parses the "chatId:fileId" form produced by RecordKey.String.
func ParseRecordKey(s string) (RecordKey, error) {
	var k RecordKey
	if _, err := fmt.Sscanf(s, "%d:%d", &k.ChatID, &k.ID); err != nil {
		return RecordKey{}, fmt.Errorf("invalid record key %q (want chatId:fileId): %w", s, err)
	}
	return k, nil
}

// FileRecord represents one remote file exposed by a chat.
type FileRecord struct {
	ID        int64  `json:"id"`
	UniqueID  string `json:"uniqueId"` // stable across re-fetches; may repeat across ids
	ChatID    int64  `json:"chatId"`
	MessageID int64  `json:"messageId"`
	Date      int64  `json:"date,omitempty"` // unix seconds the file was posted

	Type                FileType `json:"type"`
	MimeType            string   `json:"mimeType,omitempty"`
	Size                int64    `json:"size"`
	Thumbnail           string   `json:"thumbnail,omitempty"` // base64 payload, opaque to the engine
	HasSensitiveContent bool     `json:"hasSensitiveContent"`
	Name                string   `json:"fileName,omitempty"`
	Caption             string   `json:"caption,omitempty"`
	LocalPath           string   `json:"localPath,omitempty"`

	DownloadStatus DownloadStatus `json:"downloadStatus"`
	Progress       int64          `json:"progress"` // bytes transferred
}

// Key returns the record's merge key.
func (r FileRecord) Key() RecordKey {
	return RecordKey{ChatID: r.ChatID, ID: r.ID}
}

// Percent returns download progress as 0-100. Completed files report 100
// regardless of the byte counter.
func (r FileRecord) Percent() float64 {
	if r.DownloadStatus == StatusCompleted {
		return 100
	}
	if r.Size <= 0 || r.Progress <= 0 {
		return 0
	}
	p := float64(r.Progress) / float64(r.Size) * 100
	if p > 100 {
		return 100
	}
	return p
}

// DisplayName returns the file name, falling back to the unique id.
func (r FileRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.UniqueID != "" {
		return r.UniqueID
	}
	return fmt.Sprintf("%s-%d", r.Type, r.ID)
}

// UnmarshalJSON accepts "downloadedSize" as an alias for progress, which is
// what the file-list endpoint reports.
func (r *FileRecord) UnmarshalJSON(data []byte) error {
	type plain FileRecord
	aux := struct {
		*plain
		DownloadedSize *int64 `json:"downloadedSize"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.Progress == 0 && aux.DownloadedSize != nil {
		r.Progress = *aux.DownloadedSize
	}
	if r.DownloadStatus == "" {
		r.DownloadStatus = StatusIdle
	}
	return nil
}

// StatusDelta is a partial update to a record's mutable status fields.
// Nil fields are left untouched when the delta is applied.
type StatusDelta struct {
	Key       RecordKey
	Status    *DownloadStatus
	Progress  *int64
	LocalPath *string
}

// Apply merges the delta's fields into r.
func (d StatusDelta) Apply(r *FileRecord) {
	if d.Status != nil {
		r.DownloadStatus = *d.Status
	}
	if d.Progress != nil {
		r.Progress = *d.Progress
	}
	if d.LocalPath != nil {
		r.LocalPath = *d.LocalPath
	}
}

// Page is one page of the file-list endpoint.
type Page struct {
	Records    []FileRecord `json:"records"`
	NextCursor string       `json:"nextCursor"`
	HasMore    bool         `json:"hasMore"`
}

// DownloadRef identifies a file for the start-download endpoints.
type DownloadRef struct {
	MessageID int64 `json:"messageId"`
	FileID    int64 `json:"fileId"`
}

// StartDownloadMultipleRequest is the body of start-download-multiple.
type StartDownloadMultipleRequest struct {
	ChatID int64         `json:"chatId"`
	Files  []DownloadRef `json:"files"`
}

// StartDownloadRequest is the body of start-download.
type StartDownloadRequest struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
	FileID    int64 `json:"fileId"`
}

// PingResponse is the latency probe result; Ping is in seconds.
type PingResponse struct {
	Ping float64 `json:"ping"`
}

// CancelDownloadRequest is the body of cancel-download.
type CancelDownloadRequest struct {
	FileID int64 `json:"fileId"`
}

// TogglePauseRequest is the body of toggle-pause-download.
type TogglePauseRequest struct {
	FileID   int64 `json:"fileId"`
	IsPaused bool  `json:"isPaused"`
}
