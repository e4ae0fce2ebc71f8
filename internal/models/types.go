// Package models defines the data types shared by the sync engine, the API
// client and the push channel.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FileType is the closed set of file variants a chat exposes.
type FileType string

const (
	TypePhoto    FileType = "photo"
	TypeVideo    FileType = "video"
	TypeAudio    FileType = "audio"
	TypeDocument FileType = "document"
)

// FileTypes lists every variant in display order.
var FileTypes = []FileType{TypePhoto, TypeVideo, TypeAudio, TypeDocument}

// ParseFileType parses a wire value. The server reports documents as "file".
func ParseFileType(s string) (FileType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "photo":
		return TypePhoto, nil
	case "video":
		return TypeVideo, nil
	case "audio":
		return TypeAudio, nil
	case "document", "file":
		return TypeDocument, nil
	}
	return "", fmt.Errorf("unknown file type %q", s)
}

func (t *FileType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFileType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FileTypeVisitor has one method per FileType variant. Implementations that
// miss a variant do not compile, which keeps type-dependent handling
// exhaustive.
type FileTypeVisitor[T any] interface {
	Photo() T
	Video() T
	Audio() T
	Document() T
}

// VisitFileType dispatches t to the matching visitor method.
func VisitFileType[T any](t FileType, v FileTypeVisitor[T]) T {
	switch t {
	case TypePhoto:
		return v.Photo()
	case TypeVideo:
		return v.Video()
	case TypeAudio:
		return v.Audio()
	default:
		return v.Document()
	}
}

// DownloadStatus is the mutable transfer state of a record.
type DownloadStatus string

const (
	StatusIdle        DownloadStatus = "idle"
	StatusDownloading DownloadStatus = "downloading"
	StatusPaused      DownloadStatus = "paused"
	StatusCompleted   DownloadStatus = "completed"
	StatusError       DownloadStatus = "error"
)

// ParseDownloadStatus parses a wire value.
func ParseDownloadStatus(s string) (DownloadStatus, error) {
	switch st := DownloadStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusIdle, StatusDownloading, StatusPaused, StatusCompleted, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown download status %q", s)
}

// Stage orders statuses along the transfer lifecycle. A status with a
// higher stage is "ahead of" one with a lower stage.
func (s DownloadStatus) Stage() int {
	switch s {
	case StatusDownloading, StatusPaused:
		return 1
	case StatusError:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// IsIdle reports whether a transfer has not been requested yet.
func (s DownloadStatus) IsIdle() bool {
	return s == StatusIdle || s == ""
}

// FilterAll matches every type or status in a FilterSpec.
const FilterAll = "all"

// FilterSpec is the current search/type/status filter. It is a comparable
// value: two specs are equal when their fields are equal.
type FilterSpec struct {
	Search string `json:"search"`
	Type   string `json:"type"`   // FileType or "all"
	Status string `json:"status"` // DownloadStatus or "all"
}

// DefaultFilter matches everything.
func DefaultFilter() FilterSpec {
	return FilterSpec{Type: FilterAll, Status: FilterAll}
}

// ErrInvalidFilter is returned by FilterSpec.Validate.
var ErrInvalidFilter = errors.New("invalid filter")

// Normalize fills empty type/status with "all", trims the search term and
// puts known type and status values in their canonical form, so that
// filters differing only in case compare equal.
func (f FilterSpec) Normalize() FilterSpec {
	f.Search = strings.TrimSpace(f.Search)
	if f.Type == "" || strings.EqualFold(strings.TrimSpace(f.Type), FilterAll) {
		f.Type = FilterAll
	} else if t, err := ParseFileType(f.Type); err == nil {
		f.Type = string(t)
	}
	if f.Status == "" || strings.EqualFold(strings.TrimSpace(f.Status), FilterAll) {
		f.Status = FilterAll
	} else if st, err := ParseDownloadStatus(f.Status); err == nil {
		f.Status = string(st)
	}
	return f
}

// Validate rejects unknown type or status values.
func (f FilterSpec) Validate() error {
	if f.Type != FilterAll {
		if _, err := ParseFileType(f.Type); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	if f.Status != FilterAll {
		if _, err := ParseDownloadStatus(f.Status); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	return nil
}

// PageCursor identifies where the next page starts within a pagination
// epoch. Seq is the store's delta sequence when the fetch was issued; live
// updates applied after it are newer than the page.
type PageCursor struct {
	Epoch   uint64
	Cursor  string
	HasMore bool
	Seq     uint64
}

// ConnectionState is the push channel's lifecycle state.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "Connecting"
	StateOpen         ConnectionState = "Open"
	StateClosed       ConnectionState = "Closed"
	StateReconnecting ConnectionState = "Reconnecting"
)
