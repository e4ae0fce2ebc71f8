package push

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/telegram-files/tfsync/internal/models"
)

// Frame kinds sent by the server.
const (
	KindSpeed      = "speed"
	KindFileStatus = "fileStatus"
)

// ErrUnknownKind is returned by Decode for frames of a kind the channel does
// not handle.
var ErrUnknownKind = errors.New("unknown frame kind")

// Event is one item of the channel's stream: a SpeedEvent, FileStatusEvent
// or StateEvent.
type Event interface {
	pushEvent()
}

// SpeedEvent carries the account-level aggregate download speed.
type SpeedEvent struct {
	AccountID      string
	BytesPerSecond int64
}

// FileStatusEvent is a status/progress update for one file. Nil fields were
// absent from the frame. ChatID is 0 when the server did not send it.
type FileStatusEvent struct {
	ChatID    int64
	ID        int64
	Status    *models.DownloadStatus
	Progress  *int64
	LocalPath *string
}

// StateEvent reports a connection state transition.
type StateEvent struct {
	State   models.ConnectionState
	Attempt int
}

func (SpeedEvent) pushEvent()      {}
func (FileStatusEvent) pushEvent() {}
func (StateEvent) pushEvent()      {}

// Delta converts the event to a store delta, using defaultChat when the frame
// carried no chat id.
func (e FileStatusEvent) Delta(defaultChat int64) models.StatusDelta {
	chat := e.ChatID
	if chat == 0 {
		chat = defaultChat
	}
	return models.StatusDelta{
		Key:       models.RecordKey{ChatID: chat, ID: e.ID},
		Status:    e.Status,
		Progress:  e.Progress,
		LocalPath: e.LocalPath,
	}
}

// frame is the union of all wire messages. File status frames name the
// file "id" and its progress "progress"; the older "fileId" and
// "downloadedSize" spellings are accepted too.
type frame struct {
	Kind string `json:"kind"`

	AccountID      string `json:"accountId"`
	BytesPerSecond *int64 `json:"bytesPerSecond"`

	ChatID         int64   `json:"chatId"`
	ID             int64   `json:"id"`
	FileID         int64   `json:"fileId"`
	DownloadStatus *string `json:"downloadStatus"`
	Progress       *int64  `json:"progress"`
	DownloadedSize *int64  `json:"downloadedSize"`
	LocalPath      *string `json:"localPath"`
}

// Decode parses one text frame. accountID fills speed frames that do not
// name their account.
func Decode(data []byte, accountID string) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch f.Kind {
	case KindSpeed:
		if f.BytesPerSecond == nil {
			return nil, errors.New("speed frame without bytesPerSecond")
		}
		ev := SpeedEvent{AccountID: f.AccountID, BytesPerSecond: *f.BytesPerSecond}
		if ev.AccountID == "" {
			ev.AccountID = accountID
		}
		return ev, nil

	case KindFileStatus:
		id := f.ID
		if id == 0 {
			id = f.FileID
		}
		if id == 0 {
			return nil, errors.New("fileStatus frame without id")
		}
		progress := f.Progress
		if progress == nil {
			progress = f.DownloadedSize
		}
		ev := FileStatusEvent{
			ChatID:    f.ChatID,
			ID:        id,
			Progress:  progress,
			LocalPath: f.LocalPath,
		}
		if f.DownloadStatus != nil {
			st, err := models.ParseDownloadStatus(*f.DownloadStatus)
			if err != nil {
				return nil, err
			}
			ev.Status = &st
		}
		return ev, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Kind)
	}
}
