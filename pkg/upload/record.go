package upload

import "time"

type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

type Stage string

const (
	StageValidation  Stage = "validation"
	StageTransfer    Stage = "transfer"
	StagePersistence Stage = "persistence"
	StageFinished    Stage = "finished"
)

// Record is the progress snapshot of one upload session. Records handed out
// by the Registry are copies and safe to keep.
type Record struct {
	UploadID      string    `json:"uploadId"`
	Progress      int       `json:"progress"`
	Status        Status    `json:"status"`
	Stage         Stage     `json:"stage"`
	Message       string    `json:"message,omitempty"`
	BytesUploaded int64     `json:"bytesUploaded"`
	TotalBytes    int64     `json:"totalBytes"`
	StartTime     time.Time `json:"startTime"`

	// EstimatedTimeRemaining is in seconds; nil until progress is positive.
	EstimatedTimeRemaining *int64 `json:"estimatedTimeRemaining,omitempty"`
}

// Stats counts records by status.
type Stats struct {
	Total      int `json:"total"`
	Uploading  int `json:"uploading"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
	Cancelled  int `json:"cancelled"`
}

func (s *Stats) add(status Status) {
	s.Total++
	switch status {
	case StatusUploading:
		s.Uploading++
	case StatusProcessing:
		s.Processing++
	case StatusCompleted:
		s.Completed++
	case StatusError:
		s.Error++
	case StatusCancelled:
		s.Cancelled++
	}
}

type EventType string

const (
	EventProgress  EventType = "progress"
	EventKeepAlive EventType = "keepalive"
)

// Event is what observers receive. Keep-alive events carry no record.
type Event struct {
	Type EventType `json:"type"`
	*Record
}

func progressEvent(r Record) Event {
	return Event{Type: EventProgress, Record: &r}
}

func KeepAliveEvent() Event {
	return Event{Type: EventKeepAlive}
}

// IsTerminal reports whether this is the last event an observer will get.
func (e Event) IsTerminal() bool {
	return e.Record != nil && e.Status.IsTerminal()
}
