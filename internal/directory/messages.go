package directory

import (
	"time"

	"github.com/roelfdiedericks/tgstatctl/internal/types"
)

// LoadedMsg carries the outcome of a directory fetch back to the loop.
type LoadedMsg struct {
	Gen   uint64
	Query string
	List  *types.ChannelList
	Err   error
}

// CollectedMsg carries the outcome of a collection run.
type CollectedMsg struct {
	Result *types.CollectResult
	Job    *types.JobRecord // nil when no recorder is attached or it failed
	Err    error
}

// ExportedMsg carries the outcome of an export download.
type ExportedMsg struct {
	Format types.ExportFormat
	Path   string
	Err    error
}

// NoticeLevel colours a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a message for the operator. Blocking notices stay until Ack;
// the others are dismissed by the console after a while.
type Notice struct {
	ID       int
	Text     string
	Detail   string
	Level    NoticeLevel
	Blocking bool
	At       time.Time
	Folded   int // earlier unacknowledged blocking notices merged into this one
}
