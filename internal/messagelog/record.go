package messagelog

import (
	"time"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

// Log holds the state shared by every message log record
type Log struct {
	MessageID  string     `json:"messageId" bson:"message_id"`
	MSHRole    ebms.Role  `json:"mshRole" bson:"msh_role"`
	Status     Status     `json:"messageStatus" bson:"status"`
	Mpc        string     `json:"mpc,omitempty" bson:"mpc,omitempty"`
	Received   time.Time  `json:"received" bson:"received"`
	Downloaded *time.Time `json:"downloaded,omitempty" bson:"downloaded,omitempty"`
	Deleted    *time.Time `json:"deleted,omitempty" bson:"deleted,omitempty"`
	Failed     *time.Time `json:"failed,omitempty" bson:"failed,omitempty"`
}

// Base returns the shared state. Embedding Log makes a type a Record.
func (l *Log) Base() *Log {
	return l
}

// Apply moves the record to u.Status and records u.At in the stamped field.
func (l *Log) Apply(u StatusUpdate) {
	l.Status = u.Status
	at := u.At
	switch u.Stamp {
	case StampDownloaded:
		l.Downloaded = &at
	case StampDeleted:
		l.Deleted = &at
	case StampFailed:
		l.Failed = &at
	}
}

// Record is a status-bearing message log entry
type Record interface {
	Base() *Log
}

// UserMessageLog tracks a business message
type UserMessageLog struct {
	Log      `bson:",inline"`
	Backend  string `json:"backend,omitempty" bson:"backend,omitempty"`
	Endpoint string `json:"endpoint,omitempty" bson:"endpoint,omitempty"`
}

// SignalMessageLog tracks a signal such as a receipt or an error
type SignalMessageLog struct {
	Log            `bson:",inline"`
	RefToMessageID string `json:"refToMessageId,omitempty" bson:"ref_to_message_id,omitempty"`
}

// StatusUpdate is one atomic transition
type StatusUpdate struct {
	Status Status
	Stamp  Stamp
	At     time.Time
}
