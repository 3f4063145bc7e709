package messagelog

import "fmt"

// Status is the delivery state of a message
type Status string

const (
	ReadyToPull             Status = "READY_TO_PULL"
	WaitingForReceipt       Status = "WAITING_FOR_RECEIPT"
	BeingPulled             Status = "BEING_PULLED"
	Received                Status = "RECEIVED"
	Downloaded              Status = "DOWNLOADED"
	Acknowledged            Status = "ACKNOWLEDGED"
	AcknowledgedWithWarning Status = "ACKNOWLEDGED_WITH_WARNING"
	SendFailure             Status = "SEND_FAILURE"
	Deleted                 Status = "DELETED"

	// NotFound is only ever returned by status queries
	NotFound Status = "NOT_FOUND"
)

var settable = map[Status]bool{
	ReadyToPull:             true,
	WaitingForReceipt:       true,
	BeingPulled:             true,
	Received:                true,
	Downloaded:              true,
	Acknowledged:            true,
	AcknowledgedWithWarning: true,
	SendFailure:             true,
	Deleted:                 true,
}

// Settable reports whether a message can be moved to s.
func (s Status) Settable() bool {
	return settable[s]
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if s.Settable() || s == NotFound {
		return s, nil
	}
	return "", fmt.Errorf("unknown message status %q", value)
}

// Stamp names the timestamp a transition records
type Stamp int

const (
	StampNone Stamp = iota
	StampDownloaded
	StampDeleted
	StampFailed
)

// StampFor returns the timestamp recorded when a message moves to s.
func StampFor(s Status) Stamp {
	switch s {
	case Deleted, Acknowledged, AcknowledgedWithWarning:
		return StampDeleted
	case Downloaded:
		return StampDownloaded
	case SendFailure:
		return StampFailed
	}
	return StampNone
}
