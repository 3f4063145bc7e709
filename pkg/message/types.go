// Package message provides AS4 message structure and ebMS3 headers implementation.
package message

import (
	"time"

	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// Namespace constants for AS4/ebMS3
const (
	NsSOAPEnv = "http://www.w3.org/2003/05/soap-envelope"
	NsEbMS    = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/"
	NsEbbp    = "http://docs.oasis-open.org/ebxml-bp/ebbp-signals-2.0"
)

// ContentType is the media type of a SOAP 1.2 envelope
const ContentType = "application/soap+xml; charset=UTF-8"

// Envelope is a serialized SOAP envelope ready for dispatch
type Envelope struct {
	MessageID   string
	ContentType string
	Data        []byte
}

// Messaging represents the ebMS3 Messaging header
type Messaging struct {
	UserMessage   *UserMessage
	SignalMessage *SignalMessage
}

// MessageInfo contains message identification and timestamps
type MessageInfo struct {
	Timestamp      time.Time
	MessageID      string
	RefToMessageID string
}

// UserMessage represents an ebMS3 UserMessage
type UserMessage struct {
	MessageInfo    MessageInfo
	Mpc            string
	From           Party
	To             Party
	AgreementRef   *AgreementRef
	Service        Service
	Action         string
	ConversationID string
}

// Header returns the identifiers used for PMode resolution.
func (u *UserMessage) Header() pmode.MessageHeader {
	h := pmode.MessageHeader{
		From:         u.From.identifiers(),
		To:           u.To.identifiers(),
		ServiceValue: u.Service.Value,
		ServiceType:  u.Service.Type,
		Action:       u.Action,
	}
	if u.AgreementRef != nil {
		h.AgreementValue = u.AgreementRef.Value
		h.AgreementType = u.AgreementRef.Type
	}
	return h
}

// Party represents a messaging party
type Party struct {
	PartyIDs []PartyID
	Role     string
}

func (p Party) identifiers() []pmode.Identifier {
	ids := make([]pmode.Identifier, 0, len(p.PartyIDs))
	for _, id := range p.PartyIDs {
		ids = append(ids, pmode.Identifier{PartyID: id.Value, PartyIDType: id.Type})
	}
	return ids
}

// PartyID represents a party identifier with optional type
type PartyID struct {
	Type  string
	Value string
}

// AgreementRef references a business agreement
type AgreementRef struct {
	Type  string
	Value string
}

// Service identifies the service
type Service struct {
	Type  string
	Value string
}

// SignalMessage represents an ebMS3 SignalMessage
type SignalMessage struct {
	MessageInfo MessageInfo
	PullRequest *PullRequest
	Receipt     *Receipt
	Errors      []Error
}

// PullRequest asks the responding MSH for the next message on a channel
type PullRequest struct {
	Mpc string
}

// Receipt acknowledges the message referenced by the signal's RefToMessageID
type Receipt struct{}

// Error represents an ebMS3 error
type Error struct {
	ErrorCode           string
	Severity            string
	ShortDescription    string
	Category            string
	Origin              string
	Description         string
	ErrorDetail         string
	RefToMessageInError string
}
