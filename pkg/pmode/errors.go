package pmode

import (
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

var (
	// ErrConfigurationMissing is returned while no PMode document has been uploaded
	ErrConfigurationMissing = errors.New("no processing modes found, upload a configuration to exchange messages")

	// ErrInvalidKey is returned for a PMode key that does not have six components
	ErrInvalidKey = errors.New("malformed pmode key")
)

// ResolutionKind classifies a failed resolution
type ResolutionKind int

const (
	NoCandidateLegs ResolutionKind = iota + 1
	NoMatchingLeg
	NoMatchingAction
	NoMatchingService
	NoMatchingParty
	InvalidPartyIdType
	NoMatchingAgreement
)

var kindNames = map[ResolutionKind]string{
	NoCandidateLegs:     "NoCandidateLegs",
	NoMatchingLeg:       "NoMatchingLeg",
	NoMatchingAction:    "NoMatchingAction",
	NoMatchingService:   "NoMatchingService",
	NoMatchingParty:     "NoMatchingParty",
	InvalidPartyIdType:  "InvalidPartyIdType",
	NoMatchingAgreement: "NoMatchingAgreement",
}

func (k ResolutionKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ResolutionKind(%d)", int(k))
}

// ResolutionError reports wire-level identifiers that match no configured entity
type ResolutionError struct {
	Kind   ResolutionKind
	Detail string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("pmode resolution failed (%s): %s", e.Kind, e.Detail)
}

// Code returns the ebMS3 error code reported to the peer.
func (e *ResolutionError) Code() ebms.Code {
	switch e.Kind {
	case NoMatchingParty, InvalidPartyIdType:
		return ebms.ValueInconsistent
	}
	return ebms.ValueNotRecognized
}

// EbMS converts the failure into a protocol fault for the given message.
func (e *ResolutionError) EbMS(refToMessageID string, role ebms.Role) *ebms.Error {
	return ebms.WrapError(e.Code(), e.Detail, refToMessageID, role, e)
}

// IsResolutionKind reports whether err is a ResolutionError of the given kind.
func IsResolutionKind(err error, kind ResolutionKind) bool {
	var re *ResolutionError
	return errors.As(err, &re) && re.Kind == kind
}

// InconsistencyError reports a key component naming an entity that is not
// configured. A key produced by resolution always resolves, so this points
// at a configuration replaced under an in-flight key or a corrupted key.
type InconsistencyError struct {
	Entity string
	Name   string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("no matching %s found with name: %s", e.Entity, e.Name)
}
