package pull

import (
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// ProcessingError is a transport or serialization failure. The work item
// may succeed when delivered again.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("error handling pulled message: %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ProtocolFaultError escalates an ebMS fault that is not a connection failure
type ProtocolFaultError struct {
	Fault *ebms.Error
}

func (e *ProtocolFaultError) Error() string {
	return "pull request failed: " + e.Fault.Error()
}

func (e *ProtocolFaultError) Unwrap() error {
	return e.Fault
}

// Class is the failure taxonomy work item outcomes map onto
type Class int

const (
	None Class = iota
	ConfigurationMissing
	ResolutionNotFound
	ConfigurationInconsistency
	InvalidPartyIdFormat
	TransportFailure
	PolicyInvalid
	ProtocolFault
	TransientEmptyMailbox
)

var classNames = map[Class]string{
	None:                       "None",
	ConfigurationMissing:       "ConfigurationMissing",
	ResolutionNotFound:         "ResolutionNotFound",
	ConfigurationInconsistency: "ConfigurationInconsistency",
	InvalidPartyIdFormat:       "InvalidPartyIdFormat",
	TransportFailure:           "TransportFailure",
	PolicyInvalid:              "PolicyInvalid",
	ProtocolFault:              "ProtocolFault",
	TransientEmptyMailbox:      "TransientEmptyMailbox",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Retriable reports whether delivering the work item again may succeed.
func (c Class) Retriable() bool {
	return c == TransportFailure
}

// Classify maps any error returned by the pull workflow, or by the
// components it calls, onto a Class. Unrecognised errors are treated as
// transport failures.
func Classify(err error) Class {
	if err == nil {
		return None
	}
	if errors.Is(err, pmode.ErrConfigurationMissing) {
		return ConfigurationMissing
	}

	var resolution *pmode.ResolutionError
	if errors.As(err, &resolution) {
		if resolution.Kind == pmode.InvalidPartyIdType {
			return InvalidPartyIdFormat
		}
		return ResolutionNotFound
	}

	var inconsistency *pmode.InconsistencyError
	if errors.As(err, &inconsistency) || errors.Is(err, pmode.ErrInvalidKey) {
		return ConfigurationInconsistency
	}

	var processing *ProcessingError
	if errors.As(err, &processing) {
		return TransportFailure
	}

	// Escalated faults keep their escalation: only EBMS:0005 is swallowed
	// by the workflow, so an escalated EBMS:0006 is a protocol fault.
	var escalated *ProtocolFaultError
	if errors.As(err, &escalated) && escalated.Fault != nil {
		if escalated.Fault.Code.Code == ebms.ProcessingModeMismatch.Code {
			return PolicyInvalid
		}
		return ProtocolFault
	}

	if code, ok := ebms.CodeOf(err); ok {
		switch code.Code {
		case ebms.ProcessingModeMismatch.Code:
			return PolicyInvalid
		case ebms.ConnectionFailure.Code, ebms.EmptyMessagePartitionChannel.Code:
			return TransientEmptyMailbox
		}
		return ProtocolFault
	}
	return TransportFailure
}
