package ebms

import (
	"errors"
	"fmt"
)

// Role is the MSH role in which a message was handled
type Role string

const (
	RoleSending   Role = "SENDING"
	RoleReceiving Role = "RECEIVING"
)

// Code represents an ebMS3 error code
type Code struct {
	Code             string
	Severity         string
	ShortDescription string
	Category         string
}

func (c Code) String() string {
	return c.Code
}

// Predefined ebMS3 error codes
var (
	ValueNotRecognized = Code{
		Code:             "EBMS:0001",
		Severity:         "Failure",
		ShortDescription: "ValueNotRecognized",
		Category:         "Content",
	}

	FeatureNotSupported = Code{
		Code:             "EBMS:0002",
		Severity:         "Warning",
		ShortDescription: "FeatureNotSupported",
		Category:         "Content",
	}

	ValueInconsistent = Code{
		Code:             "EBMS:0003",
		Severity:         "Failure",
		ShortDescription: "ValueInconsistent",
		Category:         "Content",
	}

	Other = Code{
		Code:             "EBMS:0004",
		Severity:         "Failure",
		ShortDescription: "Other",
		Category:         "Content",
	}

	ConnectionFailure = Code{
		Code:             "EBMS:0005",
		Severity:         "Failure",
		ShortDescription: "ConnectionFailure",
		Category:         "Communication",
	}

	EmptyMessagePartitionChannel = Code{
		Code:             "EBMS:0006",
		Severity:         "Warning",
		ShortDescription: "EmptyMessagePartitionChannel",
		Category:         "Communication",
	}

	ProcessingModeMismatch = Code{
		Code:             "EBMS:0010",
		Severity:         "Failure",
		ShortDescription: "ProcessingModeMismatch",
		Category:         "Processing",
	}

	DeliveryFailure = Code{
		Code:             "EBMS:0202",
		Severity:         "Failure",
		ShortDescription: "DeliveryFailure",
		Category:         "Communication",
	}

	MissingReceipt = Code{
		Code:             "EBMS:0301",
		Severity:         "Failure",
		ShortDescription: "MissingReceipt",
		Category:         "Communication",
	}

	DecompressionFailure = Code{
		Code:             "EBMS:0303",
		Severity:         "Failure",
		ShortDescription: "DecompressionFailure",
		Category:         "Communication",
	}
)

var codes = []Code{
	ValueNotRecognized, FeatureNotSupported, ValueInconsistent, Other,
	ConnectionFailure, EmptyMessagePartitionChannel, ProcessingModeMismatch,
	DeliveryFailure, MissingReceipt, DecompressionFailure,
}

// LookupCode returns the predefined code for a wire value such as "EBMS:0005".
func LookupCode(code string) (Code, bool) {
	for _, c := range codes {
		if c.Code == code {
			return c, true
		}
	}
	return Code{}, false
}

// Error is a protocol-level fault.
type Error struct {
	Code           Code
	Detail         string
	RefToMessageID string
	Role           Role
	Err            error
}

// NewError creates a protocol fault.
func NewError(code Code, detail, refToMessageID string, role Role) *Error {
	return &Error{Code: code, Detail: detail, RefToMessageID: refToMessageID, Role: role}
}

// WrapError creates a protocol fault caused by err.
func WrapError(code Code, detail, refToMessageID string, role Role, err error) *Error {
	e := NewError(code, detail, refToMessageID, role)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Code.Code, e.Code.ShortDescription, e.Detail)
	if e.RefToMessageID != "" {
		msg += " [ref " + e.RefToMessageID + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return Code{}, false
}
