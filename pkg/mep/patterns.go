package mep

import (
	"fmt"
	"strings"
)

const nsCore = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/"

// MEP identifies a Message Exchange Pattern
type MEP string

const (
	// OneWay is a single-leg exchange
	OneWay MEP = nsCore + "oneWay"

	// TwoWay is a request/reply exchange
	TwoWay MEP = nsCore + "twoWay"
)

// Binding identifies how the legs of an MEP map onto transport channels
type Binding string

const (
	// Push binding for one-way exchanges
	Push Binding = nsCore + "push"

	// Pull binding for one-way exchanges
	Pull Binding = nsCore + "pull"

	// PushAndPush binding for two-way exchanges
	PushAndPush Binding = nsCore + "pushAndPush"

	// PushAndPull binding for two-way exchanges
	PushAndPull Binding = nsCore + "pushAndPull"

	// PullAndPush binding for two-way exchanges
	PullAndPush Binding = nsCore + "pullAndPush"
)

var (
	knownMEPs     = []MEP{OneWay, TwoWay}
	knownBindings = []Binding{Push, Pull, PushAndPush, PushAndPull, PullAndPush}
)

// ParseMEP accepts either the full URI or its short suffix ("oneWay").
// Matching on the suffix is case-insensitive.
func ParseMEP(value string) (MEP, error) {
	for _, m := range knownMEPs {
		if matches(string(m), value) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown MEP %q", value)
}

// ParseBinding accepts either the full URI or its short suffix ("pull").
func ParseBinding(value string) (Binding, error) {
	for _, b := range knownBindings {
		if matches(string(b), value) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown MEP binding %q", value)
}

func matches(uri, value string) bool {
	value = strings.TrimSpace(value)
	if value == uri {
		return true
	}
	return strings.EqualFold(strings.TrimPrefix(uri, nsCore), value)
}

// Legs returns how many legs the MEP has.
func (m MEP) Legs() int {
	if m == TwoWay {
		return 2
	}
	return 1
}

// Compatible reports whether the binding can carry the MEP.
func (b Binding) Compatible(m MEP) bool {
	switch b {
	case Push, Pull:
		return m == OneWay
	case PushAndPush, PushAndPull, PullAndPush:
		return m == TwoWay
	}
	return false
}

// PullsLeg reports whether the leg at index (0-based) is transferred by a
// PullRequest issued by the responder of that leg.
func (b Binding) PullsLeg(index int) bool {
	switch b {
	case Pull:
		return index == 0
	case PullAndPush:
		return index == 0
	case PushAndPull:
		return index == 1
	}
	return false
}

// IsPull reports whether any leg of the binding is pulled.
func (b Binding) IsPull() bool {
	return b.PullsLeg(0) || b.PullsLeg(1)
}

// Short returns the suffix of the URI, e.g. "pushAndPull".
func (b Binding) Short() string {
	return strings.TrimPrefix(string(b), nsCore)
}
