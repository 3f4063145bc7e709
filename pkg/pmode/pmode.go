// Package pmode implements Processing Mode configuration and resolution for AS4
package pmode

import (
	"github.com/sirosfoundation/go-as4-gateway/pkg/mep"
)

// Identifier is one wire-level identifier of a party. Type is empty when the
// identifier is untyped.
type Identifier struct {
	PartyID     string `json:"partyId"`
	PartyIDType string `json:"partyIdType,omitempty"`
}

// Party is a trading partner known to the gateway
type Party struct {
	Name        string       `json:"name"`
	Endpoint    string       `json:"endpoint,omitempty"`
	Identifiers []Identifier `json:"identifiers"`
}

// Service identifies a business service by value and optional type
type Service struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Action identifies a business action
type Action struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Agreement is a business agreement reference. Type is never nil, an
// untyped agreement has Type "".
type Agreement struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Security names the WS-Policy applied to a leg
type Security struct {
	Name            string `json:"name"`
	Policy          string `json:"policy"`
	SignatureMethod string `json:"signatureMethod,omitempty"`
}

// Mpc is a message partition channel. A negative retention means the
// messages never expire.
type Mpc struct {
	Name                  string `json:"name"`
	QualifiedName         string `json:"qualifiedName"`
	Default               bool   `json:"default,omitempty"`
	RetentionDownloaded   int    `json:"retentionDownloaded"`
	RetentionUndownloaded int    `json:"retentionUndownloaded"`
}

// LegConfiguration binds a service and action to a security policy and a
// default channel for one hop of a process.
type LegConfiguration struct {
	Name       string    `json:"name"`
	Service    *Service  `json:"service"`
	Action     *Action   `json:"action"`
	Security   *Security `json:"security"`
	DefaultMpc *Mpc      `json:"defaultMpc,omitempty"`
}

// Process ties parties, an agreement and legs into one exchange
type Process struct {
	Name       string              `json:"name"`
	Agreement  *Agreement          `json:"agreement,omitempty"`
	MEP        mep.MEP             `json:"mep"`
	Binding    mep.Binding         `json:"binding"`
	Initiators []*Party            `json:"initiators"`
	Responders []*Party            `json:"responders"`
	Legs       []*LegConfiguration `json:"legs"`
}

// AgreementValue returns the agreement value, or "" for a process without one.
func (p *Process) AgreementValue() string {
	if p.Agreement == nil {
		return ""
	}
	return p.Agreement.Value
}

// HasInitiator reports whether the named party may initiate the process.
func (p *Process) HasInitiator(name string) bool {
	return containsParty(p.Initiators, name)
}

// HasResponder reports whether the named party may respond in the process.
func (p *Process) HasResponder(name string) bool {
	return containsParty(p.Responders, name)
}

func containsParty(parties []*Party, name string) bool {
	for _, party := range parties {
		if party.Name == name {
			return true
		}
	}
	return false
}

// Configuration is a parsed PMode document. It is immutable once published
// by the Cache.
type Configuration struct {
	// Party is the local gateway
	Party      *Party              `json:"party"`
	Mpcs       []*Mpc              `json:"mpcs"`
	Parties    []*Party            `json:"parties"`
	Services   []*Service          `json:"services"`
	Actions    []*Action           `json:"actions"`
	Agreements []*Agreement        `json:"agreements"`
	Securities []*Security         `json:"securities"`
	Legs       []*LegConfiguration `json:"legs"`
	Processes  []*Process          `json:"processes"`
}
