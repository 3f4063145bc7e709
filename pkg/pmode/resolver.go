package pmode

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Resolver answers which configured entity matches a set of wire-level
// identifiers. It reads a single Configuration snapshot and never mutates it.
//
// Every scan walks the collections in declared order and the first match
// wins, so ambiguous configurations resolve the same way on every call.
type Resolver struct {
	cfg    *Configuration
	logger *slog.Logger
}

// NewResolver creates a resolver over cfg.
func NewResolver(cfg *Configuration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Configuration returns the snapshot the resolver reads.
func (r *Resolver) Configuration() *Configuration {
	return r.cfg
}

// MessageHeader carries the identifiers of a user message header that take
// part in PMode resolution.
type MessageHeader struct {
	From           []Identifier
	To             []Identifier
	ServiceValue   string
	ServiceType    string
	Action         string
	AgreementValue string
	AgreementType  string
}

// FindPModeKey resolves every component of a message header and returns the
// key of the governing leg.
func (r *Resolver) FindPModeKey(h MessageHeader) (Key, error) {
	sender, err := r.FindParty(h.From)
	if err != nil {
		return Key{}, err
	}
	receiver, err := r.FindParty(h.To)
	if err != nil {
		return Key{}, err
	}
	service, err := r.FindService(h.ServiceValue, h.ServiceType)
	if err != nil {
		return Key{}, err
	}
	action, err := r.FindAction(h.Action)
	if err != nil {
		return Key{}, err
	}
	agreement, err := r.FindAgreementRef(h.AgreementValue, h.AgreementType)
	if err != nil {
		return Key{}, err
	}
	leg, err := r.FindLeg(h.AgreementValue, sender, receiver, service, action)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Sender:    sender,
		Receiver:  receiver,
		Service:   service,
		Action:    action,
		Agreement: agreement,
		Leg:       leg,
	}, nil
}

// FindLeg returns the name of the first leg with the given service and
// action names among the legs of every process that the sender may initiate,
// the receiver may respond to and whose agreement value equals agreement.
//
// Only legs are matched, not their position in the process: the second leg
// of a two-way exchange is never selected over an equally matching first leg.
func (r *Resolver) FindLeg(agreement, sender, receiver, service, action string) (string, error) {
	var candidates []*LegConfiguration
	for _, process := range r.cfg.Processes {
		if process.AgreementValue() != agreement {
			continue
		}
		if !process.HasInitiator(sender) || !process.HasResponder(receiver) {
			continue
		}
		candidates = append(candidates, process.Legs...)
	}
	if len(candidates) == 0 {
		return "", &ResolutionError{
			Kind:   NoCandidateLegs,
			Detail: fmt.Sprintf("No Candidates for Legs found (agreement %q, sender %q, receiver %q)", agreement, sender, receiver),
		}
	}
	for _, leg := range candidates {
		if leg.Service.Name == service && leg.Action.Name == action {
			return leg.Name, nil
		}
	}
	return "", &ResolutionError{
		Kind:   NoMatchingLeg,
		Detail: fmt.Sprintf("No matching leg found (service %q, action %q)", service, action),
	}
}

// FindAction returns the name of the first action with the given value.
func (r *Resolver) FindAction(value string) (string, error) {
	for _, action := range r.cfg.Actions {
		if action.Value == value {
			return action.Name, nil
		}
	}
	return "", &ResolutionError{
		Kind:   NoMatchingAction,
		Detail: fmt.Sprintf("No matching action found for value %q", value),
	}
}

// FindService returns the name of the first service whose value and type
// both equal the supplied ones. An untyped service only matches "".
func (r *Resolver) FindService(value, typ string) (string, error) {
	for _, service := range r.cfg.Services {
		if service.Type == typ && service.Value == value {
			return service.Name, nil
		}
	}
	return "", &ResolutionError{
		Kind:   NoMatchingService,
		Detail: fmt.Sprintf("No matching service found for value %q and type %q", value, typ),
	}
}

// FindParty returns the name of the first party owning one of ids, scanning
// parties, then supplied identifiers, then the party's identifier records.
// A typed identifier whose type is not a valid URI fails the resolution as
// soon as the scan reaches it.
func (r *Resolver) FindParty(ids []Identifier) (string, error) {
	for _, party := range r.cfg.Parties {
		for _, id := range ids {
			for _, configured := range party.Identifiers {
				if id.PartyIDType != "" && !isURI(id.PartyIDType) {
					return "", &ResolutionError{
						Kind:   InvalidPartyIdType,
						Detail: fmt.Sprintf("PartyId %s is not a valid URI [CORE] 5.2.2.3", id.PartyIDType),
					}
				}
				if id.PartyIDType == configured.PartyIDType && id.PartyID == configured.PartyID {
					return party.Name, nil
				}
			}
		}
	}
	return "", &ResolutionError{
		Kind:   NoMatchingParty,
		Detail: fmt.Sprintf("No matching party found for %s", describeIdentifiers(ids)),
	}
}

// FindAgreementRef returns the name of the agreement with the given value and
// type. An empty value means the message carries no agreement and yields "".
func (r *Resolver) FindAgreementRef(value, typ string) (string, error) {
	if value == "" {
		return "", nil
	}
	for _, agreement := range r.cfg.Agreements {
		if agreement.Type == typ && agreement.Value == value {
			return agreement.Name, nil
		}
	}
	return "", &ResolutionError{
		Kind:   NoMatchingAgreement,
		Detail: fmt.Sprintf("No matching agreementRef found for value %q and type %q", value, typ),
	}
}

// SenderParty returns the party named by the sender component of key.
func (r *Resolver) SenderParty(key string) (*Party, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return r.party("sender party", k.Sender)
}

// ReceiverParty returns the party named by the receiver component of key.
func (r *Resolver) ReceiverParty(key string) (*Party, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return r.party("receiver party", k.Receiver)
}

func (r *Resolver) party(entity, name string) (*Party, error) {
	for _, party := range r.cfg.Parties {
		if party.Name == name {
			return party, nil
		}
	}
	return nil, &InconsistencyError{Entity: entity, Name: name}
}

// Service returns the service named by key.
func (r *Resolver) Service(key string) (*Service, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	for _, service := range r.cfg.Services {
		if service.Name == k.Service {
			return service, nil
		}
	}
	return nil, &InconsistencyError{Entity: "service", Name: k.Service}
}

// Action returns the action named by key.
func (r *Resolver) Action(key string) (*Action, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	for _, action := range r.cfg.Actions {
		if action.Name == k.Action {
			return action, nil
		}
	}
	return nil, &InconsistencyError{Entity: "action", Name: k.Action}
}

// Agreement returns the agreement named by key, or nil when the key carries
// no agreement.
func (r *Resolver) Agreement(key string) (*Agreement, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	if k.Agreement == "" {
		return nil, nil
	}
	for _, agreement := range r.cfg.Agreements {
		if agreement.Name == k.Agreement {
			return agreement, nil
		}
	}
	return nil, &InconsistencyError{Entity: "agreement", Name: k.Agreement}
}

// LegConfiguration returns the leg named by key.
func (r *Resolver) LegConfiguration(key string) (*LegConfiguration, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	for _, leg := range r.cfg.Legs {
		if leg.Name == k.Leg {
			return leg, nil
		}
	}
	return nil, &InconsistencyError{Entity: "leg", Name: k.Leg}
}

// IsKnownMpc reports whether a channel with the given name is configured.
func (r *Resolver) IsKnownMpc(name string) bool {
	return r.mpc(name) != nil
}

// RetentionDownloaded returns the retention of downloaded messages on the
// channel, or 0 when the channel is not configured.
func (r *Resolver) RetentionDownloaded(name string) int {
	if mpc := r.mpc(name); mpc != nil {
		return mpc.RetentionDownloaded
	}
	r.logger.Warn("unknown mpc, assuming retention of 0 for downloaded messages", "mpc", name)
	return 0
}

// RetentionUndownloaded returns the retention of undownloaded messages on
// the channel, or -1 when the channel is not configured.
func (r *Resolver) RetentionUndownloaded(name string) int {
	if mpc := r.mpc(name); mpc != nil {
		return mpc.RetentionUndownloaded
	}
	r.logger.Warn("unknown mpc, assuming retention of -1 for undownloaded messages", "mpc", name)
	return -1
}

// Mpcs returns the names of all configured channels in declared order.
func (r *Resolver) Mpcs() []string {
	names := make([]string, 0, len(r.cfg.Mpcs))
	for _, mpc := range r.cfg.Mpcs {
		names = append(names, mpc.Name)
	}
	return names
}

func (r *Resolver) mpc(name string) *Mpc {
	for _, mpc := range r.cfg.Mpcs {
		if mpc.Name == name {
			return mpc
		}
	}
	return nil
}

// PullTarget is a leg the local party fetches by sending a PullRequest
type PullTarget struct {
	Key      Key
	Mpc      string
	Endpoint string
}

// PullTargets lists, for every process the local party initiates whose
// binding pulls one of its legs, one target per responder and pulled leg.
// The key names the local party as sender and the responder as receiver, so
// the PullRequest is dispatched to the responder's endpoint.
func (r *Resolver) PullTargets() []PullTarget {
	local := r.cfg.Party
	if local == nil {
		return nil
	}
	var targets []PullTarget
	for _, process := range r.cfg.Processes {
		if !process.Binding.IsPull() || !process.HasInitiator(local.Name) {
			continue
		}
		agreement := ""
		if process.Agreement != nil {
			agreement = process.Agreement.Name
		}
		for i, leg := range process.Legs {
			if !process.Binding.PullsLeg(i) {
				continue
			}
			mpc := r.legMpc(leg)
			if mpc == "" {
				r.logger.Warn("pulled leg has no channel, skipping", "process", process.Name, "leg", leg.Name)
				continue
			}
			for _, responder := range process.Responders {
				targets = append(targets, PullTarget{
					Key: Key{
						Sender:    local.Name,
						Receiver:  responder.Name,
						Service:   leg.Service.Name,
						Action:    leg.Action.Name,
						Agreement: agreement,
						Leg:       leg.Name,
					},
					Mpc:      mpc,
					Endpoint: responder.Endpoint,
				})
			}
		}
	}
	return targets
}

func (r *Resolver) legMpc(leg *LegConfiguration) string {
	if leg.DefaultMpc != nil {
		return leg.DefaultMpc.QualifiedName
	}
	for _, mpc := range r.cfg.Mpcs {
		if mpc.Default {
			return mpc.QualifiedName
		}
	}
	return ""
}

func isURI(s string) bool {
	if strings.ContainsAny(s, " \t\r\n\"<>\\^`{|}") {
		return false
	}
	_, err := url.Parse(s)
	return err == nil
}

func describeIdentifiers(ids []Identifier) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.PartyIDType == "" {
			parts = append(parts, id.PartyID)
		} else {
			parts = append(parts, id.PartyIDType+"|"+id.PartyID)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
