package pmode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

func TestFindLeg(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name      string
		agreement string
		sender    string
		receiver  string
		service   string
		action    string
		want      string
		wantKind  ResolutionKind
	}{
		{"match", "A1", "blue_gw", "red_gw", "S1", "Act1", "leg1", 0},
		{"no matching action", "A1", "blue_gw", "red_gw", "S1", "Act2", "", NoMatchingLeg},
		{"unknown agreement", "A2", "blue_gw", "red_gw", "S1", "Act1", "", NoCandidateLegs},
		{"reversed parties", "A1", "red_gw", "blue_gw", "S1", "Act1", "", NoCandidateLegs},
		{"no agreement", "", "blue_gw", "red_gw", "noSecService", "noSecAction", "pullLeg", 0},
		{"no agreement wrong leg", "", "blue_gw", "red_gw", "S1", "Act1", "", NoMatchingLeg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindLeg(tt.agreement, tt.sender, tt.receiver, tt.service, tt.action)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.True(t, IsResolutionKind(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindLegFirstMatchWins(t *testing.T) {
	svc := &Service{Name: "svc", Value: "svc"}
	act := &Action{Name: "act", Value: "act"}
	blue := &Party{Name: "blue"}
	red := &Party{Name: "red"}
	first := &LegConfiguration{Name: "first", Service: svc, Action: act}
	second := &LegConfiguration{Name: "second", Service: svc, Action: act}
	cfg := &Configuration{
		Parties: []*Party{blue, red},
		Legs:    []*LegConfiguration{first, second},
		Processes: []*Process{
			{Name: "p1", Initiators: []*Party{blue}, Responders: []*Party{red}, Legs: []*LegConfiguration{first}},
			{Name: "p2", Initiators: []*Party{blue}, Responders: []*Party{red}, Legs: []*LegConfiguration{second}},
		},
	}
	r := NewResolver(cfg, nil)
	for i := 0; i < 10; i++ {
		leg, err := r.FindLeg("", "blue", "red", "svc", "act")
		require.NoError(t, err)
		assert.Equal(t, "first", leg)
	}
}

func TestFindAction(t *testing.T) {
	r, _ := newTestResolver(t)

	name, err := r.FindAction("TC1Leg2")
	require.NoError(t, err)
	assert.Equal(t, "Act2", name)

	_, err = r.FindAction("unknown")
	assert.True(t, IsResolutionKind(err, NoMatchingAction))
}

func TestFindService(t *testing.T) {
	r, _ := newTestResolver(t)

	name, err := r.FindService("bdx:noprocess", "tc1")
	require.NoError(t, err)
	assert.Equal(t, "S1", name)

	name, err = r.FindService("noSecService", "")
	require.NoError(t, err)
	assert.Equal(t, "noSecService", name)

	_, err = r.FindService("bdx:noprocess", "")
	assert.True(t, IsResolutionKind(err, NoMatchingService), "type must match as well as value")
}

func TestFindParty(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name     string
		ids      []Identifier
		want     string
		wantKind ResolutionKind
	}{
		{"typed", []Identifier{{PartyID: "domibus-red", PartyIDType: urnType}}, "red_gw", 0},
		{"untyped", []Identifier{{PartyID: "blue-untyped"}}, "blue_gw", 0},
		{"second identifier matches", []Identifier{{PartyID: "nobody"}, {PartyID: "domibus-red", PartyIDType: urnType}}, "red_gw", 0},
		{"type mismatch", []Identifier{{PartyID: "domibus-red"}}, "", NoMatchingParty},
		{"unknown", []Identifier{{PartyID: "nobody", PartyIDType: urnType}}, "", NoMatchingParty},
		{"invalid type", []Identifier{{PartyID: "domibus-red", PartyIDType: "not a uri"}}, "", InvalidPartyIdType},
		{
			"invalid type before a match",
			[]Identifier{{PartyID: "x", PartyIDType: "bad type"}, {PartyID: "domibus-red", PartyIDType: urnType}},
			"", InvalidPartyIdType,
		},
		{
			"match before an invalid type",
			[]Identifier{{PartyID: "blue-untyped"}, {PartyID: "x", PartyIDType: "bad type"}},
			"blue_gw", 0,
		},
		{
			"invalid type after a match in a later party",
			[]Identifier{{PartyID: "domibus-red", PartyIDType: urnType}, {PartyID: "x", PartyIDType: "bad type"}},
			"", InvalidPartyIdType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindParty(tt.ids)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.True(t, IsResolutionKind(err, tt.wantKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindPartyWithoutParties(t *testing.T) {
	r := NewResolver(&Configuration{}, nil)

	_, err := r.FindParty([]Identifier{{PartyID: "x", PartyIDType: "bad type"}})
	assert.True(t, IsResolutionKind(err, NoMatchingParty), "got %v", err)
}

func TestFindPartyInvalidTypeCode(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.FindParty([]Identifier{{PartyID: "domibus-red", PartyIDType: "a b"}})
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ebms.ValueInconsistent, re.Code())
	assert.Contains(t, re.Detail, "is not a valid URI")
}

func TestFindAgreementRef(t *testing.T) {
	r, _ := newTestResolver(t)

	name, err := r.FindAgreementRef("A1", "")
	require.NoError(t, err)
	assert.Equal(t, "agreement1", name)

	name, err = r.FindAgreementRef("A2", "T2")
	require.NoError(t, err)
	assert.Equal(t, "agreement2", name)

	_, err = r.FindAgreementRef("A2", "")
	assert.True(t, IsResolutionKind(err, NoMatchingAgreement))

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ebms.ValueNotRecognized, re.Code())
}

func TestFindAgreementRefEmptyNeverScans(t *testing.T) {
	// Scanning the nil entry would panic.
	r := NewResolver(&Configuration{Agreements: []*Agreement{nil}}, nil)

	name, err := r.FindAgreementRef("", "")
	require.NoError(t, err)
	assert.Empty(t, name)

	name, err = r.FindAgreementRef("", "some-type")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestFindPModeKeyRoundTrip(t *testing.T) {
	r, _ := newTestResolver(t)

	key, err := r.FindPModeKey(MessageHeader{
		From:           []Identifier{{PartyID: "domibus-blue", PartyIDType: urnType}},
		To:             []Identifier{{PartyID: "domibus-red", PartyIDType: urnType}},
		ServiceValue:   "bdx:noprocess",
		ServiceType:    "tc1",
		Action:         "TC1Leg1",
		AgreementValue: "A1",
	})
	require.NoError(t, err)
	assert.Equal(t, "blue_gw:red_gw:S1:Act1:agreement1:leg1", key.String())

	s := key.String()
	sender, err := r.SenderParty(s)
	require.NoError(t, err)
	assert.Equal(t, "blue_gw", sender.Name)

	receiver, err := r.ReceiverParty(s)
	require.NoError(t, err)
	assert.Equal(t, "red_gw", receiver.Name)
	assert.Equal(t, "https://red.example/msh", receiver.Endpoint)

	service, err := r.Service(s)
	require.NoError(t, err)
	assert.Equal(t, "bdx:noprocess", service.Value)

	action, err := r.Action(s)
	require.NoError(t, err)
	assert.Equal(t, "TC1Leg1", action.Value)

	agreement, err := r.Agreement(s)
	require.NoError(t, err)
	require.NotNil(t, agreement)
	assert.Equal(t, "A1", agreement.Value)

	leg, err := r.LegConfiguration(s)
	require.NoError(t, err)
	assert.Equal(t, "leg1", leg.Name)
	assert.Same(t, service, leg.Service)
	assert.Same(t, action, leg.Action)
}

func TestFindPModeKeyWithoutAgreement(t *testing.T) {
	r, _ := newTestResolver(t)

	key, err := r.FindPModeKey(MessageHeader{
		From:         []Identifier{{PartyID: "blue-untyped"}},
		To:           []Identifier{{PartyID: "domibus-red", PartyIDType: urnType}},
		ServiceValue: "noSecService",
		Action:       "noSecAction",
	})
	require.NoError(t, err)
	assert.Equal(t, "pullLeg", key.Leg)

	agreement, err := r.Agreement(key.String())
	require.NoError(t, err)
	assert.Nil(t, agreement)
}

func TestReverseLookupInconsistency(t *testing.T) {
	r, _ := newTestResolver(t)
	key := "blue_gw:green_gw:S1:Act1:agreement1:leg1"

	_, err := r.ReceiverParty(key)
	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "green_gw", ie.Name)
	assert.Equal(t, "no matching receiver party found with name: green_gw", ie.Error())

	_, err = r.LegConfiguration("blue_gw:red_gw:S1:Act1:agreement1:ghost")
	require.ErrorAs(t, err, &ie)

	_, err = r.Service("garbage")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestMpcQueries(t *testing.T) {
	r, logs := newTestResolver(t)

	assert.True(t, r.IsKnownMpc("mpc1"))
	assert.False(t, r.IsKnownMpc("unknown"))
	assert.Equal(t, []string{"defaultMpc", "mpc1"}, r.Mpcs())

	assert.Equal(t, 5, r.RetentionDownloaded("mpc1"))
	assert.Equal(t, 60, r.RetentionUndownloaded("mpc1"))
	assert.Empty(t, logs.String())

	assert.Equal(t, 0, r.RetentionDownloaded("unknown"))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "mpc=unknown")

	logs.Reset()
	assert.Equal(t, -1, r.RetentionUndownloaded("unknown"))
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestPullTargets(t *testing.T) {
	r, _ := newTestResolver(t)

	targets := r.PullTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "blue_gw:red_gw:noSecService:noSecAction::pullLeg", targets[0].Key.String())
	assert.Equal(t, "http://gateway.example/mpc/mpc1", targets[0].Mpc)
	assert.Equal(t, "https://red.example/msh", targets[0].Endpoint)

	leg, err := r.FindLeg("", targets[0].Key.Sender, targets[0].Key.Receiver, targets[0].Key.Service, targets[0].Key.Action)
	require.NoError(t, err)
	assert.Equal(t, targets[0].Key.Leg, leg)
}
