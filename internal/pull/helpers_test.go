package pull

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as4-gateway/internal/policy"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

const pullKey = "blue_gw:red_gw:noSecService:noSecAction::pullLeg"

const pulledUserMessage = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Header>
    <eb:Messaging xmlns:eb="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
      <eb:UserMessage mpc="http://gateway.example/mpc/mpc1">
        <eb:MessageInfo>
          <eb:Timestamp>2024-05-01T10:00:00Z</eb:Timestamp>
          <eb:MessageId>pulled-1@red</eb:MessageId>
        </eb:MessageInfo>
        <eb:PartyInfo>
          <eb:From><eb:PartyId type="urn:oasis:names:tc:ebcore:partyid-type:unregistered">domibus-red</eb:PartyId></eb:From>
          <eb:To><eb:PartyId type="urn:oasis:names:tc:ebcore:partyid-type:unregistered">domibus-blue</eb:PartyId></eb:To>
        </eb:PartyInfo>
        <eb:CollaborationInfo>
          <eb:Service>noSecService</eb:Service>
          <eb:Action>noSecAction</eb:Action>
        </eb:CollaborationInfo>
      </eb:UserMessage>
    </eb:Messaging>
  </env:Header>
  <env:Body/>
</env:Envelope>`

func loadCache(t *testing.T) *pmode.Cache {
	t.Helper()
	raw, err := os.ReadFile("../../pkg/pmode/testdata/configuration.xml")
	require.NoError(t, err)
	return pmode.NewCache(pmode.NewMemoryRepository(raw), nil, nil)
}

func emptyMailbox(t *testing.T) []byte {
	t.Helper()
	env, err := message.NewBuilder().BuildError(ebms.NewError(ebms.EmptyMessagePartitionChannel, "nothing to pull", "", ebms.RoleSending))
	require.NoError(t, err)
	return env.Data
}

type dispatchCall struct {
	endpoint string
	env      *message.Envelope
	pmodeKey string
	policy   string
}

type fakeDispatcher struct {
	mu        sync.Mutex
	calls     []dispatchCall
	responses []func() ([]byte, error)
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, env *message.Envelope, endpoint string, pol *policy.Policy, leg *pmode.LegConfiguration, pmodeKey string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := ""
	if pol != nil {
		name = pol.Name
	}
	d.calls = append(d.calls, dispatchCall{endpoint: endpoint, env: env, pmodeKey: pmodeKey, policy: name})
	i := len(d.calls) - 1
	if i >= len(d.responses) {
		return nil, nil
	}
	return d.responses[i]()
}

func respond(data []byte) func() ([]byte, error) {
	return func() ([]byte, error) { return data, nil }
}

func fail(err error) func() ([]byte, error) {
	return func() ([]byte, error) { return nil, err }
}

type fakeHandler struct {
	err      error
	handled  []string
	keys     []string
	contexts []*HandlerContext
}

func (h *fakeHandler) HandleNewUserMessage(ctx context.Context, pmodeKey string, raw []byte, m *message.Messaging, hctx *HandlerContext) (*message.Envelope, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.handled = append(h.handled, m.UserMessage.MessageInfo.MessageID)
	h.keys = append(h.keys, pmodeKey)
	h.contexts = append(h.contexts, hctx)
	return message.NewBuilder().BuildReceipt(m.UserMessage.MessageInfo.MessageID)
}

func (h *fakeHandler) CreateErrorResult(fault *ebms.Error) *ErrorResult {
	return &ErrorResult{MessageID: fault.RefToMessageID, ErrorCode: fault.Code.Code, ErrorDetail: fault.Detail, Time: time.Now()}
}

type fakeNotifier struct {
	err     error
	results []*ErrorResult
}

func (n *fakeNotifier) NotifyMessageReceivedFailure(ctx context.Context, um *message.UserMessage, result *ErrorResult) error {
	n.results = append(n.results, result)
	return n.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	marks    map[string]int
	counters map[string]int
	started  map[string]int
	stopped  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		marks:    map[string]int{},
		counters: map[string]int{},
		started:  map[string]int{},
		stopped:  map[string]int{},
	}
}

func (m *recordingMetrics) Mark(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[name]++
}

func (m *recordingMetrics) Inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

func (m *recordingMetrics) Dec(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]--
}

func (m *recordingMetrics) Time(name string) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[name]++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stopped[name]++
	}
}

type fixture struct {
	processor  *Processor
	dispatcher *fakeDispatcher
	handler    *fakeHandler
	notifier   *fakeNotifier
	metrics    *recordingMetrics
}

func newFixture(t *testing.T, responses ...func() ([]byte, error)) *fixture {
	t.Helper()
	f := &fixture{
		dispatcher: &fakeDispatcher{responses: responses},
		handler:    &fakeHandler{},
		notifier:   &fakeNotifier{},
		metrics:    newRecordingMetrics(),
	}
	f.processor = NewProcessor(Config{
		PModes:     loadCache(t),
		Policies:   policy.NewResolver("../policy/testdata"),
		Builder:    message.NewBuilder(),
		Dispatcher: f.dispatcher,
		Handler:    f.handler,
		Notifier:   f.notifier,
		Metrics:    f.metrics,
	})
	return f
}

var errConnRefused = errors.New("connection refused")
