// Package pull retrieves messages held for this gateway by peer MSHs.
//
// A [WorkItem] names a message partition channel and the PMode key of the
// pulled leg. The [Processor] sends one PullRequest signal for it, hands a
// returned user message to the [UserMessageHandler] and dispatches the
// acknowledgement back to the peer. Failures come back classified so the
// queue consuming work items knows whether to redeliver; the processor never
// retries on its own.
//
// Work items are produced by the [Scheduler] on a cron expression or on
// demand, buffered by a [ChannelQueue] and consumed by a pool of workers in
// the [Consumer].
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/internal/policy"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// Metric names
const (
	MetricOutgoingPullRequest  = "pull.outgoing.pullrequest"
	MetricOutgoingCount        = "pull.outgoing.count"
	MetricProcessPullRequest   = "pull.processPullRequest"
	MetricResolve              = "pull.resolve"
	MetricPolicy               = "pull.policy"
	MetricBuild                = "pull.build"
	MetricDispatchPullRequest  = "pull.dispatchPullRequest"
	MetricHandleNewUserMessage = "pull.handleNewUserMessage"
	MetricDispatchPullReceipt  = "pull.dispatchPullReceipt"
)

// WorkItem asks for one PullRequest on a channel
type WorkItem struct {
	Mpc                  string `json:"mpc"`
	PModeKey             string `json:"pmodeKey"`
	NotifyBackendOnError bool   `json:"notifyBackendOnError"`
}

// ErrorResult describes a failed reception to the backend
type ErrorResult struct {
	MessageID   string
	ErrorCode   string
	ErrorDetail string
	Time        time.Time
}

// HandlerContext carries what the processor knows about a pulled message
type HandlerContext struct {
	Mpc      string
	Leg      *pmode.LegConfiguration
	Endpoint string
}

// ResolverSource hands out the current configuration snapshot
type ResolverSource interface {
	Resolver(ctx context.Context) (*pmode.Resolver, error)
}

// Dispatcher sends an envelope to a peer and returns the response
type Dispatcher interface {
	Dispatch(ctx context.Context, env *message.Envelope, endpoint string, pol *policy.Policy, leg *pmode.LegConfiguration, pmodeKey string) ([]byte, error)
}

// EnvelopeBuilder builds PullRequest signals
type EnvelopeBuilder interface {
	BuildPullRequest(mpc string) (*message.Envelope, error)
}

// PolicyResolver loads the security policy of a leg
type PolicyResolver interface {
	ParsePolicy(ref string) (*policy.Policy, error)
}

// BackendNotifier reports reception failures to the backend
type BackendNotifier interface {
	NotifyMessageReceivedFailure(ctx context.Context, um *message.UserMessage, result *ErrorResult) error
}

// UserMessageHandler accepts a pulled user message and returns the
// acknowledgement to send back
type UserMessageHandler interface {
	HandleNewUserMessage(ctx context.Context, pmodeKey string, raw []byte, messaging *message.Messaging, hctx *HandlerContext) (*message.Envelope, error)
	CreateErrorResult(fault *ebms.Error) *ErrorResult
}

// Metrics receives meters, counters and stage timers
type Metrics interface {
	Mark(name string)
	Inc(name string)
	Dec(name string)
	Time(name string) func()
}

// Config holds the collaborators of a Processor
type Config struct {
	PModes     ResolverSource
	Policies   PolicyResolver
	Builder    EnvelopeBuilder
	Dispatcher Dispatcher
	Handler    UserMessageHandler
	Notifier   BackendNotifier
	Metrics    Metrics
	Logger     *slog.Logger
}

// Processor runs the pull workflow for one work item at a time. It holds no
// per-item state and is safe for concurrent use.
type Processor struct {
	pmodes     ResolverSource
	policies   PolicyResolver
	builder    EnvelopeBuilder
	dispatcher Dispatcher
	handler    UserMessageHandler
	notifier   BackendNotifier
	metrics    Metrics
	logger     *slog.Logger
}

// NewProcessor creates a processor. Metrics and Logger are optional.
func NewProcessor(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	return &Processor{
		pmodes:     cfg.PModes,
		policies:   cfg.Policies,
		builder:    cfg.Builder,
		dispatcher: cfg.Dispatcher,
		handler:    cfg.Handler,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Process sends a PullRequest for item and handles the answer.
//
// It returns nil when the peer had nothing to deliver, when a message was
// received and acknowledged, and when the peer reported EBMS:0005. Transport
// and serialization failures come back as *ProcessingError, other protocol
// faults as *ProtocolFaultError and configuration problems as the resolver
// reported them.
func (p *Processor) Process(ctx context.Context, item WorkItem) error {
	p.metrics.Mark(MetricOutgoingPullRequest)
	p.metrics.Inc(MetricOutgoingCount)
	stop := p.metrics.Time(MetricProcessPullRequest)
	defer func() {
		stop()
		p.metrics.Dec(MetricOutgoingCount)
	}()

	log := p.logger.With("mpc", item.Mpc, "pmode_key", item.PModeKey)

	var messaging *message.Messaging
	err := p.process(ctx, item, log, &messaging)

	var fault *ebms.Error
	if err == nil || !errors.As(err, &fault) {
		return err
	}
	return p.handleFault(ctx, item, messaging, fault, log)
}

func (p *Processor) process(ctx context.Context, item WorkItem, log *slog.Logger, received **message.Messaging) error {
	stop := p.metrics.Time(MetricResolve)
	resolver, err := p.pmodes.Resolver(ctx)
	if err != nil {
		stop()
		return fmt.Errorf("loading pmode configuration: %w", err)
	}
	leg, err := resolver.LegConfiguration(item.PModeKey)
	if err != nil {
		stop()
		return fmt.Errorf("resolving leg: %w", err)
	}
	receiver, err := resolver.ReceiverParty(item.PModeKey)
	stop()
	if err != nil {
		return fmt.Errorf("resolving receiver party: %w", err)
	}

	stop = p.metrics.Time(MetricPolicy)
	pol, err := p.policies.ParsePolicy(securityPolicy(leg))
	stop()
	if err != nil {
		return ebms.WrapError(ebms.ProcessingModeMismatch, "Policy configuration invalid", "", ebms.RoleSending, err)
	}

	stop = p.metrics.Time(MetricBuild)
	env, err := p.builder.BuildPullRequest(item.Mpc)
	stop()
	if err != nil {
		return &ProcessingError{Stage: "build pull request", Err: err}
	}

	log.Debug("sending pull request", "message_id", env.MessageID, "endpoint", receiver.Endpoint)
	stop = p.metrics.Time(MetricDispatchPullRequest)
	raw, err := p.dispatcher.Dispatch(ctx, env, receiver.Endpoint, pol, leg, item.PModeKey)
	stop()
	if err != nil {
		return dispatchError("dispatch pull request", err)
	}

	messaging, err := message.Parse(raw)
	if err != nil {
		return &ProcessingError{Stage: "read pull response", Err: err}
	}
	*received = messaging

	// A signal without a user message ends the pull, whatever it carries.
	if messaging.UserMessage == nil {
		if messaging.SignalMessage == nil {
			return &ProcessingError{Stage: "read pull response", Err: errors.New("response carries neither a user message nor a signal")}
		}
		log.Info("no message available for pull request")
		for _, e := range messaging.SignalMessage.Errors {
			log.Info("pull response error", "code", e.ErrorCode, "short_description", e.ShortDescription, "detail", e.ErrorDetail)
		}
		return nil
	}

	messageID := messaging.UserMessage.MessageInfo.MessageID
	log = log.With("message_id", messageID)
	log.Info("pulled user message")

	hctx := &HandlerContext{Mpc: item.Mpc, Leg: leg, Endpoint: receiver.Endpoint}
	stop = p.metrics.Time(MetricHandleNewUserMessage)
	ack, err := p.handler.HandleNewUserMessage(ctx, item.PModeKey, raw, messaging, hctx)
	stop()
	if err != nil {
		var fault *ebms.Error
		if errors.As(err, &fault) {
			return err
		}
		return &ProcessingError{Stage: "handle user message", Err: err}
	}

	stop = p.metrics.Time(MetricDispatchPullReceipt)
	_, err = p.dispatcher.Dispatch(ctx, ack, receiver.Endpoint, pol, leg, item.PModeKey)
	stop()
	if err != nil {
		return dispatchError("dispatch pull receipt", err)
	}
	log.Debug("pull receipt sent", "receipt_id", ack.MessageID)
	return nil
}

func (p *Processor) handleFault(ctx context.Context, item WorkItem, messaging *message.Messaging, fault *ebms.Error, log *slog.Logger) error {
	if item.NotifyBackendOnError && messaging != nil && messaging.UserMessage != nil {
		um := messaging.UserMessage
		if err := p.notifier.NotifyMessageReceivedFailure(ctx, um, p.handler.CreateErrorResult(fault)); err != nil {
			log.Error("backend notification failed", "message_id", um.MessageInfo.MessageID, "error", err)
		}
	}

	if fault.Code.Code == ebms.ConnectionFailure.Code {
		log.Warn(fault.Detail)
		log.Warn(fault.Error())
		return nil
	}
	return &ProtocolFaultError{Fault: fault}
}

// dispatchError keeps a protocol fault reported by the peer and wraps
// everything else as a processing failure.
func dispatchError(stage string, err error) error {
	var fault *ebms.Error
	if errors.As(err, &fault) {
		return fault
	}
	return &ProcessingError{Stage: stage, Err: err}
}

func securityPolicy(leg *pmode.LegConfiguration) string {
	if leg.Security == nil {
		return ""
	}
	return leg.Security.Policy
}

type nopMetrics struct{}

func (nopMetrics) Mark(string)        {}
func (nopMetrics) Inc(string)         {}
func (nopMetrics) Dec(string)         {}
func (nopMetrics) Time(string) func() { return func() {} }
