// Package inbound accepts user messages received by the gateway.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/internal/pull"
	"github.com/sirosfoundation/go-as4-gateway/internal/txn"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// ReceiptBuilder builds Receipt signals
type ReceiptBuilder interface {
	BuildReceipt(refToMessageID string) (*message.Envelope, error)
}

// Config holds the collaborators of a Handler
type Config struct {
	PModes     pull.ResolverSource
	UserLogs   *messagelog.Tracker[*messagelog.UserMessageLog]
	SignalLogs *messagelog.Tracker[*messagelog.SignalMessageLog]
	Tx         txn.Runner
	Builder    ReceiptBuilder
	// Backend names the consumer of received messages in the user message log
	Backend string
	Logger  *slog.Logger
}

// Handler records received user messages and acknowledges them with a receipt
type Handler struct {
	pmodes     pull.ResolverSource
	userLogs   *messagelog.Tracker[*messagelog.UserMessageLog]
	signalLogs *messagelog.Tracker[*messagelog.SignalMessageLog]
	tx         txn.Runner
	builder    ReceiptBuilder
	backend    string
	now        func() time.Time
	logger     *slog.Logger
}

// NewHandler creates a handler. A nil Tx runs without transactions.
func NewHandler(cfg Config) *Handler {
	if cfg.Tx == nil {
		cfg.Tx = txn.Direct
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		pmodes:     cfg.PModes,
		userLogs:   cfg.UserLogs,
		signalLogs: cfg.SignalLogs,
		tx:         cfg.Tx,
		builder:    cfg.Builder,
		backend:    cfg.Backend,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     cfg.Logger,
	}
}

// HandleNewUserMessage checks the message against the configuration, records
// it as RECEIVED together with the receipt acknowledging it, and returns the
// receipt.
//
// An empty pmodeKey resolves the key from the message header. A message that
// was already received is acknowledged again without a second record.
func (h *Handler) HandleNewUserMessage(ctx context.Context, pmodeKey string, raw []byte, m *message.Messaging, hctx *pull.HandlerContext) (*message.Envelope, error) {
	if m == nil || m.UserMessage == nil {
		return nil, ebms.NewError(ebms.ValueInconsistent, "no user message in envelope", "", ebms.RoleReceiving)
	}
	um := m.UserMessage
	messageID := um.MessageInfo.MessageID
	if messageID == "" {
		return nil, ebms.NewError(ebms.ValueInconsistent, "user message has no message id", "", ebms.RoleReceiving)
	}
	log := h.logger.With("message_id", messageID)

	key, err := h.resolveKey(ctx, pmodeKey, um)
	if err != nil {
		return nil, err
	}
	log = log.With("pmode_key", key)

	receipt, err := h.builder.BuildReceipt(messageID)
	if err != nil {
		return nil, fmt.Errorf("building receipt for %s: %w", messageID, err)
	}

	_, err = h.userLogs.FindByRole(ctx, messageID, ebms.RoleReceiving)
	if err == nil {
		log.Warn("duplicate user message, acknowledging again")
		return receipt, nil
	}
	if !errors.Is(err, messagelog.ErrMessageNotFound) {
		return nil, fmt.Errorf("checking for duplicate %s: %w", messageID, err)
	}

	mpc := um.Mpc
	endpoint := ""
	if hctx != nil {
		if mpc == "" {
			mpc = hctx.Mpc
		}
		endpoint = hctx.Endpoint
	}
	received := h.now()

	err = h.tx.InTx(ctx, func(ctx context.Context) error {
		err := h.userLogs.Create(ctx, &messagelog.UserMessageLog{
			Log: messagelog.Log{
				MessageID: messageID,
				MSHRole:   ebms.RoleReceiving,
				Status:    messagelog.Received,
				Mpc:       mpc,
				Received:  received,
			},
			Backend:  h.backend,
			Endpoint: endpoint,
		})
		if err != nil {
			return err
		}
		return h.signalLogs.Create(ctx, &messagelog.SignalMessageLog{
			Log: messagelog.Log{
				MessageID: receipt.MessageID,
				MSHRole:   ebms.RoleSending,
				Status:    messagelog.Acknowledged,
				Mpc:       mpc,
				Received:  received,
			},
			RefToMessageID: messageID,
		})
	})
	if errors.Is(err, messagelog.ErrDuplicateMessage) {
		// The id may belong to a message this gateway sent.
		if _, findErr := h.userLogs.FindByRole(ctx, messageID, ebms.RoleReceiving); findErr == nil {
			log.Warn("user message recorded concurrently, acknowledging again")
			return receipt, nil
		}
	}
	if err != nil {
		return nil, ebms.WrapError(ebms.Other, "could not record received message", messageID, ebms.RoleReceiving, err)
	}

	log.Info("user message received", "mpc", mpc, "receipt_id", receipt.MessageID)
	return receipt, nil
}

func (h *Handler) resolveKey(ctx context.Context, pmodeKey string, um *message.UserMessage) (string, error) {
	resolver, err := h.pmodes.Resolver(ctx)
	if err != nil {
		return "", err
	}
	messageID := um.MessageInfo.MessageID

	if pmodeKey == "" {
		key, err := resolver.FindPModeKey(um.Header())
		if err != nil {
			var re *pmode.ResolutionError
			if errors.As(err, &re) {
				return "", re.EbMS(messageID, ebms.RoleReceiving)
			}
			return "", err
		}
		return key.String(), nil
	}

	if _, err := resolver.LegConfiguration(pmodeKey); err != nil {
		return "", ebms.WrapError(ebms.ProcessingModeMismatch, "no leg for pmode key "+pmodeKey, messageID, ebms.RoleReceiving, err)
	}
	return pmodeKey, nil
}

// CreateErrorResult describes fault for the backend.
func (h *Handler) CreateErrorResult(fault *ebms.Error) *pull.ErrorResult {
	return &pull.ErrorResult{
		MessageID:   fault.RefToMessageID,
		ErrorCode:   fault.Code.Code,
		ErrorDetail: fault.Detail,
		Time:        h.now(),
	}
}
