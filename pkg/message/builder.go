package message

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

// Builder serializes signal messages into SOAP envelopes
type Builder struct {
	now   func() time.Time
	newID func() string
}

// BuilderOption represents a functional option for Builder
type BuilderOption func(*Builder)

// WithClock sets the clock used for signal timestamps
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// WithIDGenerator sets the generator of message ids
func WithIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) {
		b.newID = newID
	}
}

// NewBuilder creates a Builder
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: generateMessageID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildPullRequest creates a PullRequest signal for the channel
func (b *Builder) BuildPullRequest(mpc string) (*Envelope, error) {
	if mpc == "" {
		return nil, fmt.Errorf("pull request requires an mpc")
	}
	return b.buildSignal("", func(signal *etree.Element) {
		pr := signal.CreateElement("eb:PullRequest")
		pr.CreateAttr("mpc", mpc)
	})
}

// BuildReceipt creates a Receipt signal acknowledging refToMessageID
func (b *Builder) BuildReceipt(refToMessageID string) (*Envelope, error) {
	if refToMessageID == "" {
		return nil, fmt.Errorf("receipt requires the id of the acknowledged message")
	}
	return b.buildSignal(refToMessageID, func(signal *etree.Element) {
		receipt := signal.CreateElement("eb:Receipt")
		receipt.CreateAttr("xmlns:ebbp", NsEbbp)
		receipt.CreateElement("ebbp:UserMessage").SetText(refToMessageID)
	})
}

// BuildError creates an Error signal reporting fault
func (b *Builder) BuildError(fault *ebms.Error) (*Envelope, error) {
	return b.buildSignal(fault.RefToMessageID, func(signal *etree.Element) {
		e := signal.CreateElement("eb:Error")
		e.CreateAttr("errorCode", fault.Code.Code)
		e.CreateAttr("severity", fault.Code.Severity)
		e.CreateAttr("shortDescription", fault.Code.ShortDescription)
		e.CreateAttr("category", fault.Code.Category)
		e.CreateAttr("origin", "ebMS")
		if fault.RefToMessageID != "" {
			e.CreateAttr("refToMessageInError", fault.RefToMessageID)
		}
		e.CreateElement("eb:ErrorDetail").SetText(fault.Detail)
	})
}

func (b *Builder) buildSignal(refToMessageID string, body func(signal *etree.Element)) (*Envelope, error) {
	messageID := b.newID()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", NsSOAPEnv)
	env.CreateAttr("xmlns:eb", NsEbMS)

	header := env.CreateElement("soap:Header")
	messaging := header.CreateElement("eb:Messaging")
	messaging.CreateAttr("soap:mustUnderstand", "true")

	signal := messaging.CreateElement("eb:SignalMessage")
	info := signal.CreateElement("eb:MessageInfo")
	info.CreateElement("eb:Timestamp").SetText(b.now().Format(time.RFC3339Nano))
	info.CreateElement("eb:MessageId").SetText(messageID)
	if refToMessageID != "" {
		info.CreateElement("eb:RefToMessageId").SetText(refToMessageID)
	}
	body(signal)

	env.CreateElement("soap:Body")

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing signal: %w", err)
	}
	return &Envelope{MessageID: messageID, ContentType: ContentType, Data: data}, nil
}

// generateMessageID creates a message id in the form recommended by ebMS3 (uuid@host)
func generateMessageID() string {
	return uuid.New().String() + "@as4-gateway"
}
