package message

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// ErrNoMessaging is returned for an envelope without an ebMS3 Messaging header
var ErrNoMessaging = errors.New("envelope carries no eb:Messaging header")

// Parse reads the Messaging header of a SOAP envelope.
func Parse(data []byte) (*Messaging, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}

	// unprefixed path steps match any namespace prefix
	messaging := doc.FindElement("//Messaging")
	if messaging == nil {
		return nil, ErrNoMessaging
	}

	m := &Messaging{}
	if um := messaging.SelectElement("UserMessage"); um != nil {
		m.UserMessage = parseUserMessage(um)
	}
	if sm := messaging.SelectElement("SignalMessage"); sm != nil {
		m.SignalMessage = parseSignalMessage(sm)
	}
	if m.UserMessage == nil && m.SignalMessage == nil {
		return nil, fmt.Errorf("messaging header is empty: %w", ErrNoMessaging)
	}
	return m, nil
}

func parseMessageInfo(e *etree.Element) MessageInfo {
	info := MessageInfo{}
	if e == nil {
		return info
	}
	info.MessageID = childText(e, "MessageId")
	info.RefToMessageID = childText(e, "RefToMessageId")
	if ts := childText(e, "Timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			info.Timestamp = t
		}
	}
	return info
}

func parseUserMessage(e *etree.Element) *UserMessage {
	um := &UserMessage{
		MessageInfo: parseMessageInfo(e.SelectElement("MessageInfo")),
		Mpc:         e.SelectAttrValue("mpc", ""),
	}
	if pi := e.SelectElement("PartyInfo"); pi != nil {
		um.From = parseParty(pi.SelectElement("From"))
		um.To = parseParty(pi.SelectElement("To"))
	}
	if ci := e.SelectElement("CollaborationInfo"); ci != nil {
		if ar := ci.SelectElement("AgreementRef"); ar != nil {
			um.AgreementRef = &AgreementRef{
				Type:  ar.SelectAttrValue("type", ""),
				Value: strings.TrimSpace(ar.Text()),
			}
		}
		if svc := ci.SelectElement("Service"); svc != nil {
			um.Service = Service{
				Type:  svc.SelectAttrValue("type", ""),
				Value: strings.TrimSpace(svc.Text()),
			}
		}
		um.Action = childText(ci, "Action")
		um.ConversationID = childText(ci, "ConversationId")
	}
	return um
}

func parseParty(e *etree.Element) Party {
	p := Party{}
	if e == nil {
		return p
	}
	for _, id := range e.SelectElements("PartyId") {
		p.PartyIDs = append(p.PartyIDs, PartyID{
			Type:  id.SelectAttrValue("type", ""),
			Value: strings.TrimSpace(id.Text()),
		})
	}
	p.Role = childText(e, "Role")
	return p
}

func parseSignalMessage(e *etree.Element) *SignalMessage {
	sm := &SignalMessage{MessageInfo: parseMessageInfo(e.SelectElement("MessageInfo"))}
	if pr := e.SelectElement("PullRequest"); pr != nil {
		sm.PullRequest = &PullRequest{Mpc: pr.SelectAttrValue("mpc", "")}
	}
	if e.SelectElement("Receipt") != nil {
		sm.Receipt = &Receipt{}
	}
	for _, ee := range e.SelectElements("Error") {
		sm.Errors = append(sm.Errors, Error{
			ErrorCode:           ee.SelectAttrValue("errorCode", ""),
			Severity:            ee.SelectAttrValue("severity", ""),
			ShortDescription:    ee.SelectAttrValue("shortDescription", ""),
			Category:            ee.SelectAttrValue("category", ""),
			Origin:              ee.SelectAttrValue("origin", ""),
			RefToMessageInError: ee.SelectAttrValue("refToMessageInError", ""),
			Description:         childText(ee, "Description"),
			ErrorDetail:         childText(ee, "ErrorDetail"),
		})
	}
	return sm
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
