// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the ebMS3 header structures exchanged by the
gateway, a builder for the signal messages it originates and a parser for
the envelopes it receives.

# Signals

The [Builder] serializes SOAP 1.2 envelopes carrying one SignalMessage:

	b := message.NewBuilder()
	pr, err := b.BuildPullRequest("http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/defaultMPC")
	receipt, err := b.BuildReceipt(userMessageID)
	fault, err := b.BuildError(ebms.NewError(ebms.ValueNotRecognized, "No matching leg found", id, ebms.RoleReceiving))

Every signal gets a fresh message id of the form uuid@as4-gateway.

# Parsing

[Parse] extracts the Messaging header of a response. A pull response holds
either a UserMessage, or a SignalMessage with Error entries when the
channel is empty or the request failed:

	m, err := message.Parse(body)
	if m.UserMessage == nil && m.SignalMessage != nil {
	    for _, e := range m.SignalMessage.Errors { ... }
	}

[UserMessage.Header] converts a user message into the identifiers used for
PMode resolution.

# References

  - OASIS ebMS 3.0 Core: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - ebCore Party ID Types: https://docs.oasis-open.org/ebcore/PartyIdType/v1.0/
*/
package message
