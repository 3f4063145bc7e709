// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as4gateway is the core of an ebMS3/AS4 gateway: processing mode
resolution, message status tracking and the pull workflow.

# Overview

The gateway holds one processing mode (PMode) configuration describing the
trading partners, the services and actions they exchange, the agreements
governing them and the legs of every business process. Each message is
resolved against it to a PMode key

	sender:receiver:service:action:agreement:leg

which names the leg whose settings (security policy, channel, endpoint)
apply to the exchange.

For processes bound to the pull MEP, the gateway periodically sends a
PullRequest signal on every channel it pulls, records the user message it
receives and answers with a Receipt.

# Specifications

  - OASIS ebXML Messaging Services v3.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - OASIS AS4 Profile of ebMS 3.0 Version 1.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/

# Package Structure

	github.com/sirosfoundation/go-as4-gateway/pkg/pmode      - PMode model, parser, resolver and cache
	github.com/sirosfoundation/go-as4-gateway/pkg/ebms       - ebMS error codes and faults
	github.com/sirosfoundation/go-as4-gateway/pkg/message    - SOAP envelopes of signals and user messages
	github.com/sirosfoundation/go-as4-gateway/pkg/mep        - Message Exchange Patterns and bindings
	github.com/sirosfoundation/go-as4-gateway/pkg/mime       - SwA response unpacking
	github.com/sirosfoundation/go-as4-gateway/pkg/transport  - HTTPS transport with TLS 1.2/1.3
	github.com/sirosfoundation/go-as4-gateway/internal/messagelog - Message status tracker
	github.com/sirosfoundation/go-as4-gateway/internal/pull       - Pull scheduler, queue and processor
	github.com/sirosfoundation/go-as4-gateway/internal/inbound    - Reception and acknowledgement of pulled messages
	github.com/sirosfoundation/go-as4-gateway/internal/storage    - Memory, MongoDB and PostgreSQL storage
	github.com/sirosfoundation/go-as4-gateway/internal/server     - Admin HTTP API

# Running

	as4-gateway serve --config config.yaml
	as4-gateway validate-pmode configuration.xml

Sending SIGHUP to a running gateway reloads the PMode configuration from
storage.
*/
package as4gateway
