// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport implements the HTTPS transport used to exchange signals
with peer MSHs.

Connections use TLS 1.2 or 1.3 as required by the eDelivery AS4 profile:

	d := transport.NewDispatcher(&transport.HTTPSConfig{
	    MinTLSVersion: transport.TLS12,
	    MaxTLSVersion: transport.TLS13,
	    RootCAs:       certPool,
	    Timeout:       30 * time.Second,
	}, logger)

	response, err := d.Dispatch(ctx, envelope, party.Endpoint, policy, leg, key.String())

# Failures

A peer that rejects the envelope with an ebMS Error signal produces an
*ebms.Error so the caller can apply protocol rules to it. Connection
failures, timeouts and other non-2xx answers produce a *transport.Error,
which callers treat as retriable.

# References

  - eDelivery AS4 Transport: https://ec.europa.eu/digital-building-blocks/sites/spaces/DIGITAL/
  - TLS 1.3 RFC 8446: https://datatracker.ietf.org/doc/html/rfc8446
*/
package transport
