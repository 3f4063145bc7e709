// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pmode provides Processing Mode (P-Mode) configuration and resolution
for AS4.

A PMode document describes the parties, services, actions, agreements,
channels (MPCs) and business processes the gateway exchanges messages
under. Incoming and outgoing messages carry wire-level identifiers which are
resolved against the document to find the leg that governs the exchange.

# Configuration Snapshot

The parsed document is an immutable [Configuration]. The [Cache] owns the
current snapshot, loads it lazily from a [Repository] and swaps it atomically
on Refresh or Replace:

	cache := pmode.NewCache(repo, pmode.XMLParser{}, logger)
	if err := cache.Replace(ctx, raw); err != nil {
	    return err
	}

# Resolution

A [Resolver] answers queries against one snapshot. Resolution always takes
the first match in declared order:

	r, err := cache.Resolver(ctx)
	key, err := r.FindPModeKey(pmode.MessageHeader{
	    From:           []pmode.Identifier{{PartyID: "domibus-blue", PartyIDType: urnType}},
	    To:             []pmode.Identifier{{PartyID: "domibus-red", PartyIDType: urnType}},
	    ServiceValue:   "bdx:noprocess",
	    ServiceType:    "tc1",
	    Action:         "TC1Leg1",
	    AgreementValue: "A1",
	})

Lookups that match nothing fail with a [*ResolutionError] whose Kind maps to
an ebMS3 error code. Reverse lookups by [Key] fail with an
[*InconsistencyError] instead, since a key produced by resolution must
always resolve.

# PMode Keys

A key names the resolved entities in the order
sender:receiver:service:action:agreement:leg. Entity names cannot contain
the separator, so keys always split back into their components.

# References

  - OASIS AS4 P-Mode: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - eDelivery P-Mode: https://ec.europa.eu/digital-building-blocks/sites/spaces/DIGITAL/
*/
package pmode
