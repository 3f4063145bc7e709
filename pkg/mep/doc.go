// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mep defines the ebMS3 Message Exchange Pattern vocabulary used by
processes in a PMode configuration.

A process declares an MEP (one-way or two-way) and an MEP binding that says
how each leg travels over the wire:

	Push         sender initiates HTTP POST with the UserMessage
	Pull         receiver initiates with a PullRequest signal
	PushAndPush  two-way, both legs pushed
	PushAndPull  two-way, request pushed, reply pulled
	PullAndPush  two-way, request pulled, reply pushed

The pull scheduler uses [Binding.PullsLeg] to decide which legs of a process
must be fetched by sending a PullRequest.

# References

  - OASIS ebMS 3.0 Core, section 2.2: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
*/
package mep
