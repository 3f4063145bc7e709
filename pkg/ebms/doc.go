// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package ebms defines the ebMS3 error vocabulary shared by the gateway.

Every protocol-level fault raised while resolving or exchanging a message
is an [*Error] carrying one of the predefined [Code] values, the MSH role in
which it occurred and, where known, the id of the message in error:

	err := ebms.NewError(ebms.ProcessingModeMismatch, "Policy configuration invalid", "", ebms.RoleSending)

Callers inspect faults with errors.As, or with [CodeOf] when only the code
matters:

	if code, ok := ebms.CodeOf(err); ok && code == ebms.ConnectionFailure {
	    // empty mailbox, nothing to do
	}

# References

  - OASIS ebMS 3.0 Core, section 6.7: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
*/
package ebms
