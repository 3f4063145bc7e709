// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime unpacks SOAP with Attachments (SwA) responses.

A peer answering a PullRequest with a user message usually packages the
SOAP envelope and its payloads as multipart/related:

	Content-Type: multipart/related;
	    type="application/soap+xml";
	    start="<soap-envelope>";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/soap+xml
	Content-ID: <soap-envelope>

	[SOAP Envelope]

	------=_Part_...
	Content-Type: application/octet-stream
	Content-ID: <payload-1>

	[Binary payload data]

The root part is the one named by the start parameter, or the first part
when start is absent. Every other part is an attachment referenced from
the envelope by Content-ID (cid:payload-1).

# References

  - SOAP with Attachments: https://www.w3.org/TR/SOAP-attachments
  - MIME Multipart: https://datatracker.ietf.org/doc/html/rfc2046
*/
package mime
