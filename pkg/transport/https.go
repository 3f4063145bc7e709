// Package transport implements HTTPS transport layer for AS4 with TLS 1.2/1.3
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sirosfoundation/go-as4-gateway/internal/policy"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
	"github.com/sirosfoundation/go-as4-gateway/pkg/message"
	"github.com/sirosfoundation/go-as4-gateway/pkg/mime"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// Recommended TLS 1.2 cipher suites for AS4
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// maxResponseSize bounds the body read from a peer
const maxResponseSize = 64 << 20

// HTTPSConfig contains HTTPS client configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	UserAgent       string
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
		UserAgent:       "go-as4-gateway/1.0",
	}
}

// Error is a failure to exchange an envelope with a peer. StatusCode is 0
// when no HTTP response was received.
type Error struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch to %s: unexpected status code %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("dispatch to %s: %v", e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Dispatcher posts envelopes to peer MSH endpoints over HTTPS
type Dispatcher struct {
	client *http.Client
	config *HTTPSConfig
	logger *slog.Logger
}

// NewDispatcher creates a new HTTPS dispatcher
func NewDispatcher(config *HTTPSConfig, logger *slog.Logger) *Dispatcher {
	if config == nil {
		config = DefaultHTTPSConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &Dispatcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
		logger: logger,
	}
}

// Dispatch sends env to endpoint and returns the response envelope.
//
// A peer answering with a non-2xx status and an ebMS Error signal yields the
// first error of the signal as an *ebms.Error. Every other failure, including
// connection problems, is an *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, env *message.Envelope, endpoint string, pol *policy.Policy, leg *pmode.LegConfiguration, pmodeKey string) ([]byte, error) {
	if endpoint == "" {
		return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("no endpoint configured for pmode key %s", pmodeKey)}
	}

	log := d.logger.With("endpoint", endpoint, "message_id", env.MessageID, "pmode_key", pmodeKey)
	if leg != nil {
		log = log.With("leg", leg.Name)
	}
	if pol != nil {
		log = log.With("policy", pol.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(env.Data))
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	contentType := env.ContentType
	if contentType == "" {
		contentType = message.ContentType
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", d.config.UserAgent)
	req.Header.Set("SOAPAction", "") // Empty for AS4

	log.Debug("dispatching envelope", "bytes", len(env.Data))
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	body, err = envelopeBytes(body, resp.Header.Get("Content-Type"), log)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if fault := signalFault(body); fault != nil {
			log.Warn("peer answered with ebMS error", "status", resp.StatusCode, "code", fault.Code.Code)
			return nil, fault
		}
		return nil, &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(body, 512))}
	}
	return body, nil
}

// envelopeBytes returns the SOAP envelope of a response, unpacking SwA
// bodies. Attachments are dropped.
func envelopeBytes(body []byte, contentType string, log *slog.Logger) ([]byte, error) {
	if !mime.IsMultipart(contentType) {
		return body, nil
	}
	msg, err := mime.Parse(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	if len(msg.Attachments) > 0 {
		log.Debug("dropping response attachments", "count", len(msg.Attachments))
	}
	return msg.Root.Data, nil
}

func signalFault(body []byte) *ebms.Error {
	m, err := message.Parse(body)
	if err != nil || m.SignalMessage == nil || len(m.SignalMessage.Errors) == 0 {
		return nil
	}
	e := m.SignalMessage.Errors[0]
	code, ok := ebms.LookupCode(e.ErrorCode)
	if !ok {
		code = ebms.Code{Code: e.ErrorCode, Severity: e.Severity, ShortDescription: e.ShortDescription, Category: e.Category}
	}
	detail := e.ErrorDetail
	if detail == "" {
		detail = e.Description
	}
	return ebms.NewError(code, detail, e.RefToMessageInError, ebms.RoleSending)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
