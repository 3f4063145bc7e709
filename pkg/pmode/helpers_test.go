package pmode

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const urnType = "urn:oasis:names:tc:ebcore:partyid-type:unregistered"

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/configuration.xml")
	require.NoError(t, err)
	return raw
}

func newTestResolver(t *testing.T) (*Resolver, *bytes.Buffer) {
	t.Helper()
	cfg, err := XMLParser{}.Parse(loadFixture(t))
	require.NoError(t, err)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return NewResolver(cfg, logger), &logs
}
