package tracing

import (
	"context"
	"testing"

	"github.com/go-docshare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownProtocol(t *testing.T) {
	_, err := Init(context.Background(), &config.Config{
		OTelEndpoint:    "http://localhost:4318",
		OTelProtocol:    "carrier-pigeon",
		OTelServiceName: "docshare-test",
	})
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}
