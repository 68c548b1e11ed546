package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/idverify/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false, ServiceName: "idverify"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestUseGRPC(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")
	require.False(t, useGRPC())

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "GRPC")
	require.True(t, useGRPC())
}
