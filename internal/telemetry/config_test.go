package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/newsrag/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Equal(t, "newsrag", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:        true,
		Endpoint:       "otel.example.com:4318",
		Protocol:       "http/protobuf",
		TLSSkipVerify:  true,
		SampleRate:     0.1,
		DisableMetrics: true,
		ExportInterval: config.Duration(time.Minute),
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel.example.com:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.True(t, cfg.TLSSkipVerify)
	assert.Equal(t, 0.1, cfg.SampleRate)
	assert.False(t, cfg.Metrics)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, time.Minute, cfg.ExportInterval)
	// unset durations keep defaults
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestFromConfig_Defaults(t *testing.T) {
	cfg := FromConfig(config.Default().Telemetry, "")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.True(t, cfg.Metrics)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "disabled skips validation", mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" }},
		{name: "enabled local", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: "endpoint is required"},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service name is required"},
		{name: "bad protocol", mutate: func(c *Config) { c.Protocol = "thrift" }, wantErr: "unsupported protocol"},
		{name: "insecure remote", mutate: func(c *Config) { c.Endpoint = "otel.example.com:4317" }, wantErr: "insecure export"},
		{name: "secure remote", mutate: func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false }},
		{name: "rate too low", mutate: func(c *Config) { c.SampleRate = -0.1 }, wantErr: "sample rate"},
		{name: "rate too high", mutate: func(c *Config) { c.SampleRate = 1.1 }, wantErr: "sample rate"},
		{name: "zero export interval", mutate: func(c *Config) { c.ExportInterval = 0 }, wantErr: "export interval"},
		{name: "zero interval without metrics", mutate: func(c *Config) { c.ExportInterval = 0; c.Metrics = false }},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.ShutdownTimeout = 0 }, wantErr: "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"otel.example.com:4317", false},
		{"10.0.0.5:4317", false},
		{"https://otel.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.isLocalEndpoint())
		})
	}
}
