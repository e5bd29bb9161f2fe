package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 100, cfg.Requests)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Zero(t, cfg.Rate)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"paced", &Config{Requests: 10, Concurrency: 2, Rate: 5}, false},
		{"no requests", &Config{Requests: 0, Concurrency: 1}, true},
		{"no workers", &Config{Requests: 1, Concurrency: 0}, true},
		{"negative rate", &Config{Requests: 1, Concurrency: 1, Rate: -1}, true},
		{"negative timeout", &Config{Requests: 1, Concurrency: 1, Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Thresholds
		wantErr bool
	}{
		{name: "empty", input: "", want: Thresholds{}},
		{name: "p95", input: "p95<200ms", want: Thresholds{P95: 200 * time.Millisecond}},
		{
			name:  "multiple",
			input: "p50<50ms, p99<=1s, max<2s",
			want:  Thresholds{P50: 50 * time.Millisecond, P99: time.Second, MaxLatency: 2 * time.Second},
		},
		{name: "error percent", input: "errors<1%", want: Thresholds{ErrorRate: 0.01}},
		{name: "error decimal", input: "errorrate<0.05", want: Thresholds{ErrorRate: 0.05}},
		{name: "rps", input: "rps>50", want: Thresholds{MinRPS: 50}},
		{name: "wrong operator for latency", input: "p95>200ms", wantErr: true},
		{name: "wrong operator for rps", input: "rps<50", wantErr: true},
		{name: "bad duration", input: "p95<fast", wantErr: true},
		{name: "unknown metric", input: "latency<1s", wantErr: true},
		{name: "garbage", input: "p95", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThresholds(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasThresholds(t *testing.T) {
	var empty Thresholds
	assert.False(t, empty.HasThresholds())

	set := Thresholds{MinRPS: 1}
	assert.True(t, set.HasThresholds())
}
