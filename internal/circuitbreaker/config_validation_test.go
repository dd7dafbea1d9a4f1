package circuitbreaker

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestConfigSanitize(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tests := []struct {
		name            string
		config          Config
		expectedName    string
		expectedMax     int
		expectedTimeout time.Duration
		expectedReqs    int
	}{
		{
			name:            "valid_config",
			config:          Config{Name: "api", MaxFailures: 5, Timeout: 30 * time.Second, MaxRequests: 3},
			expectedName:    "api",
			expectedMax:     5,
			expectedTimeout: 30 * time.Second,
			expectedReqs:    3,
		},
		{
			name:            "empty_name_gets_default",
			config:          Config{MaxFailures: 5, Timeout: 30 * time.Second, MaxRequests: 3},
			expectedName:    "unnamed",
			expectedMax:     5,
			expectedTimeout: 30 * time.Second,
			expectedReqs:    3,
		},
		{
			name:            "zero_values_get_defaults",
			config:          Config{Name: "api"},
			expectedName:    "api",
			expectedMax:     defaultMaxFailures,
			expectedTimeout: defaultTimeout,
			expectedReqs:    defaultMaxRequests,
		},
		{
			name:            "negative_values_get_defaults",
			config:          Config{Name: "api", MaxFailures: -1, Timeout: -time.Second, MaxRequests: -4},
			expectedName:    "api",
			expectedMax:     defaultMaxFailures,
			expectedTimeout: defaultTimeout,
			expectedReqs:    defaultMaxRequests,
		},
		{
			name:            "oversized_values_are_capped",
			config:          Config{Name: "api", MaxFailures: 5000, Timeout: time.Hour, MaxRequests: 500},
			expectedName:    "api",
			expectedMax:     maxMaxFailures,
			expectedTimeout: maxTimeout,
			expectedReqs:    maxMaxRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := New(tt.config, logger)

			if cb.name != tt.expectedName {
				t.Errorf("name = %q, want %q", cb.name, tt.expectedName)
			}
			if cb.maxFailures != tt.expectedMax {
				t.Errorf("maxFailures = %d, want %d", cb.maxFailures, tt.expectedMax)
			}
			if cb.timeout != tt.expectedTimeout {
				t.Errorf("timeout = %v, want %v", cb.timeout, tt.expectedTimeout)
			}
			if cb.maxRequests != tt.expectedReqs {
				t.Errorf("maxRequests = %d, want %d", cb.maxRequests, tt.expectedReqs)
			}
			if cb.State() != StateClosed {
				t.Errorf("new breaker should be closed, got %s", cb.State())
			}
		})
	}
}
