package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies valid env vars",
			envVars: map[string]string{
				"RECWRITER_RUN_NUMBER":        "33",
				"RECWRITER_TOKEN_DESTINATION": "env-dest",
				"RECWRITER_PRESCALE":          "6",
				"RECWRITER_MIN_RETRY_WAIT":    "3ms",
				"RECWRITER_STORAGE_ENABLED":   "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				RunNumber:        33,
				TokenDestination: "env-dest",
				Prescale:         6,
				MinRetryWait:     3 * time.Millisecond,
				StorageEnabled:   true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"RECWRITER_TOKEN_DESTINATION": "env-dest",
				"RECWRITER_PRESCALE":          "6",
			},
			changed: map[string]bool{"token-destination": true},
			initial: Config{TokenDestination: "flag-dest"},
			expected: Config{
				TokenDestination: "flag-dest",
				Prescale:         6,
			},
		},
		{
			name: "returns error for invalid duration",
			envVars: map[string]string{
				"RECWRITER_MIN_RETRY_WAIT": "not-a-duration",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name: "returns error for invalid run number",
			envVars: map[string]string{
				"RECWRITER_RUN_NUMBER": "minus one",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("cfg = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
