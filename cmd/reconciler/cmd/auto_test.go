package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

func TestValidateAutoFlags(t *testing.T) {
	tests := []struct {
		name          string
		minConfidence float64
		outputFormat  string
		expectError   bool
	}{
		{
			name:          "defaults",
			minConfidence: 0.9,
			outputFormat:  "console",
			expectError:   false,
		},
		{
			name:          "json output",
			minConfidence: 0.7,
			outputFormat:  "json",
			expectError:   false,
		},
		{
			name:          "confidence above one",
			minConfidence: 1.5,
			outputFormat:  "console",
			expectError:   true,
		},
		{
			name:          "negative confidence",
			minConfidence: -0.1,
			outputFormat:  "console",
			expectError:   true,
		},
		{
			name:          "csv not supported for batch summaries",
			minConfidence: 0.9,
			outputFormat:  "csv",
			expectError:   true,
		},
	}

	t.Cleanup(func() {
		viper.Set("min-confidence", 0.9)
		viper.Set("auto-output-format", "console")
		viper.Set("dry-run", false)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Set("min-confidence", tt.minConfidence)
			viper.Set("auto-output-format", tt.outputFormat)
			viper.Set("dry-run", false)

			err := validateAutoFlags(autoCmd, nil)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
