package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{name: "Test1 OK", args: []string{
			"-d", "db", "-n", "tenant", "-s", "secret",
			"-t", "3600", "-e", "production", "-l", "debug", "-min", "1", "-max", "5",
		}, expectErr: false,
			expected: &Config{
				DatabaseDSN:    "db",
				DatabaseSchema: "tenant",
				SecretKey:      "secret",
				TokenTTL:       time.Hour,
				Environment:    "production",
				LogLevel:       "debug",
				DBMinConns:     1,
				DBMaxConns:     5,
			}},
		{name: "Test2 foreign flags ignored", args: []string{"-c", "x.yaml", "-d=db2", "-unknown", "v"},
			expected: &Config{DatabaseDSN: "db2"}},
		{name: "Test3 bad int", args: []string{"-t", "soon"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(config, tt.expected))
		})
	}
}
