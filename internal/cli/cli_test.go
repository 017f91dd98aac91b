package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-gridcalc/internal/app"
	"github.com/vogtb/go-gridcalc/internal/report"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "positional path",
			args: []string{"edits.hcl"},
			want: &app.Config{ScriptPath: "edits.hcl", Output: report.FormatTable, LogFormat: "text", LogLevel: "warn"},
		},
		{
			name: "long flag wins over positional",
			args: []string{"-script", "a.hcl", "b.hcl"},
			want: &app.Config{ScriptPath: "a.hcl", Output: report.FormatTable, LogFormat: "text", LogLevel: "warn"},
		},
		{
			name: "shorthand and options",
			args: []string{"-s", "a.hcl", "-output", "JSON", "-log-level", "DEBUG", "-log-format", "json", "-recompute-on-delete"},
			want: &app.Config{
				ScriptPath:        "a.hcl",
				Output:            report.FormatJSON,
				LogFormat:         "json",
				LogLevel:          "debug",
				RecomputeOnDelete: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, exit, err := Parse(tt.args, &out)
			require.NoError(t, err)
			assert.False(t, exit)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestParseExits(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		var out bytes.Buffer
		cfg, exit, err := Parse(args, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined: -nope"},
		{"bad output", []string{"-output", "xml", "a.hcl"}, "unknown output format"},
		{"bad log format", []string{"-log-format", "xml", "a.hcl"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "loud", "a.hcl"}, "invalid log-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tt.args, &out)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.want)
		})
	}
}
