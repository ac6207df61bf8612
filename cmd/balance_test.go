package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortToken(t *testing.T) {
	tests := []struct {
		name     string
		tokenID  string
		expected string
	}{
		{
			name:     "short-id-unchanged",
			tokenID:  "123456",
			expected: "123456",
		},
		{
			name:     "twelve-chars-unchanged",
			tokenID:  "123456789012",
			expected: "123456789012",
		},
		{
			name:     "long-clob-token-id",
			tokenID:  "21742633143463906290569050155826241533067272736897614950488156847949938836455",
			expected: "217426..6455",
		},
		{
			name:     "empty",
			tokenID:  "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shortToken(tt.tokenID))
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "balance", "merge", "pending"} {
		require.True(t, names[want], "command %q not registered", want)
	}
}

func TestMergeCommandRequiredFlags(t *testing.T) {
	for _, flag := range []string{"condition", "yes-token", "no-token", "amount"} {
		f := mergeCmd.Flags().Lookup(flag)
		require.NotNil(t, f, "flag %q not defined", flag)
		assert.NotEmpty(t, f.Annotations[cobra.BashCompOneRequiredFlag], "flag %q not required", flag)
	}
}
