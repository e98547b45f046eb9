package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTUICmd_Exists(t *testing.T) {
	// Verify the tui command is registered
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "tui" {
			found = true
			break
		}
	}
	assert.True(t, found, "tui command should be registered")
}

func TestTUICmd_ShortDescription(t *testing.T) {
	assert.Equal(t, "Launch the interactive ask screen", tuiCmd.Short)
}

func TestTUICmd_LongDescription(t *testing.T) {
	assert.Contains(t, tuiCmd.Long, "interactive terminal user interface")
	assert.Contains(t, tuiCmd.Long, "Controls:")
}

func TestTUICmd_HelpOutput(t *testing.T) {
	setupTestServices(t, Services{})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"tui", "--help"})

	err := rootCmd.Execute()
	// cobra keeps the help flag set on the command between executions
	_ = tuiCmd.Flags().Set("help", "false") //nolint:errcheck // flag exists after Execute

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "interactive terminal user interface")
	assert.Contains(t, output, "Controls:")
}

func TestTUICmd_RequiresQueryService(t *testing.T) {
	setupTestServices(t, Services{QueryErr: assert.AnError})

	_, err := execute(t, "tui")

	assert.ErrorIs(t, err, assert.AnError)
}

func TestQueryCmd_InteractiveRequiresQueryService(t *testing.T) {
	setupTestServices(t, Services{})

	_, err := execute(t, "query", "-i")

	assert.EqualError(t, err, "query service not configured")
}
