package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "p", flag.Shorthand)
		assert.Equal(t, "0", flag.DefValue)
	}
}

func TestMCPServe_RequiresQueryService(t *testing.T) {
	setupTestServices(t, Services{})

	_, err := execute(t, "mcp", "serve")

	assert.EqualError(t, err, "query service not configured")
}

func TestMCPServe_ReturnsBuildError(t *testing.T) {
	setupTestServices(t, Services{QueryErr: assert.AnError})

	_, err := execute(t, "mcp", "serve")

	assert.ErrorIs(t, err, assert.AnError)
}
