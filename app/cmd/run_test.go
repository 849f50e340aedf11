package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandRegistered(t *testing.T) {
	found, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, runCMD, found)
	assert.NotNil(t, found.Flags().Lookup("mode"))
}

func TestRunFailsWithoutWebhook(t *testing.T) {
	t.Setenv("SINK_WEBHOOK_URL", "")
	rootCmd.SetArgs([]string{"run", "--mode", "solo"})
	// an empty webhook url is rejected before anything starts
	assert.Error(t, rootCmd.Execute())
}
