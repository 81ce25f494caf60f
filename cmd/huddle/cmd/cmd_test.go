package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/huddle/internal/server"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "huddle v"+version+"\n", run(t, "version"))
}

func TestTopics_JSON(t *testing.T) {
	var topics []server.TopicInfo
	require.NoError(t, json.Unmarshal([]byte(run(t, "topics", "--format", "json")), &topics))
	assert.Equal(t, server.Topics(), topics)
}

func TestTopics_Table(t *testing.T) {
	out := run(t, "topics", "--format", "table")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "rooms.room.created")
}
