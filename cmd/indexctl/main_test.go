package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(args ...string) error {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	return app.Run(append([]string{"indexctl"}, args...))
}

func TestCommandFlags(t *testing.T) {
	t.Run("id is required", func(t *testing.T) {
		err := runApp("reindex")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id")
	})

	t.Run("id must be a UUID", func(t *testing.T) {
		require.ErrorIs(t, runApp("remove", "--id", "not-a-uuid"), errInvalidFlag)
	})

	t.Run("query is required", func(t *testing.T) {
		err := runApp("search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query")
	})

	t.Run("filter IDs must be UUIDs", func(t *testing.T) {
		require.ErrorIs(t, runApp("ask", "-q", "colmado", "--city", "santiago"), errInvalidFlag)
	})

	t.Run("operation must be a lifecycle operation", func(t *testing.T) {
		err := runApp("publish", "--id", "550e8400-e29b-41d4-a716-446655440000", "--operation", "archived")
		require.ErrorIs(t, err, errInvalidFlag)
	})

	t.Run("invalid log level", func(t *testing.T) {
		err := runApp("--log-level", "verbose", "probe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
