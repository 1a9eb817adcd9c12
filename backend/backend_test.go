package backend

import (
	"testing"

	"github.com/originproxy/originproxy/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBackends() []config.Backend {
	return []config.Backend{
		{ID: "b1", URL: "http://127.0.0.1:9001"},
		{ID: "b2", URL: "http://127.0.0.1:9002"},
	}
}

func TestNewRegistryAllAvailable(t *testing.T) {
	r, err := NewRegistry(twoBackends())
	require.NoError(t, err)

	assert.Len(t, r.All(), 2)
	assert.Len(t, r.Available(), 2)
}

func TestMarkFailedRemovesFromAvailable(t *testing.T) {
	r, err := NewRegistry(twoBackends())
	require.NoError(t, err)

	r.MarkFailed("b1")

	available := r.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "b2", available[0].ID)
	assert.False(t, r.IsAvailable("b1"))
}

func TestMarkAvailableRestores(t *testing.T) {
	r, err := NewRegistry(twoBackends())
	require.NoError(t, err)

	r.MarkFailed("b1")
	r.MarkAvailable("b1")

	assert.Len(t, r.Available(), 2)
}

func TestNewRegistryRejectsDuplicateID(t *testing.T) {
	_, err := NewRegistry([]config.Backend{
		{ID: "b1", URL: "http://127.0.0.1:9001"},
		{ID: "b1", URL: "http://127.0.0.1:9002"},
	})
	assert.Error(t, err)
}

func TestNewRegistryRejectsBadScheme(t *testing.T) {
	_, err := NewRegistry([]config.Backend{
		{ID: "b1", URL: "ftp://127.0.0.1:9001"},
	})
	assert.Error(t, err)
}

func TestNewRegistryRejectsEmpty(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)
}
