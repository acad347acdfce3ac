package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemory()

	_, _, ok := m.Get("missing")
	assert.False(t, ok)

	before := time.Now()
	require.NoError(t, m.Set("key", []byte("value")))

	value, storedAt, ok := m.Get("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)
	assert.False(t, storedAt.Before(before.Add(-time.Second)))

	// Overwrites are idempotent.
	require.NoError(t, m.Set("key", []byte("updated")))
	value, _, ok = m.Get("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("updated"), value)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, _, ok := s.Get("missing")
	assert.False(t, ok)

	require.NoError(t, s.Set("ct:example.com", []byte(`{"subdomains":["www"]}`)))

	value, storedAt, ok := s.Get("ct:example.com")
	assert.True(t, ok)
	assert.JSONEq(t, `{"subdomains":["www"]}`, string(value))
	assert.WithinDuration(t, time.Now(), storedAt, 5*time.Second)

	require.NoError(t, s.Set("ct:example.com", []byte(`{"subdomains":["api"]}`)))
	value, _, ok = s.Get("ct:example.com")
	assert.True(t, ok)
	assert.JSONEq(t, `{"subdomains":["api"]}`, string(value))
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Set("key", []byte("value")))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	value, _, ok := s2.Get("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)
}
