package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorage_Credentials(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	v, err := s.Credential(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetCredential(ctx, KeyUserToken, "first"))
	require.NoError(t, s.SetCredential(ctx, KeyUserToken, "second"))
	require.NoError(t, s.SetCredential(ctx, KeyDeviceID, "device-1"))

	v, err = s.Credential(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	require.NoError(t, s.DeleteCredentials(ctx, KeyUserToken, KeyDeviceID))
	v, err = s.Credential(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSQLiteStorage_OutboxKeepsOrder(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 123, time.UTC)

	inputs := []offline.Input{
		{DataType: sync.DataProgress, Kind: offline.KindCreate, Payload: json.RawMessage(`{"lesson":1}`), ClientTimestamp: ts},
		{DataType: sync.DataPreferences, Kind: offline.KindUpdate, Payload: json.RawMessage(`{"theme":"dark"}`), ClientTimestamp: ts.Add(time.Second)},
		{DataType: sync.DataProgress, Kind: offline.KindDelete, ClientTimestamp: ts.Add(2 * time.Second)},
	}
	for _, in := range inputs {
		_, err := s.Enqueue(ctx, in)
		require.NoError(t, err)
	}

	entries, err := s.Outbox(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, inputs[i].DataType, e.Input.DataType)
		assert.Equal(t, inputs[i].Kind, e.Input.Kind)
		assert.True(t, inputs[i].ClientTimestamp.Equal(e.Input.ClientTimestamp))
	}
	assert.JSONEq(t, `{"lesson":1}`, string(entries[0].Input.Payload))
	assert.Nil(t, entries[2].Input.Payload)

	require.NoError(t, s.Remove(ctx, []int64{entries[0].Seq, entries[1].Seq}))

	left, err := s.Outbox(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, offline.KindDelete, left[0].Input.Kind)
}
