package fleet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fleet.json")
	store := NewStateStore(path)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing file loads as empty state")

	state := &State{
		Devices: []KnownDevice{
			{DeviceID: 3, Name: "Motor-Controller-3", Firmware: "dfoc-1.4.2", Addr: "10.0.0.3:7632"},
			{DeviceID: 7, Name: "Motor-Controller-7", Addr: "10.0.0.7:7632"},
		},
	}
	require.NoError(t, store.Save(state))
	assert.Equal(t, StateVersion, state.Version)
	assert.False(t, state.SavedAt.IsZero())

	loaded, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateVersion, loaded.Version)
	require.Len(t, loaded.Devices, 2)
	assert.Equal(t, uint8(3), loaded.Devices[0].DeviceID)
	assert.Equal(t, "dfoc-1.4.2", loaded.Devices[0].Firmware)
	assert.Equal(t, "10.0.0.7:7632", loaded.Devices[1].Addr)
}

func TestStateStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	store := NewStateStore(path)

	require.NoError(t, store.Save(&State{Devices: []KnownDevice{{DeviceID: 1}}}))
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing an already cleared store is fine.
	require.NoError(t, store.Clear())
}

func TestStateStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.json")
	store := NewStateStore(path)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	_, err := store.Load()
	require.Error(t, err)
}
