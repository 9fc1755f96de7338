package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool      { return &b }
func f64Ptr(f float64) *float64 { return &f }

type recorder struct {
	devices  []Device
	items    []Item
	changing [][2]Mode
	changed  []Mode
	canceled []Mode
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		DeviceChanged:      func(d Device) { r.devices = append(r.devices, d) },
		ItemChanged:        func(it Item) { r.items = append(r.items, it) },
		ModeChanging:       func(from, to Mode) { r.changing = append(r.changing, [2]Mode{from, to}) },
		ModeChanged:        func(m Mode) { r.changed = append(r.changed, m) },
		ModeChangeCanceled: func(m Mode) { r.canceled = append(r.canceled, m) },
	}
}

func testDevices() []Device {
	return []Device{
		{ID: "d1", Name: "Porch Light", Category: "switch", Reachable: boolPtr(true)},
		{ID: "d2", Name: "Thermostat", Category: "hvac", Reachable: boolPtr(true)},
	}
}

func TestMergeDeviceSnapshotChangeDetection(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())

	s.MergeDeviceSnapshot(testDevices())
	assert.Len(t, rec.devices, 2)

	// Identical snapshot: no callbacks.
	s.MergeDeviceSnapshot(testDevices())
	assert.Len(t, rec.devices, 2)

	// One device changed: exactly one callback.
	devs := testDevices()
	devs[1].Reachable = boolPtr(false)
	s.MergeDeviceSnapshot(devs)
	require.Len(t, rec.devices, 3)
	assert.Equal(t, "d2", rec.devices[2].ID)
	assert.False(t, *rec.devices[2].Reachable)
}

func TestMergeDeviceSnapshotDropsMissing(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeDeviceSnapshot(testDevices())

	s.MergeDeviceSnapshot(testDevices()[:1])
	_, ok := s.Device("d2")
	assert.False(t, ok)
	_, ok = s.Device("d1")
	assert.True(t, ok)
}

func TestResolveDeviceByIDAndName(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeDeviceSnapshot(testDevices())

	d, ok := s.ResolveDevice("d1")
	require.True(t, ok)
	assert.Equal(t, "Porch Light", d.Name)

	d, ok = s.ResolveDevice("Thermostat")
	require.True(t, ok)
	assert.Equal(t, "d2", d.ID)

	_, ok = s.ResolveDevice("Garage Door")
	assert.False(t, ok)
}

func TestApplyDeviceDeltaFieldMerge(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())
	s.MergeDeviceSnapshot(testDevices())
	rec.devices = nil

	d, ok := s.ApplyDeviceDelta(map[string]json.RawMessage{
		"_id":       json.RawMessage(`"d1"`),
		"reachable": json.RawMessage(`false`),
	})
	require.True(t, ok)
	assert.False(t, *d.Reachable)
	assert.Equal(t, "Porch Light", d.Name, "unmentioned fields survive the merge")
	assert.Len(t, rec.devices, 1, "broadcast deltas always notify")

	// Same delta again still notifies.
	_, ok = s.ApplyDeviceDelta(map[string]json.RawMessage{
		"_id":       json.RawMessage(`"d1"`),
		"reachable": json.RawMessage(`false`),
	})
	require.True(t, ok)
	assert.Len(t, rec.devices, 2)
}

func TestApplyDeviceDeltaUnknownDevice(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())

	_, ok := s.ApplyDeviceDelta(map[string]json.RawMessage{
		"_id": json.RawMessage(`"nope"`),
	})
	assert.False(t, ok)
	assert.Empty(t, rec.devices)
}

func TestApplyDeviceDeltaRenameReindexes(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeDeviceSnapshot(testDevices())

	_, ok := s.ApplyDeviceDelta(map[string]json.RawMessage{
		"_id":  json.RawMessage(`"d1"`),
		"name": json.RawMessage(`"Front Light"`),
	})
	require.True(t, ok)

	_, ok = s.ResolveDevice("Porch Light")
	assert.False(t, ok)
	d, ok := s.ResolveDevice("Front Light")
	require.True(t, ok)
	assert.Equal(t, "d1", d.ID)
}

func TestDeviceExtraFieldsPreserved(t *testing.T) {
	var d Device
	require.NoError(t, json.Unmarshal([]byte(`{
		"_id": "d9",
		"name": "Sensor",
		"armed": true,
		"info": {"manufacturer": "Acme"}
	}`), &d))

	assert.Equal(t, "d9", d.ID)
	assert.JSONEq(t, `true`, string(d.Extra["armed"]))
	assert.JSONEq(t, `{"manufacturer":"Acme"}`, string(d.Extra["info"]))

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"armed":true`)
}

func TestNumericIDsAccepted(t *testing.T) {
	var d Device
	require.NoError(t, json.Unmarshal([]byte(`{"_id": 123, "name": "Legacy"}`), &d))
	assert.Equal(t, "123", d.ID)
}

func TestMergeItemSnapshotChangeDetection(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())

	items := []Item{
		{ID: "i1", DeviceID: "d1", Name: "switch", ValueType: "bool", Value: false},
		{ID: "i2", DeviceID: "d2", Name: "temp", ValueType: "float", Value: 21.5},
	}
	s.MergeItemSnapshot(items)
	assert.Len(t, rec.items, 2)

	s.MergeItemSnapshot(items)
	assert.Len(t, rec.items, 2)

	items[0].Value = true
	s.MergeItemSnapshot(items)
	require.Len(t, rec.items, 3)
	assert.Equal(t, "i1", rec.items[2].ID)
}

func TestApplyItemDelta(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())
	s.MergeItemSnapshot([]Item{
		{ID: "i1", DeviceID: "d1", Name: "switch", ValueType: "bool", Value: false},
	})
	rec.items = nil

	it, ok := s.ApplyItemDelta(map[string]json.RawMessage{
		"_id":   json.RawMessage(`"i1"`),
		"value": json.RawMessage(`true`),
	})
	require.True(t, ok)
	assert.Equal(t, true, it.Value)
	assert.Equal(t, "d1", it.DeviceID)
	assert.Len(t, rec.items, 1)
}

func TestItemLookups(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeItemSnapshot([]Item{
		{ID: "i1", DeviceID: "d1", Name: "switch"},
		{ID: "i2", DeviceID: "d1", Name: "dimmer"},
		{ID: "i3", DeviceID: "d2", Name: "temp"},
	})

	it, ok := s.ItemForDevice("d1", "dimmer")
	require.True(t, ok)
	assert.Equal(t, "i2", it.ID)

	items := s.ItemsForDevice("d1")
	require.Len(t, items, 2)
	assert.Equal(t, "dimmer", items[0].Name)
	assert.Equal(t, "switch", items[1].Name)
}

func TestItemForDeviceReindexes(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeItemSnapshot([]Item{
		{ID: "i1", DeviceID: "d1", Name: "switch"},
	})

	// A rename delta moves the name index entry.
	_, ok := s.ApplyItemDelta(map[string]json.RawMessage{
		"_id":  json.RawMessage(`"i1"`),
		"name": json.RawMessage(`"toggle"`),
	})
	require.True(t, ok)

	it, ok := s.ItemForDevice("d1", "toggle")
	require.True(t, ok)
	assert.Equal(t, "i1", it.ID)
	_, ok = s.ItemForDevice("d1", "switch")
	assert.False(t, ok)

	// Re-adding under another device drops the old entry too.
	s.AddItem(Item{ID: "i1", DeviceID: "d2", Name: "toggle"})
	_, ok = s.ItemForDevice("d1", "toggle")
	assert.False(t, ok)
	it, ok = s.ItemForDevice("d2", "toggle")
	require.True(t, ok)
	assert.Equal(t, "i1", it.ID)

	// A fresh snapshot rebuilds the index from scratch.
	s.MergeItemSnapshot([]Item{
		{ID: "i2", DeviceID: "d1", Name: "temp"},
	})
	_, ok = s.ItemForDevice("d2", "toggle")
	assert.False(t, ok)
	it, ok = s.ItemForDevice("d1", "temp")
	require.True(t, ok)
	assert.Equal(t, "i2", it.ID)
}

func modeState() ModeState {
	return ModeState{
		CurrentID: "1",
		Modes: []Mode{
			{ID: "1", Name: "Home"},
			{ID: "2", Name: "Away"},
			{ID: "3", Name: "Night"},
		},
	}
}

func TestMergeModeSnapshotResync(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())

	// Initial sync is not a change.
	s.MergeModeSnapshot(modeState())
	assert.Empty(t, rec.changed)

	// Resync with the same current mode stays quiet.
	s.MergeModeSnapshot(modeState())
	assert.Empty(t, rec.changed)

	// The hub switched modes while we were away.
	moved := modeState()
	moved.CurrentID = "3"
	s.MergeModeSnapshot(moved)
	require.Len(t, rec.changed, 1)
	assert.Equal(t, "Night", rec.changed[0].Name)

	current, ok := s.CurrentMode()
	require.True(t, ok)
	assert.Equal(t, "Night", current.Name)
}

func TestModeSwitchLifecycle(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())
	s.MergeModeSnapshot(modeState())

	s.ApplyModeSwitch(ModeSwitchBegin, "2")
	require.Len(t, rec.changing, 1)
	assert.Equal(t, "Home", rec.changing[0][0].Name)
	assert.Equal(t, "Away", rec.changing[0][1].Name)
	assert.Equal(t, "2", string(s.Modes().SwitchToID))

	s.ApplyModeSwitch(ModeSwitchDone, "2")
	require.Len(t, rec.changed, 1)
	assert.Equal(t, "Away", rec.changed[0].Name)
	assert.Equal(t, "2", string(s.Modes().CurrentID))
	assert.Empty(t, string(s.Modes().SwitchToID))

	current, ok := s.CurrentMode()
	require.True(t, ok)
	assert.Equal(t, "Away", current.Name)
}

func TestModeSwitchCancel(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.callbacks())
	s.MergeModeSnapshot(modeState())

	s.ApplyModeSwitch(ModeSwitchBegin, "3")
	s.ApplyModeSwitch(ModeSwitchCancel, "")

	require.Len(t, rec.canceled, 1)
	assert.Equal(t, "Home", rec.canceled[0].Name)
	assert.Equal(t, "1", string(s.Modes().CurrentID))
	assert.Empty(t, string(s.Modes().SwitchToID))
	assert.Empty(t, rec.changed)
}

func TestModeLookup(t *testing.T) {
	s := NewStore(Callbacks{})
	s.MergeModeSnapshot(modeState())

	m, ok := s.ModeByID("2")
	require.True(t, ok)
	assert.Equal(t, "Away", m.Name)

	m, ok = s.ModeByName("Night")
	require.True(t, ok)
	assert.Equal(t, "3", string(m.ID))

	_, ok = s.ModeByName("Vacation")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := NewStore(Callbacks{})
	s.SetInfo(HubInfo{Serial: "70000123"})
	s.MergeDeviceSnapshot(testDevices())
	s.MergeModeSnapshot(modeState())

	s.Reset()

	_, ok := s.Info()
	assert.False(t, ok)
	assert.Empty(t, s.Devices())
	assert.Empty(t, s.Modes().Modes)
}
