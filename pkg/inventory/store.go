package inventory

import (
	"encoding/json"
	"reflect"
	"sort"
	"sync"
)

// Mode switch statuses carried by hub.modes.switched broadcasts.
const (
	ModeSwitchBegin  = "begin"
	ModeSwitchDone   = "done"
	ModeSwitchCancel = "cancel"
)

// Callbacks receive change notifications from the store. All fields
// are optional. Callbacks run on the goroutine that applied the
// change, after the store lock is released.
type Callbacks struct {
	// DeviceChanged fires when a device is added or any of its fields
	// change. Snapshot merges suppress it for unchanged devices;
	// broadcast deltas always fire it.
	DeviceChanged func(Device)

	// ItemChanged is DeviceChanged's counterpart for items.
	ItemChanged func(Item)

	// ModeChanging fires when a mode switch begins. The switch target
	// may be unknown to the store, in which case only the ID is set.
	ModeChanging func(from, to Mode)

	// ModeChanged fires when a mode switch completes.
	ModeChanged func(current Mode)

	// ModeChangeCanceled fires when a pending switch is canceled.
	ModeChangeCanceled func(current Mode)
}

// itemKey indexes items by owning device and item name.
type itemKey struct {
	deviceID string
	name     string
}

// Store is the in-memory mirror of one hub's inventory. All methods
// are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	callbacks Callbacks

	info    HubInfo
	hasInfo bool

	devices     map[string]Device
	deviceNames map[string]string
	items       map[string]Item
	itemNames   map[itemKey]string
	modes       ModeState
}

// NewStore creates an empty store. Callbacks may be the zero value.
func NewStore(callbacks Callbacks) *Store {
	return &Store{
		callbacks:   callbacks,
		devices:     make(map[string]Device),
		deviceNames: make(map[string]string),
		items:       make(map[string]Item),
		itemNames:   make(map[itemKey]string),
	}
}

// Reset drops all inventory, keeping callbacks. Used when a session
// restarts from scratch.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = HubInfo{}
	s.hasInfo = false
	s.devices = make(map[string]Device)
	s.deviceNames = make(map[string]string)
	s.items = make(map[string]Item)
	s.itemNames = make(map[itemKey]string)
	s.modes = ModeState{}
}

// SetInfo records the hub identity.
func (s *Store) SetInfo(info HubInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
	s.hasInfo = true
}

// Info returns the hub identity and whether one has been recorded.
func (s *Store) Info() (HubInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.hasInfo
}

// MergeDeviceSnapshot replaces the device set with a full listing.
// DeviceChanged fires only for devices that are new or differ from
// the stored copy. Devices absent from the snapshot are dropped.
func (s *Store) MergeDeviceSnapshot(devices []Device) {
	var changed []Device

	s.mu.Lock()
	next := make(map[string]Device, len(devices))
	names := make(map[string]string, len(devices))
	for _, d := range devices {
		if d.ID == "" {
			continue
		}
		next[d.ID] = d
		if d.Name != "" {
			names[d.Name] = d.ID
		}
		if prev, ok := s.devices[d.ID]; !ok || !reflect.DeepEqual(prev, d) {
			changed = append(changed, d)
		}
	}
	s.devices = next
	s.deviceNames = names
	s.mu.Unlock()

	if s.callbacks.DeviceChanged != nil {
		for _, d := range changed {
			s.callbacks.DeviceChanged(d)
		}
	}
}

// MergeItemSnapshot replaces the item set with a full listing, firing
// ItemChanged for new or differing items.
func (s *Store) MergeItemSnapshot(items []Item) {
	var changed []Item

	s.mu.Lock()
	next := make(map[string]Item, len(items))
	names := make(map[itemKey]string, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		next[it.ID] = it
		if it.Name != "" {
			names[itemKey{it.DeviceID, it.Name}] = it.ID
		}
		if prev, ok := s.items[it.ID]; !ok || !reflect.DeepEqual(prev, it) {
			changed = append(changed, it)
		}
	}
	s.items = next
	s.itemNames = names
	s.mu.Unlock()

	if s.callbacks.ItemChanged != nil {
		for _, it := range changed {
			s.callbacks.ItemChanged(it)
		}
	}
}

// MergeModeSnapshot replaces the house mode state. ModeChanged fires
// when a previously synced active mode differs from the incoming one,
// which happens when the hub switched modes while the session was
// disconnected.
func (s *Store) MergeModeSnapshot(modes ModeState) {
	s.mu.Lock()
	prevID := s.modes.CurrentID
	s.modes = modes

	var current Mode
	changed := prevID != "" && modes.CurrentID != prevID
	if changed {
		current, _ = modes.byID(string(modes.CurrentID))
		if current.ID == "" {
			current.ID = modes.CurrentID
		}
	}
	s.mu.Unlock()

	if changed && s.callbacks.ModeChanged != nil {
		s.callbacks.ModeChanged(current)
	}
}

// AddDevice inserts or replaces a device from a hub.device.added
// broadcast and always fires DeviceChanged.
func (s *Store) AddDevice(d Device) {
	if d.ID == "" {
		return
	}
	s.mu.Lock()
	s.devices[d.ID] = d
	if d.Name != "" {
		s.deviceNames[d.Name] = d.ID
	}
	s.mu.Unlock()

	if s.callbacks.DeviceChanged != nil {
		s.callbacks.DeviceChanged(d)
	}
}

// ApplyDeviceDelta merges broadcast fields into a known device.
// The hub sends partial objects, so only the carried fields change.
// DeviceChanged always fires for a known device. Unknown devices are
// ignored and false is returned.
func (s *Store) ApplyDeviceDelta(fields map[string]json.RawMessage) (Device, bool) {
	var id flexString
	if raw, ok := fields["_id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return Device{}, false
		}
	}

	s.mu.Lock()
	d, ok := s.devices[string(id)]
	if !ok {
		s.mu.Unlock()
		return Device{}, false
	}
	oldName := d.Name
	if err := d.applyFields(fields); err != nil {
		s.mu.Unlock()
		return Device{}, false
	}
	s.devices[d.ID] = d
	if d.Name != oldName {
		if s.deviceNames[oldName] == d.ID {
			delete(s.deviceNames, oldName)
		}
		if d.Name != "" {
			s.deviceNames[d.Name] = d.ID
		}
	}
	s.mu.Unlock()

	if s.callbacks.DeviceChanged != nil {
		s.callbacks.DeviceChanged(d)
	}
	return d, true
}

// AddItem inserts or replaces an item from a hub.item.added broadcast.
func (s *Store) AddItem(it Item) {
	if it.ID == "" {
		return
	}
	s.mu.Lock()
	if prev, ok := s.items[it.ID]; ok {
		if key := (itemKey{prev.DeviceID, prev.Name}); s.itemNames[key] == it.ID {
			delete(s.itemNames, key)
		}
	}
	s.items[it.ID] = it
	if it.Name != "" {
		s.itemNames[itemKey{it.DeviceID, it.Name}] = it.ID
	}
	s.mu.Unlock()

	if s.callbacks.ItemChanged != nil {
		s.callbacks.ItemChanged(it)
	}
}

// ApplyItemDelta merges broadcast fields into a known item and always
// fires ItemChanged. Unknown items are ignored.
func (s *Store) ApplyItemDelta(fields map[string]json.RawMessage) (Item, bool) {
	var id flexString
	if raw, ok := fields["_id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return Item{}, false
		}
	}

	s.mu.Lock()
	it, ok := s.items[string(id)]
	if !ok {
		s.mu.Unlock()
		return Item{}, false
	}
	oldKey := itemKey{it.DeviceID, it.Name}
	if err := it.applyFields(fields); err != nil {
		s.mu.Unlock()
		return Item{}, false
	}
	s.items[it.ID] = it
	if newKey := (itemKey{it.DeviceID, it.Name}); newKey != oldKey {
		if s.itemNames[oldKey] == it.ID {
			delete(s.itemNames, oldKey)
		}
		if it.Name != "" {
			s.itemNames[newKey] = it.ID
		}
	}
	s.mu.Unlock()

	if s.callbacks.ItemChanged != nil {
		s.callbacks.ItemChanged(it)
	}
	return it, true
}

// ApplyModeSwitch applies a hub.modes.switched broadcast. Status is
// one of begin, done, or cancel.
func (s *Store) ApplyModeSwitch(status, modeID string) {
	s.mu.Lock()
	var from, to, current Mode
	switch status {
	case ModeSwitchBegin:
		from, _ = s.modes.byID(string(s.modes.CurrentID))
		if from.ID == "" {
			from.ID = s.modes.CurrentID
		}
		to, _ = s.modes.byID(modeID)
		if to.ID == "" {
			to.ID = flexString(modeID)
		}
		s.modes.SwitchToID = flexString(modeID)
	case ModeSwitchDone:
		s.modes.CurrentID = flexString(modeID)
		s.modes.SwitchToID = ""
		current, _ = s.modes.byID(modeID)
		if current.ID == "" {
			current.ID = flexString(modeID)
		}
	case ModeSwitchCancel:
		s.modes.SwitchToID = ""
		current, _ = s.modes.byID(string(s.modes.CurrentID))
		if current.ID == "" {
			current.ID = s.modes.CurrentID
		}
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	switch status {
	case ModeSwitchBegin:
		if s.callbacks.ModeChanging != nil {
			s.callbacks.ModeChanging(from, to)
		}
	case ModeSwitchDone:
		if s.callbacks.ModeChanged != nil {
			s.callbacks.ModeChanged(current)
		}
	case ModeSwitchCancel:
		if s.callbacks.ModeChangeCanceled != nil {
			s.callbacks.ModeChangeCanceled(current)
		}
	}
}

// Device returns a device by its hub ID.
func (s *Store) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	return d, ok
}

// ResolveDevice finds a device by ID first, then by name.
func (s *Store) ResolveDevice(idOrName string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.devices[idOrName]; ok {
		return d, true
	}
	if id, ok := s.deviceNames[idOrName]; ok {
		return s.devices[id], true
	}
	return Device{}, false
}

// Devices returns all devices sorted by name.
func (s *Store) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Item returns an item by its hub ID.
func (s *Store) Item(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	return it, ok
}

// ItemForDevice returns a device's item by item name.
func (s *Store) ItemForDevice(deviceID, name string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.itemNames[itemKey{deviceID, name}]
	if !ok {
		return Item{}, false
	}
	it, ok := s.items[id]
	return it, ok
}

// ItemsForDevice returns all items belonging to a device, sorted by
// item name.
func (s *Store) ItemsForDevice(deviceID string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, it := range s.items {
		if it.DeviceID == deviceID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Items returns all items sorted by device then name.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Modes returns the house mode state.
func (s *Store) Modes() ModeState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes
}

// ModeByID returns a configured mode by ID.
func (s *Store) ModeByID(id string) (Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes.byID(id)
}

// ModeByName returns a configured mode by name.
func (s *Store) ModeByName(name string) (Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes.byName(name)
}

// CurrentMode returns the active mode. The bool is false when the
// mode state is not yet synced or the current ID is unknown.
func (s *Store) CurrentMode() (Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modes.byID(string(s.modes.CurrentID))
}
