package session

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ezlo-protocol/ezlo-go/pkg/inventory"
	"github.com/ezlo-protocol/ezlo-go/pkg/wire"
)

// Send issues a raw hub method call and returns the reply envelope.
// It fails immediately when the session is not connected.
func (c *Controller) Send(ctx context.Context, spec wire.MethodSpec, params any) (*wire.Envelope, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	return c.tracker.Call(ctx, spec, params)
}

// SetItemValue coerces value to the item's declared type and sends
// one hub.item.value.set call. Coercion failures and unknown item IDs
// surface before any network traffic.
func (c *Controller) SetItemValue(ctx context.Context, itemID string, value any) error {
	item, ok := c.store.Item(itemID)
	if !ok {
		return &ValidationError{Op: "set item value", Reason: fmt.Sprintf("unknown item %q", itemID)}
	}

	coerced, err := inventory.CoerceValue(item, value)
	if err != nil {
		return err
	}

	if !c.Connected() {
		return ErrNotConnected
	}
	_, err = c.tracker.Call(ctx, wire.Method(wire.MethodHubItemValueSet), map[string]any{
		"_id":   item.ID,
		"value": coerced,
	})
	if err != nil {
		return fmt.Errorf("set item %s: %w", item.Name, err)
	}
	return nil
}

// SetDeviceItemValue addresses an item through its device (by ID or
// name) and item name.
func (c *Controller) SetDeviceItemValue(ctx context.Context, device, itemName string, value any) error {
	d, ok := c.store.ResolveDevice(device)
	if !ok {
		return &ValidationError{Op: "set item value", Reason: fmt.Sprintf("unknown device %q", device)}
	}
	item, ok := c.store.ItemForDevice(d.ID, itemName)
	if !ok {
		return &ValidationError{Op: "set item value", Reason: fmt.Sprintf("device %s has no item %q", d.Name, itemName)}
	}
	return c.SetItemValue(ctx, item.ID, value)
}

var allDigits = regexp.MustCompile(`^\d+$`)

// SetHouseMode requests a switch to the mode named by ID or name. An
// all-digit argument that matches no configured mode is passed
// through as a mode ID, since hubs can report modes lazily.
func (c *Controller) SetHouseMode(ctx context.Context, idOrName string) error {
	var params map[string]string
	switch {
	case idOrName == "":
		return &ValidationError{Op: "set house mode", Reason: "mode is required"}
	default:
		if m, ok := c.store.ModeByID(idOrName); ok {
			params = map[string]string{"modeId": string(m.ID)}
			break
		}
		if m, ok := c.store.ModeByName(idOrName); ok {
			params = map[string]string{"name": m.Name}
			break
		}
		if allDigits.MatchString(idOrName) {
			params = map[string]string{"modeId": idOrName}
			break
		}
		return &ValidationError{Op: "set house mode", Reason: fmt.Sprintf("unknown mode %q", idOrName)}
	}

	if !c.Connected() {
		return ErrNotConnected
	}
	if _, err := c.tracker.Call(ctx, wire.Method(wire.MethodHubModesSwitch), params); err != nil {
		return fmt.Errorf("switch mode: %w", err)
	}
	return nil
}

// CancelModeChange aborts a pending house mode switch. It is sent
// unconditionally; the hub answers harmlessly when nothing is pending.
func (c *Controller) CancelModeChange(ctx context.Context) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	if _, err := c.tracker.Call(ctx, wire.Method(wire.MethodHubModesCancel), nil); err != nil {
		return fmt.Errorf("cancel mode switch: %w", err)
	}
	return nil
}
