// Package interactive provides the interactive command shell for
// ezlo-monitor.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ezlo-protocol/ezlo-go/pkg/session"
	"github.com/ezlo-protocol/ezlo-go/pkg/wire"
)

const commandTimeout = 30 * time.Second

// Monitor handles interactive mode for ezlo-monitor.
type Monitor struct {
	ctrl *session.Controller
	rl   *readline.Instance
}

// New creates a new interactive shell around a running session.
func New(ctrl *session.Controller) (*Monitor, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ezlo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Monitor{ctrl: ctrl, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with input.
func (m *Monitor) Stdout() io.Writer {
	return m.rl.Stdout()
}

// Run starts the interactive command loop.
func (m *Monitor) Run(ctx context.Context, cancel context.CancelFunc) {
	defer m.rl.Close()

	m.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := m.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			m.printHelp()

		case "devices", "ls":
			m.cmdDevices()

		case "items":
			m.cmdItems(args)

		case "set":
			m.cmdSet(ctx, args)

		case "dset":
			m.cmdDeviceSet(ctx, args)

		case "modes":
			m.cmdModes()

		case "mode":
			m.cmdMode(ctx, args)

		case "cancel":
			m.cmdCancel(ctx)

		case "send":
			m.cmdSend(ctx, args)

		case "info":
			m.cmdInfo()

		case "status":
			m.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(m.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (m *Monitor) printHelp() {
	fmt.Println(`
Ezlo Monitor Commands:
  Inventory:
    devices                    - List devices
    items [device]             - List items, optionally for one device
    info                       - Show hub info

  Control:
    set <item-id> <value>      - Set an item value
    dset <device> <item> <val> - Set an item by device and item name
    modes                      - List house modes
    mode <name|id>             - Switch house mode
    cancel                     - Cancel a pending mode switch

  General:
    send <method> [json]       - Send a raw hub method
    status                     - Show session status
    help                       - Show this help
    quit                       - Exit`)
}

// cmdDevices handles the devices command.
func (m *Monitor) cmdDevices() {
	devices := m.ctrl.Inventory().Devices()
	if len(devices) == 0 {
		fmt.Println("No devices")
		return
	}

	fmt.Printf("\nDevices (%d):\n", len(devices))
	fmt.Println("-------------------------------------------")
	for _, d := range devices {
		reachable := "unknown"
		if d.Reachable != nil {
			reachable = "yes"
			if !*d.Reachable {
				reachable = "no"
			}
		}
		fmt.Printf("  %s  %s\n", d.ID, d.Name)
		fmt.Printf("      Category: %s, reachable: %s\n", d.Category, reachable)
	}
	fmt.Println()
}

// cmdItems handles the items command.
func (m *Monitor) cmdItems(args []string) {
	inv := m.ctrl.Inventory()

	items := inv.Items()
	if len(args) > 0 {
		d, ok := inv.ResolveDevice(args[0])
		if !ok {
			fmt.Printf("Device not found: %s\n", args[0])
			return
		}
		items = inv.ItemsForDevice(d.ID)
	}

	if len(items) == 0 {
		fmt.Println("No items")
		return
	}

	fmt.Printf("\nItems (%d):\n", len(items))
	fmt.Println("-------------------------------------------")
	for _, it := range items {
		device := it.DeviceID
		if d, ok := inv.Device(it.DeviceID); ok {
			device = d.Name
		}
		value := fmt.Sprintf("%v", it.Value)
		if it.ValueFormatted != "" {
			value = it.ValueFormatted
		}
		fmt.Printf("  %s  %s/%s = %s (%s)\n", it.ID, device, it.Name, value, it.ValueType)
	}
	fmt.Println()
}

// cmdSet handles the set command.
func (m *Monitor) cmdSet(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: set <item-id> <value>")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	value := strings.Join(args[1:], " ")
	if err := m.ctrl.SetItemValue(opCtx, args[0], value); err != nil {
		fmt.Printf("Set failed: %v\n", err)
		return
	}
	fmt.Println("OK")
}

// cmdDeviceSet handles the dset command.
func (m *Monitor) cmdDeviceSet(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: dset <device> <item-name> <value>")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	value := strings.Join(args[2:], " ")
	if err := m.ctrl.SetDeviceItemValue(opCtx, args[0], args[1], value); err != nil {
		fmt.Printf("Set failed: %v\n", err)
		return
	}
	fmt.Println("OK")
}

// cmdModes handles the modes command.
func (m *Monitor) cmdModes() {
	modes := m.ctrl.Inventory().Modes()
	if len(modes.Modes) == 0 {
		fmt.Println("No house modes reported")
		return
	}

	fmt.Println("\nHouse Modes:")
	for _, mode := range modes.Modes {
		marker := " "
		if string(mode.ID) == string(modes.CurrentID) {
			marker = "*"
		}
		fmt.Printf("  %s %s  %s\n", marker, mode.ID, mode.Name)
	}
	if modes.SwitchToID != "" {
		fmt.Printf("  Switching to: %s\n", modes.SwitchToID)
	}
	fmt.Println()
}

// cmdMode handles the mode command.
func (m *Monitor) cmdMode(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: mode <name|id>")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := m.ctrl.SetHouseMode(opCtx, args[0]); err != nil {
		fmt.Printf("Mode switch failed: %v\n", err)
		return
	}
	fmt.Println("Mode switch requested")
}

// cmdCancel handles the cancel command.
func (m *Monitor) cmdCancel(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := m.ctrl.CancelModeChange(opCtx); err != nil {
		fmt.Printf("Cancel failed: %v\n", err)
		return
	}
	fmt.Println("OK")
}

// cmdSend handles the send command.
func (m *Monitor) cmdSend(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: send <method> [json-params]")
		fmt.Println("  Example: send hub.room.list")
		fmt.Println("  Example: send hub.item.value.set {\"_id\":\"abc\",\"value\":true}")
		return
	}

	var params any
	if len(args) > 1 {
		raw := strings.Join(args[1:], " ")
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			fmt.Printf("Invalid params: %v\n", err)
			return
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	env, err := m.ctrl.Send(opCtx, wire.Method(args[0]), params)
	if err != nil {
		fmt.Printf("Send failed: %v\n", err)
		return
	}

	pretty, err := json.MarshalIndent(env.Result, "", "  ")
	if err != nil {
		fmt.Printf("%s\n", env.Result)
		return
	}
	fmt.Printf("%s\n", pretty)
}

// cmdInfo handles the info command.
func (m *Monitor) cmdInfo() {
	info, ok := m.ctrl.Inventory().Info()
	if !ok {
		fmt.Println("Hub info not synced yet")
		return
	}

	fmt.Println("\nHub Info")
	fmt.Println("-------------------------------------------")
	fmt.Printf("  Serial:       %s\n", info.Serial)
	fmt.Printf("  Model:        %s\n", info.Model)
	fmt.Printf("  Architecture: %s\n", info.Architecture)
	fmt.Printf("  Firmware:     %s\n", info.Firmware)
	fmt.Println()
}

// cmdStatus handles the status command.
func (m *Monitor) cmdStatus() {
	inv := m.ctrl.Inventory()

	fmt.Println("\nSession Status")
	fmt.Println("-------------------------------------------")
	fmt.Printf("  State:   %s\n", m.ctrl.State())
	fmt.Printf("  Access:  %s\n", m.ctrl.Mode())
	fmt.Printf("  Devices: %d\n", len(inv.Devices()))
	fmt.Printf("  Items:   %d\n", len(inv.Items()))
	if mode, ok := inv.CurrentMode(); ok {
		fmt.Printf("  Mode:    %s\n", mode.Name)
	}
	fmt.Println()
}
