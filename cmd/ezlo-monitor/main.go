// Command ezlo-monitor connects to an Ezlo hub and mirrors its state.
//
// The monitor keeps a live session to one hub (locally over LAN or
// through the Ezlo cloud relay), prints inventory events as they
// arrive, and optionally offers an interactive shell for reading and
// controlling devices.
//
// Usage:
//
//	ezlo-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-serial string     Hub serial number
//	-endpoint string   Hub endpoint (IP or ws(s):// URL) for local access
//	-username string   Ezlo cloud account username
//	-password string   Ezlo cloud account password
//	-heartbeat duration  Heartbeat interval, 0 disables (default 0)
//	-insecure          Skip TLS verification on the cloud relay
//	-atom              Restrict TLS ciphers for Atom hubs
//	-wire-log string   Write the binary wire log to this file
//	-cache string      Persist auth tokens to this file
//	-dump-dir string   Dump cloud auth responses into this directory
//	-interactive       Enable the interactive shell
//	-discover duration Browse mDNS for hubs, print them and exit
//
// Interactive Commands:
//
//	devices                    - List devices
//	items [device]             - List items, optionally for one device
//	set <item-id> <value>      - Set an item value
//	dset <device> <item> <val> - Set an item value via device and item name
//	modes                      - List house modes
//	mode <name|id>             - Switch house mode
//	cancel                     - Cancel a pending mode switch
//	send <method> [json]       - Send a raw hub method
//	info                       - Show hub info
//	status                     - Show session status
//	quit                       - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezlo-protocol/ezlo-go/cmd/ezlo-monitor/interactive"
	"github.com/ezlo-protocol/ezlo-go/pkg/discovery"
	"github.com/ezlo-protocol/ezlo-go/pkg/event"
	ezlolog "github.com/ezlo-protocol/ezlo-go/pkg/log"
	"github.com/ezlo-protocol/ezlo-go/pkg/persistence"
	"github.com/ezlo-protocol/ezlo-go/pkg/session"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path (YAML)")
		serial      = flag.String("serial", "", "Hub serial number")
		endpoint    = flag.String("endpoint", "", "Hub endpoint (IP or ws(s):// URL)")
		username    = flag.String("username", "", "Ezlo cloud account username")
		password    = flag.String("password", "", "Ezlo cloud account password")
		heartbeat   = flag.Duration("heartbeat", 0, "Heartbeat interval, 0 disables")
		insecure    = flag.Bool("insecure", false, "Skip TLS verification on the cloud relay")
		atom        = flag.Bool("atom", false, "Restrict TLS ciphers for Atom hubs")
		wireLog     = flag.String("wire-log", "", "Write the binary wire log to this file")
		cacheFile   = flag.String("cache", "", "Persist auth tokens to this file")
		dumpDir     = flag.String("dump-dir", "", "Dump cloud auth responses into this directory")
		runShell    = flag.Bool("interactive", false, "Enable the interactive shell")
		discoverFor = flag.Duration("discover", 0, "Browse mDNS for hubs, print them and exit")
	)
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if *discoverFor > 0 {
		if err := runDiscovery(*discoverFor); err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		return
	}

	cfg := session.Config{
		Serial:            *serial,
		Endpoint:          *endpoint,
		Username:          *username,
		Password:          *password,
		Heartbeat:         *heartbeat,
		InsecureTLS:       *insecure,
		DisableECCCiphers: *atom,
		DumpDir:           *dumpDir,
	}

	if *configFile != "" {
		fileCfg, err := loadConfigFile(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		fileCfg.apply(&cfg)
	}

	if *wireLog != "" {
		fl, err := ezlolog.NewFileLogger(*wireLog)
		if err != nil {
			log.Fatalf("Failed to open wire log: %v", err)
		}
		defer fl.Close()
		cfg.Logger = fl
	}

	if *cacheFile != "" {
		fc, err := persistence.NewFileCache(*cacheFile)
		if err != nil {
			log.Fatalf("Failed to open auth cache: %v", err)
		}
		cfg.Cache = fc
	}

	ctrl, err := session.New(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Ezlo hub monitor")
	log.Printf("Serial: %s, access: %s", cfg.Serial, ctrl.Mode())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ctrl.Events().Subscribe()
	defer sub.Close()
	go printEvents(sub)

	startCtx, startCancel := context.WithTimeout(ctx, 2*time.Minute)
	err = ctrl.Start(startCtx)
	startCancel()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	if info, ok := ctrl.Inventory().Info(); ok {
		log.Printf("Connected to %s (model %s, firmware %s)", info.Serial, info.Model, info.Firmware)
	}
	log.Printf("Devices: %d, items: %d", len(ctrl.Inventory().Devices()), len(ctrl.Inventory().Items()))

	if *runShell {
		sh, err := interactive.New(ctrl)
		if err != nil {
			log.Fatalf("Failed to create shell: %v", err)
		}
		// Route log output through readline so events do not mangle
		// the prompt.
		log.SetOutput(sh.Stdout())
		go sh.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	ctrl.Stop()
}

// runDiscovery browses the local network and prints every hub seen
// within the window.
func runDiscovery(window time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), window)
	defer cancel()

	browser := discovery.NewBrowser(discovery.BrowserConfig{})
	hubs, err := browser.Browse(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Browsing for hubs...")
	found := 0
	for hub := range hubs {
		found++
		fmt.Printf("  %s  host=%s port=%d addrs=%v", hub.Serial, hub.Host, hub.Port, hub.Addresses)
		if hub.Model != "" {
			fmt.Printf(" model=%s", hub.Model)
		}
		fmt.Println()
	}
	if found == 0 {
		fmt.Println("No hubs found")
	}
	return nil
}

func printEvents(sub *event.Subscription) {
	for ev := range sub.C {
		switch ev.Kind {
		case event.KindOnline:
			log.Printf("[EVENT] Hub online")
		case event.KindOffline:
			log.Printf("[EVENT] Hub offline: %s", ev.Status)
		case event.KindDeviceUpdated:
			log.Printf("[EVENT] Device %s (%s) updated", ev.Device.Name, ev.Device.ID)
		case event.KindItemUpdated:
			log.Printf("[EVENT] Item %s = %v (device %s)", ev.Item.Name, ev.Item.Value, ev.Item.DeviceID)
		case event.KindModeChanging:
			log.Printf("[EVENT] Mode changing: %s -> %s", ev.PreviousMode.Name, ev.Mode.Name)
		case event.KindModeChanged:
			log.Printf("[EVENT] Mode changed to %s", ev.Mode.Name)
		case event.KindModeChangeCanceled:
			log.Printf("[EVENT] Mode change canceled, staying in %s", ev.Mode.Name)
		case event.KindHubStatusChanged:
			log.Printf("[EVENT] Hub status: %s", ev.Status)
		}
	}
}
