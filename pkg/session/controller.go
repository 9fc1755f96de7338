package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ezlo-protocol/ezlo-go/pkg/auth"
	"github.com/ezlo-protocol/ezlo-go/pkg/event"
	"github.com/ezlo-protocol/ezlo-go/pkg/inventory"
	"github.com/ezlo-protocol/ezlo-go/pkg/log"
	"github.com/ezlo-protocol/ezlo-go/pkg/request"
	"github.com/ezlo-protocol/ezlo-go/pkg/transport"
	"github.com/ezlo-protocol/ezlo-go/pkg/wire"
)

// startAttempt is shared by concurrent Start callers. It settles once
// with the outcome of the initial connect.
type startAttempt struct {
	done chan struct{}
	err  error
	once sync.Once
}

func newStartAttempt() *startAttempt {
	return &startAttempt{done: make(chan struct{})}
}

func (a *startAttempt) settle(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

func (a *startAttempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// senderFunc adapts the controller's frame send to request.Sender.
type senderFunc func([]byte) error

func (f senderFunc) Send(data []byte) error { return f(data) }

// Controller owns the connection lifecycle of one hub.
type Controller struct {
	cfg      Config
	endpoint string
	mode     auth.Mode

	authMgr *auth.Manager
	store   *inventory.Store
	bus     *event.Bus
	tracker *request.Tracker
	logger  log.Logger
	backoff *Backoff

	state atomic.Int32

	mu        sync.Mutex
	transport *transport.Client
	connID    string
	connLost  chan struct{}
	hbStop    chan struct{}
	online    bool
	running   bool
	stopping  bool
	stopCh    chan struct{}
	runDone   chan struct{}
	attempt   *startAttempt
	fatal     error
}

// New creates a controller for the configured hub. The config is
// validated here; the first network traffic happens on Start.
func New(cfg Config) (*Controller, error) {
	cfg = cfg.withDefaults()
	endpoint, mode, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:      cfg,
		endpoint: endpoint,
		mode:     mode,
		logger:   cfg.Logger,
		bus:      event.NewBus(),
		backoff:  NewBackoff(),
	}

	c.authMgr = auth.NewManager(auth.Config{
		Username:           cfg.Username,
		Password:           cfg.Password,
		IdentityURL:        cfg.IdentityURL,
		TokenExchangeURL:   cfg.TokenExchangeURL,
		CloudRequestURL:    cfg.CloudRequestURL,
		AccountURLOverride: cfg.AccountURL,
		HTTPClient:         cfg.HTTPClient,
		Cache:              cfg.Cache,
		DumpDir:            cfg.DumpDir,
	})

	c.store = inventory.NewStore(inventory.Callbacks{
		DeviceChanged: func(d inventory.Device) {
			c.publish(event.Event{Kind: event.KindDeviceUpdated, Device: &d})
		},
		ItemChanged: func(it inventory.Item) {
			c.publish(event.Event{Kind: event.KindItemUpdated, Item: &it})
		},
		ModeChanging: func(from, to inventory.Mode) {
			c.publish(event.Event{Kind: event.KindModeChanging, Mode: &to, PreviousMode: &from})
		},
		ModeChanged: func(m inventory.Mode) {
			c.publish(event.Event{Kind: event.KindModeChanged, Mode: &m})
		},
		ModeChangeCanceled: func(m inventory.Mode) {
			c.publish(event.Event{Kind: event.KindModeChangeCanceled, Mode: &m})
		},
	})

	c.tracker = request.NewTracker(senderFunc(c.sendFrame), cfg.RequestTimeout, cfg.Logger)
	return c, nil
}

// Mode returns the resolved access mode.
func (c *Controller) Mode() auth.Mode { return c.mode }

// State returns the lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Connected reports whether the session is fully operational.
func (c *Controller) Connected() bool { return c.State() == StateConnected }

// Inventory returns the hub's inventory mirror.
func (c *Controller) Inventory() *inventory.Store { return c.store }

// Events returns the session's event bus.
func (c *Controller) Events() *event.Bus { return c.bus }

// Start brings the session up. It is idempotent: concurrent callers
// share the one in-flight attempt and unblock together when the first
// connect finishes. A connect failure that the controller will retry
// on its own surfaces as nil; only fatal errors are returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		att := c.attempt
		c.mu.Unlock()
		if att != nil {
			return att.wait(ctx)
		}
		return nil
	}
	att := newStartAttempt()
	c.attempt = att
	c.running = true
	c.stopping = false
	c.fatal = nil
	c.stopCh = make(chan struct{})
	c.runDone = make(chan struct{})
	runDone := c.runDone
	c.mu.Unlock()

	go c.run(att, runDone)
	return att.wait(ctx)
}

// Stop tears the session down: pending requests are aborted, the
// socket is closed gracefully, and the controller ends in Stopped.
// It is safe to call at any time; a later Start begins cleanly.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopping && !c.running {
		c.mu.Unlock()
		return
	}
	alreadyStopping := c.stopping
	c.stopping = true
	stopCh := c.stopCh
	tc := c.transport
	runDone := c.runDone
	c.mu.Unlock()

	if stopCh != nil && !alreadyStopping {
		close(stopCh)
	}
	if tc != nil {
		_ = tc.Close(transport.CloseNormal, "client stop")
	}
	if runDone != nil {
		<-runDone
	}

	c.tracker.AbortAll(nil)
	c.backoff.Reset()
	c.setState(StateStopped, "stop requested")
}

// Err returns the fatal error that halted the controller, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// run is the session's lifecycle goroutine: connect, monitor, retry.
func (c *Controller) run(att *startAttempt, runDone chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.attempt = nil
		c.mu.Unlock()
		close(runDone)
	}()

	for {
		if c.isStopping() {
			att.settle(ErrStopped)
			return
		}

		lost, err := c.connectOnce()
		if err == nil {
			att.settle(nil)
			c.mu.Lock()
			c.attempt = nil
			c.mu.Unlock()

			<-lost
			if c.isStopping() {
				return
			}
		} else if c.isFatal(err) {
			c.mu.Lock()
			c.fatal = err
			c.mu.Unlock()
			c.setState(StateDisconnected, err.Error())
			att.settle(err)
			return
		}

		c.setState(StateReconnecting, "")
		if c.backoff.AuthStale() {
			// The hub has been gone long enough that cached tokens and
			// relay assignments may no longer be valid.
			c.authMgr.Invalidate()
		}
		select {
		case <-time.After(c.backoff.Next()):
		case <-c.stopChan():
			att.settle(ErrStopped)
			return
		}
	}
}

// connectOnce runs the full connect sequence. On success it returns a
// channel that closes when the connection is lost.
func (c *Controller) connectOnce() (<-chan struct{}, error) {
	ctx := context.Background()
	connID := uuid.NewString()
	c.tracker.SetConnectionID(connID)

	c.setState(StateAuthenticating, "")
	endpoint := c.endpoint
	var localAccess *auth.LocalAccess
	var remoteAccess *auth.RemoteAccess
	var err error
	switch c.mode {
	case auth.ModeLocal:
		localAccess, err = c.authMgr.ResolveLocalAccess(ctx, c.cfg.Serial)
	case auth.ModeRemote:
		remoteAccess, err = c.authMgr.ResolveRemoteAccess(ctx, c.cfg.Serial)
		if err == nil {
			endpoint = remoteAccess.Endpoint
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve access: %w", err)
	}

	c.setState(StateOpening, endpoint)
	tc := transport.New(endpoint, transport.Config{
		ConnectTimeout: c.cfg.ConnectTimeout,
		TLS: &transport.TLSOptions{
			// Hubs only carry self-signed certificates; the relay has
			// real ones unless the caller opts out.
			InsecureSkipVerify: c.mode != auth.ModeRemote || c.cfg.InsecureTLS,
			DisableECCCiphers:  c.cfg.DisableECCCiphers,
		},
	}, c)

	lost := make(chan struct{})
	c.mu.Lock()
	c.transport = tc
	c.connID = connID
	c.connLost = lost
	c.mu.Unlock()

	if err := tc.Open(ctx); err != nil {
		c.clearTransport()
		return nil, err
	}

	c.setState(StateLoggingIn, "")
	if err := c.login(ctx, localAccess, remoteAccess); err != nil {
		// The hub rejected credentials the cloud just handed out, so
		// they are suspect. Drop them and let the retry refetch.
		c.authMgr.InvalidateAccess(c.cfg.Serial)
		tc.Terminate()
		<-lost
		return nil, err
	}

	c.setState(StateSyncing, "")
	if err := c.sync(ctx); err != nil {
		tc.Terminate()
		<-lost
		return nil, err
	}

	if c.cfg.Heartbeat > 0 {
		hb := make(chan struct{})
		c.mu.Lock()
		c.hbStop = hb
		c.mu.Unlock()
		go c.heartbeatLoop(hb)
	}

	c.backoff.Reset()
	c.mu.Lock()
	c.online = true
	c.mu.Unlock()
	c.setState(StateConnected, "")
	c.publish(event.Event{Kind: event.KindOnline})
	return lost, nil
}

// login authenticates on the open socket according to the mode.
func (c *Controller) login(ctx context.Context, la *auth.LocalAccess, ra *auth.RemoteAccess) error {
	switch c.mode {
	case auth.ModeNone:
		return nil

	case auth.ModeLocal:
		_, err := c.tracker.Call(ctx, wire.Method(wire.MethodHubOfflineLogin), map[string]string{
			"user":  la.UserID,
			"token": la.Token,
		})
		if err != nil {
			return fmt.Errorf("hub login: %w", err)
		}
		return nil

	case auth.ModeRemote:
		_, err := c.tracker.Call(ctx, wire.Method(wire.MethodLoginUserMios), map[string]string{
			"MMSAuth":    ra.Identity.Token,
			"MMSAuthSig": ra.Identity.Signature,
		})
		if err != nil {
			return fmt.Errorf("relay login: %w", err)
		}
		_, err = c.tracker.Call(ctx, wire.Method(wire.MethodRegister), map[string]string{
			"serial": c.cfg.Serial,
		})
		if err != nil {
			return fmt.Errorf("relay register: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown auth mode %v", c.mode)
	}
}

// sync loads the hub identity and the inventory snapshots.
func (c *Controller) sync(ctx context.Context) error {
	env, err := c.tracker.Call(ctx, wire.Method(wire.MethodHubInfoGet), nil)
	if err != nil {
		return fmt.Errorf("hub info: %w", err)
	}
	var info inventory.HubInfo
	if err := env.DecodeResult(&info); err != nil {
		return fmt.Errorf("hub info: %w", err)
	}
	if !strings.EqualFold(info.Serial, c.cfg.Serial) {
		return &ConfigError{
			Field:  "serial",
			Reason: fmt.Sprintf("configured %s but hub reports %s", c.cfg.Serial, info.Serial),
		}
	}
	c.store.SetInfo(info)

	env, err = c.tracker.Call(ctx, wire.MethodV2(wire.MethodHubModesGet), nil)
	if err != nil {
		return fmt.Errorf("modes: %w", err)
	}
	var modes inventory.ModeState
	if err := env.DecodeResult(&modes); err != nil {
		return fmt.Errorf("modes: %w", err)
	}
	c.store.MergeModeSnapshot(modes)

	env, err = c.tracker.CallTimeout(ctx, wire.Method(wire.MethodHubDevicesList), nil, c.cfg.ListTimeout)
	if err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	var devices struct {
		Devices []inventory.Device `json:"devices"`
	}
	if err := env.DecodeResult(&devices); err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	c.store.MergeDeviceSnapshot(devices.Devices)

	env, err = c.tracker.CallTimeout(ctx, wire.Method(wire.MethodHubItemsList), nil, c.cfg.ListTimeout)
	if err != nil {
		return fmt.Errorf("items: %w", err)
	}
	var items struct {
		Items []inventory.Item `json:"items"`
	}
	if err := env.DecodeResult(&items); err != nil {
		return fmt.Errorf("items: %w", err)
	}
	c.store.MergeItemSnapshot(items.Items)
	return nil
}

// heartbeatLoop probes the hub until stopped. An unanswered probe
// means the socket is dead even if TCP disagrees, so it is torn down
// to trigger the reconnect path.
func (c *Controller) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_, err := c.tracker.Call(context.Background(), wire.Method(wire.MethodHubRoomList), nil)
			switch {
			case err == nil:
			case errors.Is(err, request.ErrTimeout):
				c.terminateTransport()
				return
			case errors.Is(err, request.ErrAborted):
				return
			}
		}
	}
}

// isFatal classifies connect errors that retrying cannot fix.
func (c *Controller) isFatal(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) || auth.IsFatal(err)
}

func (c *Controller) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *Controller) stopChan() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh
}

func (c *Controller) clearTransport() {
	c.mu.Lock()
	c.transport = nil
	c.connLost = nil
	c.mu.Unlock()
}

func (c *Controller) terminateTransport() {
	c.mu.Lock()
	tc := c.transport
	c.mu.Unlock()
	if tc != nil {
		tc.Terminate()
	}
}

// sendFrame routes tracker output to the current transport.
func (c *Controller) sendFrame(data []byte) error {
	c.mu.Lock()
	tc := c.transport
	c.mu.Unlock()
	if tc == nil {
		return ErrNotConnected
	}
	return tc.Send(data)
}

// setState updates the lifecycle state and logs the transition.
func (c *Controller) setState(next State, reason string) {
	prev := State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		Serial:       c.cfg.Serial,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

// publish stamps and emits an event.
func (c *Controller) publish(ev event.Event) {
	ev.Timestamp = time.Now()
	ev.Serial = c.cfg.Serial
	c.bus.Publish(ev)
}

// OnMessage implements transport.Handler.
func (c *Controller) OnMessage(data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		c.logError("decode", err)
		return
	}
	if env.IsBroadcast() {
		c.dispatchBroadcast(env)
		return
	}
	// Replies for requests that already timed out land here; drop them.
	c.tracker.HandleReply(env)
}

// OnClose implements transport.Handler. It runs exactly once per
// connection, whatever killed it.
func (c *Controller) OnClose(code int, reason string) {
	c.mu.Lock()
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	c.transport = nil
	lost := c.connLost
	c.connLost = nil
	wasOnline := c.online
	c.online = false
	c.mu.Unlock()

	c.tracker.AbortAll(nil)

	if wasOnline {
		status := reason
		if status == "" {
			status = fmt.Sprintf("connection closed (%d)", code)
		}
		c.publish(event.Event{Kind: event.KindOffline, Status: status})
	}
	if lost != nil {
		close(lost)
	}
}

// OnError implements transport.Handler.
func (c *Controller) OnError(err error) {
	c.logError("transport", err)
}

func (c *Controller) logError(op string, err error) {
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryError,
		Serial:       c.cfg.Serial,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: err.Error(),
			Context: op,
		},
	})
}
