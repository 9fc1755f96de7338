package transport

import (
	"sync"
	"time"
)

// keepAlive monitors connection liveness with a single timer. Any
// ping or pong activity rearms it for the idle interval. When the
// idle interval elapses a ping is sent and the timer is rearmed for
// the pong window; expiry with that ping still unanswered means the
// peer is gone and onTimeout fires.
type keepAlive struct {
	interval    time.Duration
	pongTimeout time.Duration
	sendPing    func() error
	onTimeout   func()

	mu      sync.Mutex
	timer   *time.Timer
	pingOK  bool
	stopped bool
}

func newKeepAlive(interval, pongTimeout time.Duration, sendPing func() error, onTimeout func()) *keepAlive {
	return &keepAlive{
		interval:    interval,
		pongTimeout: pongTimeout,
		sendPing:    sendPing,
		onTimeout:   onTimeout,
		pingOK:      true,
	}
}

// start arms the idle timer. Must be called once after the connection
// is established.
func (k *keepAlive) start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	k.timer = time.AfterFunc(k.interval, k.expire)
}

// stop cancels the timer. Safe to call more than once.
func (k *keepAlive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopped = true
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}

// activity records liveness from the peer (a received ping) and
// rearms the idle timer.
func (k *keepAlive) activity() {
	k.rearm(k.interval)
}

// pongReceived records an answered ping and rearms the idle timer.
func (k *keepAlive) pongReceived() {
	k.mu.Lock()
	k.pingOK = true
	k.mu.Unlock()
	k.rearm(k.interval)
}

func (k *keepAlive) rearm(d time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped || k.timer == nil {
		return
	}
	k.timer.Stop()
	k.timer.Reset(d)
}

// expire runs when the timer fires. An unanswered ping means the
// connection is dead; otherwise probe the peer and wait for the pong.
func (k *keepAlive) expire() {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	alive := k.pingOK
	if alive {
		k.pingOK = false
	}
	k.mu.Unlock()

	if !alive {
		k.onTimeout()
		return
	}
	if err := k.sendPing(); err != nil {
		k.onTimeout()
		return
	}
	k.rearm(k.pongTimeout)
}
