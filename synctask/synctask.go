// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package synctask drives realm synchronization: a periodic round per
// peer that exchanges sync messages, plus an eager path triggered by
// local mutation so a local change doesn't wait for the next tick. It
// does not send event acks or touch a realm's pending-delivery queues.
package synctask

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/log"
	"github.com/luxfi/indra/metrics"
	"github.com/luxfi/indra/realm"
	"github.com/luxfi/indra/wire"
)

// DefaultInterval is the base period between sync rounds with a given
// peer over a given realm.
const DefaultInterval = 5 * time.Second

// DefaultJitter is the maximum random skew applied to each peer's
// period, so a fleet of peers doesn't converge on synchronized bursts.
const DefaultJitter = 2 * time.Second

const maxTransientRetries = 3

// Transport sends a signed envelope to a peer and is supplied by the
// caller (normally the network façade, backed by a discovery.Topology).
type Transport interface {
	Send(ctx context.Context, to ids.PlayerID, env *wire.SignedNetworkMessage) error
}

// RealmSource resolves a realm by ID for the driver and identifies the
// local player for signing outbound envelopes.
type RealmSource interface {
	Realm(id ids.InterfaceID) (*realm.Realm, bool)
	LocalPlayer() ids.PlayerID
}

// Signer produces signed envelopes for outbound messages.
type Signer interface {
	Encode(msg wire.NetworkMessage) (*wire.SignedNetworkMessage, error)
}

// Driver runs sync rounds for a fixed set of (realm, peer) pairs on a
// jittered timer, and accepts eager wake-ups on local mutation.
type Driver struct {
	realms    RealmSource
	transport Transport
	signer    Signer
	metrics   *metrics.Metrics
	log       log.Logger

	interval time.Duration
	jitter   time.Duration

	mu      sync.Mutex
	targets map[target]struct{}
	wake    chan target
}

type target struct {
	realm ids.InterfaceID
	peer  ids.PlayerID
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option { return func(dr *Driver) { dr.interval = d } }

// WithJitter overrides DefaultJitter.
func WithJitter(d time.Duration) Option { return func(dr *Driver) { dr.jitter = d } }

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l log.Logger) Option { return func(dr *Driver) { dr.log = l } }

// New constructs a Driver. m must be non-nil; use metrics.NewForTest in
// tests.
func New(realms RealmSource, transport Transport, signer Signer, m *metrics.Metrics, opts ...Option) *Driver {
	d := &Driver{
		realms:    realms,
		transport: transport,
		signer:    signer,
		metrics:   m,
		log:       log.NoOp(),
		interval:  DefaultInterval,
		jitter:    DefaultJitter,
		targets:   make(map[target]struct{}),
		wake:      make(chan target, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Track registers (realmID, peer) for periodic sync. Safe to call while
// Run is active; a target tracked after Run has started gets its
// periodic schedule on its first NotifyLocalChange.
func (d *Driver) Track(realmID ids.InterfaceID, peer ids.PlayerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[target{realm: realmID, peer: peer}] = struct{}{}
}

// Untrack stops periodic sync for (realmID, peer); a running target's
// goroutine exits at its next tick.
func (d *Driver) Untrack(realmID ids.InterfaceID, peer ids.PlayerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.targets, target{realm: realmID, peer: peer})
}

// NotifyLocalChange requests an eager, out-of-band sync round with peer
// over realmID, ahead of the next scheduled tick. Non-blocking: if the
// wake channel is full the round is simply covered by the next tick.
func (d *Driver) NotifyLocalChange(realmID ids.InterfaceID, peer ids.PlayerID) {
	select {
	case d.wake <- target{realm: realmID, peer: peer}:
	default:
	}
}

// Run drives sync rounds until ctx is cancelled. Each tracked target
// gets its own jittered ticker goroutine so one slow peer never delays
// another's schedule.
func (d *Driver) Run(ctx context.Context) {
	var wg sync.WaitGroup
	started := make(map[target]struct{})

	d.mu.Lock()
	for t := range d.targets {
		started[t] = struct{}{}
		wg.Add(1)
		go d.runTarget(ctx, &wg, t)
	}
	d.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case t := <-d.wake:
			d.mu.Lock()
			_, tracked := d.targets[t]
			_, running := started[t]
			d.mu.Unlock()
			if tracked && !running {
				started[t] = struct{}{}
				wg.Add(1)
				go d.runTarget(ctx, &wg, t)
			} else if tracked {
				if err := d.syncOnce(ctx, t); err != nil {
					d.log.Warn("eager sync failed", "realm", t.realm, "peer", t.peer, "err", err)
				}
			}
		}
	}
}

func (d *Driver) runTarget(ctx context.Context, wg *sync.WaitGroup, t target) {
	defer wg.Done()
	timer := time.NewTimer(d.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.mu.Lock()
			_, tracked := d.targets[t]
			d.mu.Unlock()
			if !tracked {
				return
			}
			d.syncWithRetry(ctx, t)
			timer.Reset(d.nextDelay())
		}
	}
}

func (d *Driver) nextDelay() time.Duration {
	if d.jitter <= 0 {
		return d.interval
	}
	return d.interval + time.Duration(rand.Int63n(int64(d.jitter)))
}

// syncWithRetry retries transient transport failures a bounded number
// of times with exponential backoff before giving up on this round;
// the next scheduled tick will simply try again.
func (d *Driver) syncWithRetry(ctx context.Context, t target) {
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < maxTransientRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := d.syncOnce(ctx, t); err != nil {
			d.metrics.SyncFailures.Inc()
			d.log.Warn("sync round failed, retrying", "realm", t.realm, "peer", t.peer, "attempt", attempt, "err", err)
			continue
		}
		return
	}
	d.log.Error("sync round exhausted retries", "realm", t.realm, "peer", t.peer)
}

// syncOnce runs a single sync-request/response exchange with a peer
// over a realm: send our state vector, expect a follow-up SyncResponse
// delivered asynchronously by the caller's transport via MergeDelta.
func (d *Driver) syncOnce(ctx context.Context, t target) error {
	r, ok := d.realms.Realm(t.realm)
	if !ok {
		return nil
	}
	msg := r.GenerateSync(t.peer)
	if msg == nil {
		return nil
	}
	env, err := d.signer.Encode(wire.NetworkMessage{
		Kind: wire.KindSyncRequest,
		SyncRequest: &wire.SyncRequest{
			Realm:       t.realm,
			StateVector: msg,
		},
	})
	if err != nil {
		return errors.Wrapf(err, "synctask: encode sync request for realm %s", t.realm)
	}
	if err := d.transport.Send(ctx, t.peer, env); err != nil {
		return errors.Wrapf(err, "synctask: send sync request to %s", t.peer)
	}
	d.metrics.SyncRounds.Inc()
	return nil
}

// MergeDelta applies an inbound sync payload (carried in a SyncRequest
// or SyncResponse) from peer into realmID, and generates a reply to
// send back if the exchange isn't converged yet.
func (d *Driver) MergeDelta(realmID ids.InterfaceID, peer ids.PlayerID, payload []byte) ([]byte, error) {
	r, ok := d.realms.Realm(realmID)
	if !ok {
		return nil, nil
	}
	if err := r.MergeSync(peer, payload); err != nil {
		return nil, errors.Wrapf(err, "synctask: merge sync payload for realm %s from %s", realmID, peer)
	}
	return r.GenerateSync(peer), nil
}
