// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math"
	"time"

	"github.com/luxfi/indra/artifact"
	"github.com/luxfi/indra/attention"
	"github.com/luxfi/indra/ids"
)

// HeatParams shapes the attention-recency kernel used by Heat.
type HeatParams struct {
	// HalfLife is the duration after which a peer's dwell on an
	// artifact contributes half as much heat as it did at the moment
	// of observation.
	HalfLife time.Duration
	// Window bounds how far back dwell intervals are reconstructed
	// from a peer's replicated attention log.
	Window time.Duration
}

// DefaultHeatParams is a 30-minute half-life over a 24-hour window,
// chosen so a conversation that went quiet yesterday still registers
// but no longer dominates over one active in the last hour.
func DefaultHeatParams() HeatParams {
	return HeatParams{
		HalfLife: 30 * time.Minute,
		Window:   24 * time.Hour,
	}
}

// Heat estimates how much attention target is currently drawing from
// the owner's peers. It is computed from the reconstructed dwell time
// each peer spent with target in focus, weighted by how recently that
// dwell ended, summed over every peer who is both in target's audience
// and has a known attention-log replica on file. The owner's own
// attention never contributes to their own heat reading.
func (v *Vault) Heat(target ids.ArtifactID, now time.Time) (float64, error) {
	a, ok := v.artifact.GetArtifact(target)
	if !ok {
		return 0, artifact.ErrNotFound
	}

	nowMillis := now.UnixMilli()
	windowStart := nowMillis - v.heat.Window.Milliseconds()
	halfLifeMillis := float64(v.heat.HalfLife.Milliseconds())

	var total float64
	for _, peer := range v.peerCandidates(a) {
		if !v.attn.HasReplica(peer) {
			continue
		}
		events := v.attn.Events(peer)
		total += dwellHeat(events, target, windowStart, nowMillis, halfLifeMillis)
	}
	return total, nil
}

// peerCandidates returns the subset of v's current peers that appear
// in a's audience, excluding the vault's own player.
func (v *Vault) peerCandidates(a artifact.Artifact) []ids.PlayerID {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]ids.PlayerID, 0, len(v.peers))
	for pid := range v.peers {
		if pid == v.player {
			continue
		}
		if artifact.InAudience(a, pid) {
			out = append(out, pid)
		}
	}
	return out
}

// dwellHeat walks a peer's attention-switch sequence and accumulates
// recency-weighted dwell time spent focused on target. Each event
// marks the start of a focus interval that runs until the next event
// (or, for the last event, until nowMillis); the interval is clamped to
// [windowStart, nowMillis] before being scored.
func dwellHeat(events []attention.Event, target ids.ArtifactID, windowStart, nowMillis int64, halfLifeMillis float64) float64 {
	var total float64
	for i, e := range events {
		if e.To == nil || *e.To != target {
			continue
		}
		start := e.TimestampMillis
		end := nowMillis
		if i+1 < len(events) {
			end = events[i+1].TimestampMillis
		}
		if start < windowStart {
			start = windowStart
		}
		if end > nowMillis {
			end = nowMillis
		}
		if end <= start {
			continue
		}

		dwellMillis := float64(end - start)
		ageMillis := float64(nowMillis - end)
		total += dwellMillis * recencyFactor(ageMillis, halfLifeMillis)
	}
	return total
}

// recencyFactor is the exponential half-life decay exp(-ln(2) * age /
// halfLife), clamped to 1 for non-positive age and to 0 for a
// non-positive half-life (so every dwell then scores zero heat).
func recencyFactor(ageMillis, halfLifeMillis float64) float64 {
	if halfLifeMillis <= 0 {
		return 0
	}
	if ageMillis <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * ageMillis / halfLifeMillis)
}
