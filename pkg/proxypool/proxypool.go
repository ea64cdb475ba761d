/*
 * stream-relay is a project to aggregate live TV catalogs and relay HLS streams.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package proxypool maintains a scored set of outbound proxies. Selection
// favors reliable, least-recently-used proxies; every use feeds back into
// the score so bad proxies demote themselves out of rotation.
package proxypool

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lucasduport/stream-relay/pkg/types"
	"github.com/lucasduport/stream-relay/pkg/utils"
)

const (
	// selectThreshold is the minimum success rate a proxy needs to be
	// eligible for selection.
	selectThreshold = 70
	// demoteThreshold deactivates a proxy once its rate drops below it.
	// Demotion is one way; reactivation is an operator decision.
	demoteThreshold = 50

	failurePenalty = 5
	successReward  = 1
)

// Store is the persistence contract for proxy records and their usage log.
type Store interface {
	GetProxyRecords() ([]types.ProxyRecord, error)
	UpdateProxyRecord(rec types.ProxyRecord) error
	AppendUsageLog(usage types.ProxyUsage) error
}

// Pool holds the in-memory working set, persisting every mutation through
// the store. The store may be nil for an ephemeral pool.
type Pool struct {
	store Store

	mu      sync.Mutex
	records map[string]*types.ProxyRecord

	now func() time.Time
}

// NewPool builds a pool primed from the store. A load failure yields an
// empty pool rather than an error; the relay must keep working without
// proxies.
func NewPool(store Store) *Pool {
	p := &Pool{
		store:   store,
		records: make(map[string]*types.ProxyRecord),
		now:     time.Now,
	}
	if store != nil {
		if err := p.Reload(); err != nil {
			utils.WarnLog("Could not load proxy records, starting with an empty pool: %v", err)
		}
	}
	return p
}

// Reload replaces the working set with the store's current records.
func (p *Pool) Reload() error {
	recs, err := p.store.GetProxyRecords()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = make(map[string]*types.ProxyRecord, len(recs))
	for i := range recs {
		rec := recs[i]
		p.records[rec.ID] = &rec
	}
	utils.InfoLog("Proxy pool loaded %d records", len(recs))
	return nil
}

// Add inserts or replaces a record in the working set and persists it.
func (p *Pool) Add(rec types.ProxyRecord) error {
	p.mu.Lock()
	p.records[rec.ID] = &rec
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	return p.store.UpdateProxyRecord(rec)
}

// Select returns the least recently used proxy among those that are active
// and at or above the selection threshold. Never-used proxies sort first so
// new additions get exercised. The second return is false when no proxy
// qualifies.
func (p *Pool) Select() (types.ProxyRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *types.ProxyRecord
	for _, rec := range p.records {
		if !rec.IsActive || rec.SuccessRate < selectThreshold {
			continue
		}
		if best == nil || older(rec.LastUsedAt, best.LastUsedAt) {
			best = rec
		}
	}
	if best == nil {
		return types.ProxyRecord{}, false
	}
	return *best, true
}

// older reports whether a sorts before b in LRU order, nil (never used)
// sorting first.
func older(a, b *time.Time) bool {
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

// Record applies one usage outcome to a proxy: success nudges the rate up by
// one (capped at 100), averages the latency in and stamps the LRU fields;
// failure knocks five points off (floored at 0) and deactivates the proxy
// once it falls below the demotion threshold, touching nothing else, so a
// failing-but-eligible proxy keeps its place in the rotation. The outcome is
// appended to the usage log either way.
func (p *Pool) Record(proxyID string, success bool, latencyMs int, errMsg string) {
	p.mu.Lock()
	rec, ok := p.records[proxyID]
	if !ok {
		p.mu.Unlock()
		utils.WarnLog("Usage recorded for unknown proxy %s", proxyID)
		return
	}

	now := p.now()

	if success {
		rec.UsageCount++
		rec.LastUsedAt = &now
		rec.SuccessRate += successReward
		if rec.SuccessRate > 100 {
			rec.SuccessRate = 100
		}
		if latencyMs > 0 {
			if rec.LatencyMs == 0 {
				rec.LatencyMs = latencyMs
			} else {
				rec.LatencyMs = (rec.LatencyMs + latencyMs) / 2
			}
		}
	} else {
		rec.SuccessRate -= failurePenalty
		if rec.SuccessRate < 0 {
			rec.SuccessRate = 0
		}
		if rec.SuccessRate < demoteThreshold {
			if rec.IsActive {
				utils.WarnLog("Proxy %s demoted (rate %d)", rec.Host, rec.SuccessRate)
			}
			rec.IsActive = false
		}
	}

	snapshot := *rec
	p.mu.Unlock()

	if p.store == nil {
		return
	}
	if err := p.store.UpdateProxyRecord(snapshot); err != nil {
		utils.ErrorLog("Could not persist proxy record %s: %v", proxyID, err)
	}
	usage := types.ProxyUsage{
		ID:           uuid.New().String(),
		ProxyID:      proxyID,
		Success:      success,
		LatencyMs:    latencyMs,
		ErrorMessage: errMsg,
		At:           now,
	}
	if err := p.store.AppendUsageLog(usage); err != nil {
		utils.ErrorLog("Could not append proxy usage log: %v", err)
	}
}

// Size returns the number of records in the working set, active or not.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
