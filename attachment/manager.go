// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

package attachment

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/storage"
)

// TickInterval is the attachment loop's fixed cadence (spec §4.7).
const TickInterval = time.Second

// Network is the subset of network lifecycle the Attachment Manager
// drives: starting/stopping transports, and a per-tick network step that
// reports whether the network needs a full restart (e.g. a changed public
// address invalidating the current listen sockets).
type Network interface {
	Start(ctx context.Context) error
	Stop()
	Tick(ctx context.Context, now time.Time) (needsRestart bool, err error)
}

// ReceiptTicker is the collaborator whose outstanding receipts expire on
// the attachment tick; *receipt.Manager implements this.
type ReceiptTicker interface {
	Tick(now time.Time) int
}

// Whitelist is the collaborator purged on each attachment tick;
// *ClientWhitelist implements this.
type Whitelist interface {
	Purge(now time.Time) int
}

// AddrFilterPurger is the collaborator whose stale connection timestamps
// and expired punishments are purged on each attachment tick (spec §4.3
// "periodic purge"); *addrfilter.AddressFilter implements this.
type AddrFilterPurger interface {
	Purge(now time.Time)
}

// RecordStoreFlusher is the collaborator persisted on the periodic flush
// tick (spec §4.6: "every FLUSH_RECORD_STORES_INTERVAL_SECS, persist both
// local and remote stores"); node wires *storage.Manager's Flush bound to
// its table store.
type RecordStoreFlusher interface {
	Flush() error
}

// OnlineChecker reports current connectivity; *netman.NetworkManager
// implements this.
type OnlineChecker interface {
	IsOnline() bool
}

// OfflineWriteFlusher re-issues writes queued while offline (spec §9:
// "flush on reconnect"); *storage.Manager implements this.
type OfflineWriteFlusher interface {
	FlushOfflineWrites(ctx context.Context)
}

// StorageHooks bundles the storage-layer collaborators the attachment
// tick drives. Every field is optional; a nil field's step is skipped.
type StorageHooks struct {
	Flush   RecordStoreFlusher
	Online  OnlineChecker
	Offline OfflineWriteFlusher
}

// Publisher is the client-update-stream collaborator (spec §6): every
// attachment state change and the final teardown are pushed out to
// subscribed IPC clients. *clientapi.Publisher implements this.
type Publisher interface {
	Attachment(state string)
	Shutdown()
}

// Manager runs the attachment supervisor loop from spec §4.7: start
// network, tick every second (routing-table tick, peer-minimum refresh
// when the table needs bootstrap, network tick, receipt-manager tick,
// client-whitelist purge, address-filter purge, storage flushes,
// attachment-state recompute), restart the network
// if a tick demands it, and tear down through Detaching to Detached on
// Stop. Every state change and the final teardown are pushed to Publisher,
// if one is configured (spec §6's "attachment"/"shutdown" client updates).
type Manager struct {
	log                log.Logger
	routing            *routingtable.RoutingTable
	network            Network
	receipts           ReceiptTicker
	whitelist          Whitelist
	addrFilter         AddrFilterPurger
	thresholds         Thresholds
	onPingDue          func([]routingtable.PingCandidate)
	onNeedsPeerMinimum func(ctx context.Context)
	storage            StorageHooks
	updates            Publisher

	mu        sync.RWMutex
	state     State
	lastFlush time.Time
	wasOnline bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewManager(rt *routingtable.RoutingTable, network Network, receipts ReceiptTicker, whitelist Whitelist, addrFilter AddrFilterPurger, thresholds Thresholds, onPingDue func([]routingtable.PingCandidate), onNeedsPeerMinimum func(ctx context.Context), storage StorageHooks, updates Publisher, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.New("component", "attachment")
	}
	return &Manager{
		log:                logger,
		routing:            rt,
		network:            network,
		receipts:           receipts,
		whitelist:          whitelist,
		addrFilter:         addrFilter,
		thresholds:         thresholds,
		onPingDue:          onPingDue,
		onNeedsPeerMinimum: onNeedsPeerMinimum,
		storage:            storage,
		updates:            updates,
		state:              Detached,
		wasOnline:          true,
	}
}

// State returns the current attachment state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed {
		m.log.Info("attachment state changed", "state", s.String())
		if m.updates != nil {
			m.updates.Attachment(s.String())
		}
	}
}

// Run drives the attachment loop until ctx is cancelled or Stop is called,
// moving Detached → Attaching → ... and back down through Detaching →
// Detached on exit (spec §4.7).
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()
	defer close(m.doneCh)

	m.setState(Attaching)
	if err := m.network.Start(ctx); err != nil {
		m.setState(Detached)
		return err
	}

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return ctx.Err()
		case <-m.stopCh:
			m.teardown()
			return nil
		case now := <-ticker.C:
			needsRestart, err := m.tick(ctx, now)
			if err != nil {
				m.log.Warn("attachment tick error", "err", err)
			}
			if needsRestart {
				m.network.Stop()
				if err := m.network.Start(ctx); err != nil {
					m.log.Warn("attachment network restart failed", "err", err)
					m.teardown()
					return err
				}
			}
		}
	}
}

// tick runs one pass of routing-table tick (kick queue + ping-due
// collection), peer-minimum refresh, network tick, receipt-manager tick,
// client-whitelist purge, address-filter purge, and attachment-state
// recompute (spec §4.1 tick ordering; relay management and private-route
// management are not implemented, see SPEC_FULL.md).
func (m *Manager) tick(ctx context.Context, now time.Time) (needsRestart bool, err error) {
	due := m.routing.Tick(now)
	if len(due) > 0 && m.onPingDue != nil {
		m.onPingDue(due)
	}
	if m.onNeedsPeerMinimum != nil && m.routing.NeedsBootstrap() {
		m.onNeedsPeerMinimum(ctx)
	}

	needsRestart, err = m.network.Tick(ctx, now)

	if m.receipts != nil {
		m.receipts.Tick(now)
	}
	if m.whitelist != nil {
		m.whitelist.Purge(now)
	}
	if m.addrFilter != nil {
		m.addrFilter.Purge(now)
	}
	m.tickStorage(ctx, now)

	m.recomputeState(now)
	return needsRestart, err
}

// tickStorage runs the periodic record-store flush (spec §4.6) and, on an
// offline-to-online transition, re-issues queued writes (spec §9).
func (m *Manager) tickStorage(ctx context.Context, now time.Time) {
	if m.storage.Flush != nil && now.Sub(m.lastFlush) >= storage.FlushRecordStoresIntervalSecs*time.Second {
		if err := m.storage.Flush.Flush(); err != nil {
			m.log.Warn("attachment record store flush failed", "err", err)
		}
		m.lastFlush = now
	}

	if m.storage.Online == nil || m.storage.Offline == nil {
		return
	}
	online := m.storage.Online.IsOnline()
	if online && !m.wasOnline {
		m.storage.Offline.FlushOfflineWrites(ctx)
	}
	m.wasOnline = online
}

func (m *Manager) recomputeState(now time.Time) {
	current := m.State()
	if current == Detaching || current == Detached {
		return
	}
	health := m.routing.GetRoutingTableHealth()
	m.setState(classify(health, m.thresholds))
}

func (m *Manager) teardown() {
	m.setState(Detaching)
	m.network.Stop()
	m.setState(Detached)
	if m.updates != nil {
		m.updates.Shutdown()
	}
}

// Stop requests the loop exit and blocks until it has fully torn down.
func (m *Manager) Stop() {
	m.mu.RLock()
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.RUnlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh
}
