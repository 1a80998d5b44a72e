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

// Package node assembles crypto, routing table, connection manager, RPC
// processor, storage manager, and route-spec store into one running
// instance, and adapts that instance to attachment.Network so the
// Attachment Manager can drive its lifecycle (spec §4.7). This is the
// composition root: other packages take their collaborators as
// interfaces or constructor arguments; only this package wires concrete
// instances together.
package node

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dbasu/corenet/addrfilter"
	"github.com/dbasu/corenet/clientapi"
	"github.com/dbasu/corenet/config"
	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/netman"
	"github.com/dbasu/corenet/netman/proto"
	"github.com/dbasu/corenet/protectedstore"
	"github.com/dbasu/corenet/receipt"
	"github.com/dbasu/corenet/routespec"
	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/rpc"
	"github.com/dbasu/corenet/storage"
	"github.com/dbasu/corenet/tablestore"
	"github.com/dbasu/corenet/types"
	"github.com/dbasu/corenet/wireformat"
)

// Node owns every long-lived collaborator for one running instance.
type Node struct {
	cfg          *config.Config
	log          log.Logger
	Crypto       *crypto.Crypto
	LocalNodeIDs crypto.TypedKeyGroup

	TableStore     *tablestore.Store
	ProtectedStore *protectedstore.Store

	RoutingTable *routingtable.RoutingTable
	ConnMgr      *netman.ConnectionManager
	NetworkMgr   *netman.NetworkManager
	Processor    *rpc.Processor
	RouteSpec    *routespec.Store
	Storage      *storage.Manager
	Receipts     *receipt.Manager
	AddrFilter   *addrfilter.AddressFilter

	listeners     []netman.Listener
	bootstrapping atomic.Bool
	updates       *clientapi.Publisher
}

// Flush implements attachment.RecordStoreFlusher: it persists both
// record stores to the node's table store (spec §4.6), adapting
// Storage.Flush's TableStore parameter to the no-arg shape the
// attachment tick calls on its fixed cadence.
func (n *Node) Flush() error {
	return n.Storage.Flush(n.TableStore)
}

// RefreshPeerMinimum runs one bootstrap round in the background, unless
// one is already in flight (spec §4.1 tick's peer-minimum-refresh step;
// meant to be passed as attachment.NewManager's onNeedsPeerMinimum
// callback, and is also what Start's initial bootstrap call goes
// through, so the two never race each other).
func (n *Node) RefreshPeerMinimum(ctx context.Context) {
	if !n.bootstrapping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer n.bootstrapping.Store(false)
		n.runBootstrap(ctx)
	}()
}

// New builds every collaborator from cfg but does not yet start network
// I/O; call Start (directly, or through an attachment.Manager) for that.
// updates may be nil; when set, it is shared with the RPC processor so a
// send failure or question timeout is also pushed out as a client "log"
// update (spec §6) instead of only reaching the process's own log output.
func New(cfg *config.Config, localNodeIDs crypto.TypedKeyGroup, dataDir string, updates *clientapi.Publisher, logger log.Logger) (*Node, error) {
	if logger == nil {
		logger = log.New("component", "node")
	}

	c := crypto.New(1024)

	ts, err := tablestore.Open(filepath.Join(dataDir, cfg.Stores.TableStoreDirectory))
	if err != nil {
		return nil, fmt.Errorf("node: opening table store: %w", err)
	}
	ps, err := protectedstore.Open(filepath.Join(dataDir, cfg.Stores.ProtectedStoreDirectory), cfg.Stores.AllowInsecureFallback, cfg.Stores.AlwaysUseInsecureStorage)
	if err != nil {
		return nil, fmt.Errorf("node: opening protected store: %w", err)
	}

	rt := routingtable.New(c, wireformat.NodeInfoEncoder{}, localNodeIDs, cfg.Network.DHT.MinPeerCount, time.Duration(cfg.Network.DHT.MinPeerRefreshTimeMs)*time.Millisecond)

	n := &Node{
		cfg:            cfg,
		log:            logger,
		Crypto:         c,
		LocalNodeIDs:   localNodeIDs,
		TableStore:     ts,
		ProtectedStore: ps,
		RoutingTable:   rt,
		Receipts:       receipt.NewManager(),
		updates:        updates,
	}

	connCfg := netman.Config{
		InactivityTimeout: time.Duration(cfg.Network.ConnectionInactivityTimeoutMs) * time.Millisecond,
	}
	dialers := []netman.Dialer{proto.TCPDialer{}, proto.UDPDialer{}, proto.WSDialer{}, proto.WSDialer{TLS: true}}
	filter := addrfilter.New(addrfilter.Config{
		MaxConnectionsPerIP4:           cfg.AddressFilter.MaxConnectionsPerIP4,
		MaxConnectionsPerIP6Prefix:     cfg.AddressFilter.MaxConnectionsPerIP6Prefix,
		MaxConnectionsPerIP6PrefixSize: cfg.AddressFilter.MaxConnectionsPerIP6PrefixSize,
		MaxConnectionFrequencyPerMin:   cfg.AddressFilter.MaxConnectionFrequencyPerMin,
	})
	n.ConnMgr = netman.NewConnectionManager(connCfg, dialers, n, filter, logger)
	n.AddrFilter = filter
	n.NetworkMgr = netman.NewNetworkManager(n.ConnMgr, types.RoutingDomainPublicInternet)

	var rpcUpdates rpc.Publisher
	if updates != nil {
		rpcUpdates = updates
	}

	n.RouteSpec = routespec.New(c, rt, crypto.KindVLD0, cfg.Network.RPC.MaxRouteHopCount, logger)
	n.Processor = rpc.NewProcessor(n.NetworkMgr, RLPCodec{}, time.Duration(cfg.Network.RPC.TimeoutMs)*time.Millisecond, rpcUpdates, logger)
	n.Storage = storage.NewManager(c, rt, n.Processor, n.RouteSpec, n.NetworkMgr, cfg.Network.DHT, logger)

	return n, nil
}

// PingDue sends a status question to every overdue entry (spec §4.7's
// ping-due liveness check); it is meant to be passed as
// attachment.NewManager's onPingDue callback. Each ask runs in its own
// goroutine so one unreachable peer can't delay the others.
func (n *Node) PingDue(candidates []routingtable.PingCandidate) {
	for _, cand := range candidates {
		target, ok := cand.NodeRef.NodeIDs().Get(crypto.KindVLD0)
		if !ok {
			continue
		}
		cand := cand
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(n.cfg.Network.RPC.TimeoutMs)*time.Millisecond)
			defer cancel()
			res := n.Processor.Ask(ctx, cand.NodeRef, rpc.OpStatusQ, nil, rpc.Direct(target, rpc.Unsafe(rpc.SequencingNoPreference)), n.RouteSpec)
			if !res.IsValue() {
				n.log.Debug("node: status ping failed", "result", res.String())
			}
		}()
	}
}

// HandleFrame implements netman.InboundHandler: every inbound frame is
// decoded and handed to the RPC processor, whose own dispatch table
// answers/handles it. Until operation handlers are registered here this
// only completes Answer correlation (Dispatch's MessageAnswer branch),
// which is enough for the Storage Manager's outbound fanout to see its
// own replies land.
func (n *Node) HandleFrame(ctx context.Context, desc types.ConnectionDescriptor, frame []byte) error {
	msg, err := RLPCodec{}.Decode(frame)
	if err != nil {
		return fmt.Errorf("node: decoding inbound frame from %s: %w", desc.Remote.String(), err)
	}
	return n.Processor.Dispatch(msg, nil)
}

// Start implements attachment.Network: it opens every configured
// protocol listener and begins accepting inbound connections.
func (n *Node) Start(ctx context.Context) error {
	n.listeners = n.listeners[:0]
	listenCfgs := []struct {
		protocol types.Protocol
		cfg      config.ProtocolConfig
	}{
		{types.ProtocolUDP, n.cfg.Network.Protocol.UDP},
		{types.ProtocolTCP, n.cfg.Network.Protocol.TCP},
		{types.ProtocolWS, n.cfg.Network.Protocol.WS},
	}
	for _, lc := range listenCfgs {
		if !lc.cfg.Listen {
			continue
		}
		l, err := n.listen(ctx, lc.protocol, lc.cfg)
		if err != nil {
			n.Stop()
			return fmt.Errorf("node: listening on %s: %w", lc.protocol, err)
		}
		n.listeners = append(n.listeners, l)
		n.acceptLoop(ctx, l)
	}
	if len(n.cfg.Network.Bootstrap) > 0 {
		n.RefreshPeerMinimum(ctx)
	}
	return nil
}

// runBootstrap drives one bootstrap round (spec §4.1's bootstrap step).
// Only called through RefreshPeerMinimum, which guards against two
// rounds running concurrently.
func (n *Node) runBootstrap(ctx context.Context) {
	if err := n.Bootstrap(ctx, types.RoutingDomainPublicInternet); err != nil {
		n.log.Warn("node: bootstrap failed", "err", err)
	}
}

func (n *Node) listen(ctx context.Context, protocol types.Protocol, pc config.ProtocolConfig) (netman.Listener, error) {
	switch protocol {
	case types.ProtocolTCP:
		return proto.NewTCPListener(ctx, pc.ListenAddress)
	case types.ProtocolUDP:
		return proto.NewUDPListener(pc.ListenAddress)
	case types.ProtocolWS:
		l := proto.NewWSListener(protocol, pc.ListenAddress, pc.Path)
		go func() {
			if err := l.Serve(); err != nil && ctx.Err() == nil {
				n.log.Debug("node: ws listener stopped", "err", err)
			}
		}()
		return l, nil
	default:
		return nil, fmt.Errorf("node: unsupported listen protocol %s", protocol)
	}
}

func (n *Node) acceptLoop(ctx context.Context, l netman.Listener) {
	go func() {
		for {
			conn, err := l.Accept(ctx)
			if err != nil {
				n.log.Debug("node: listener accept stopped", "protocol", l.Protocol(), "err", err)
				return
			}
			n.ConnMgr.OnAcceptedProtocolNetworkConnection(conn)
		}
	}()
}

// Stop implements attachment.Network: it closes every listener and stops
// the connection manager's per-connection loops.
func (n *Node) Stop() {
	for _, l := range n.listeners {
		l.Close()
	}
	n.listeners = nil
	n.ConnMgr.Stop()
	n.ConnMgr.Join()
}

// Tick implements attachment.Network. A changed public address would be
// the trigger to request a restart (spec §4.7), but public-address
// detection isn't wired in yet and the Connection Manager beneath this
// node isn't built to be restarted once stopped, so this conservatively
// never requests one. It does update the NetworkMgr's online flag from
// live connection count, which is what drives the attachment tick's
// offline-write flush on reconnect (spec §9), and publishes a "network"
// client update (spec §6) carrying that same online flag, the
// routing table's aggregated transfer rate, and the live peer count.
func (n *Node) Tick(ctx context.Context, now time.Time) (bool, error) {
	online := len(n.ConnMgr.Connections()) > 0
	n.NetworkMgr.SetOnline(online)
	if n.updates != nil {
		down, up := n.RoutingTable.AggregateTransferRates()
		n.updates.Network(online, int64(down), int64(up), n.RoutingTable.EntryCount())
	}
	return false, nil
}

// Close releases the node's on-disk stores. Call after the attachment
// manager's Run has returned.
func (n *Node) Close() error {
	if err := n.TableStore.Close(); err != nil {
		return err
	}
	return nil
}
