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

package node

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dbasu/corenet/crypto"
	"github.com/dbasu/corenet/routingtable"
	"github.com/dbasu/corenet/rpc"
	"github.com/dbasu/corenet/types"
)

// rlpFindNodeQ is a find_node question body: the typed key being sought.
type rlpFindNodeQ struct {
	TargetKind  [4]byte
	TargetValue [32]byte
}

// rlpFindNodeA is a find_node answer body: the closest peers the
// responder knows of, in the same "<protocol>|<address>[|<path>]@<nodeid>"
// form bootstrap entries use, so a receiver can register them with the
// exact same parse path.
type rlpFindNodeA struct {
	Peers []string
}

// encodeFindNodeQ and decodeFindNodeA are this node's half of the
// find_node wire protocol: the half Bootstrap uses to ask. The inverse
// pair (decodeFindNodeQ/encodeFindNodeA) belongs to an answering side
// that has no home yet (see HandleFrame's doc comment: Dispatch is
// wired with no operation handlers anywhere in the tree), so they are
// not written speculatively here.
func encodeFindNodeQ(target crypto.TypedKey) ([]byte, error) {
	return rlp.EncodeToBytes(&rlpFindNodeQ{TargetKind: target.Kind, TargetValue: target.Value})
}

func decodeFindNodeA(body []byte) ([]types.NodeDialInfo, error) {
	var w rlpFindNodeA
	if err := rlp.DecodeBytes(body, &w); err != nil {
		return nil, err
	}
	out := make([]types.NodeDialInfo, 0, len(w.Peers))
	for _, s := range w.Peers {
		ndi, err := types.ParseNodeDialInfo(s)
		if err != nil {
			continue
		}
		out = append(out, ndi)
	}
	return out, nil
}

// registerBootstrapEntry admits a bootstrap-list entry as an unsigned,
// trusted, inbound-capable peer (spec §4.1: "register each entry as
// InboundCapable with empty outbound protocols"). Bootstrap entries carry
// no signature to validate, so this is the one caller in the tree that
// passes allowInvalid=true to RegisterNodeWithPeerInfo.
func (n *Node) registerBootstrapEntry(domain types.RoutingDomain, key crypto.TypedKey, dials []types.DialInfo) *routingtable.NodeRef {
	pi := &types.PeerInfo{
		NodeIDs: crypto.TypedKeyGroup{key},
		SignedNodeInfo: types.SignedNodeInfo{
			NodeInfo: types.NodeInfo{
				NetworkClass:   types.NetworkClassInboundCapable,
				DialInfoDetail: dials,
			},
		},
	}
	return n.RoutingTable.RegisterNodeWithPeerInfo(domain, pi, true)
}

// askFindNode issues a find_node question for target against ref and
// returns whatever peers came back in the answer.
func (n *Node) askFindNode(ctx context.Context, ref *routingtable.NodeRef, target crypto.TypedKey) []types.NodeDialInfo {
	body, err := encodeFindNodeQ(target)
	if err != nil {
		n.log.Debug("node: encoding find_node question", "err", err)
		return nil
	}
	dest := rpc.Direct(target, rpc.Unsafe(rpc.SequencingNoPreference))
	res := n.Processor.Ask(ctx, ref, rpc.OpFindNodeQ, body, dest, n.RouteSpec)
	msg, ok := res.Unwrap()
	if !ok {
		n.log.Debug("node: find_node question failed", "result", res.String())
		return nil
	}
	peers, err := decodeFindNodeA(msg.Body)
	if err != nil {
		n.log.Debug("node: decoding find_node answer", "err", err)
		return nil
	}
	return peers
}

// Bootstrap implements the bootstrap operation (spec §4.1): parse the
// configured bootstrap list, register each entry, then issue a reverse
// find_node (ask each bootstrap node for our own ID) and repeat against
// every neighbor that comes back, so the routing table seeds itself from
// a handful of well-known addresses instead of only from prior state.
func (n *Node) Bootstrap(ctx context.Context, domain types.RoutingDomain) error {
	if len(n.cfg.Network.Bootstrap) == 0 {
		return nil
	}
	grouped, err := routingtable.ParseBootstrapList(n.cfg.Network.Bootstrap)
	if err != nil {
		return fmt.Errorf("node: parsing bootstrap list: %w", err)
	}

	localTarget, ok := n.LocalNodeIDs.Get(crypto.KindVLD0)
	if !ok {
		return fmt.Errorf("node: no local node id configured to bootstrap with")
	}

	seen := make(map[crypto.TypedKey]bool)
	var frontier []*routingtable.NodeRef
	for keyStr, dials := range grouped {
		key, err := types.ParseTypedKey(keyStr)
		if err != nil {
			n.log.Debug("node: skipping bootstrap entry with unparseable node id", "id", keyStr, "err", err)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		ref := n.registerBootstrapEntry(domain, key, dials)
		if ref == nil {
			continue
		}
		frontier = append(frontier, ref)
	}

	for len(frontier) > 0 {
		ref := frontier[0]
		frontier = frontier[1:]

		if _, ok := ref.NodeIDs().Get(crypto.KindVLD0); !ok {
			ref.Release()
			continue
		}

		peers := n.askFindNode(ctx, ref, localTarget)
		ref.Release()
		for _, p := range peers {
			if seen[p.NodeID] {
				continue
			}
			seen[p.NodeID] = true
			neighbor := n.registerBootstrapEntry(domain, p.NodeID, []types.DialInfo{p.DialInfo})
			if neighbor == nil {
				continue
			}
			frontier = append(frontier, neighbor)
		}
	}
	return nil
}
