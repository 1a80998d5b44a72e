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

package routingtable

import (
	"sync"

	"github.com/dbasu/corenet/crypto"
)

// NodeRef is a reference-counted handle into a BucketEntry (spec §9:
// "node refs are reference-counted views into bucket entries"). Holding a
// NodeRef keeps its entry from being evicted by bucket grooming; callers
// must call Release when done.
type NodeRef struct {
	once  sync.Once
	table *RoutingTable
	entry *BucketEntry
}

func newNodeRef(table *RoutingTable, entry *BucketEntry) *NodeRef {
	entry.ref()
	return &NodeRef{table: table, entry: entry}
}

// Entry exposes the underlying BucketEntry for read/write access.
func (n *NodeRef) Entry() *BucketEntry { return n.entry }

// NodeIDs returns the referenced entry's node-ID set.
func (n *NodeRef) NodeIDs() crypto.TypedKeyGroup { return n.entry.NodeIDs() }

// Release drops this handle's reference. Safe to call more than once.
func (n *NodeRef) Release() {
	n.once.Do(func() {
		n.entry.unref()
	})
}

// Clone returns a new NodeRef to the same entry, incrementing the count.
func (n *NodeRef) Clone() *NodeRef {
	return newNodeRef(n.table, n.entry)
}
