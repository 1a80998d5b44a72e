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
	"fmt"
	"strings"

	"github.com/dbasu/corenet/types"
)

// ParseBootstrapList groups a list of "<protocol>|<address>[|<path>]@<nodeid>"
// strings (one per reachable address) by node ID, the format a bootstrap
// config file lists one entry per line.
func ParseBootstrapList(lines []string) (map[string][]types.DialInfo, error) {
	out := make(map[string][]types.DialInfo)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ndi, err := types.ParseNodeDialInfo(line)
		if err != nil {
			return nil, fmt.Errorf("routingtable: bad bootstrap entry %q: %w", line, err)
		}
		key := ndi.NodeID.String()
		out[key] = append(out[key], ndi.DialInfo)
	}
	return out, nil
}

// NeedsBootstrap reports whether the table is below minPeerCount and
// should attempt another bootstrap round (spec §4.1 tick: bootstrap step).
func (rt *RoutingTable) NeedsBootstrap() bool {
	return rt.EntryCount() < rt.minPeerCount
}
