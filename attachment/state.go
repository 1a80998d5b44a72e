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

// Package attachment implements the Attachment Manager (spec §4.7): the
// supervisor task driving network start/stop and the 1-second tick loop
// that recomputes attachment state from routing-table health.
package attachment

import "github.com/dbasu/corenet/routingtable"

// State is one point on the attachment lifecycle (spec §4.7).
type State uint8

const (
	Detached State = iota
	Attaching
	AttachedWeak
	AttachedGood
	AttachedStrong
	FullyAttached
	OverAttached
	Detaching
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attaching:
		return "attaching"
	case AttachedWeak:
		return "attached-weak"
	case AttachedGood:
		return "attached-good"
	case AttachedStrong:
		return "attached-strong"
	case FullyAttached:
		return "fully-attached"
	case OverAttached:
		return "over-attached"
	case Detaching:
		return "detaching"
	default:
		return "unknown"
	}
}

// IsAttached reports whether s is any attached (non-transitional,
// non-detached) state.
func (s State) IsAttached() bool {
	return s >= AttachedWeak && s <= OverAttached
}

// Thresholds are the limit_attached_* values from config.RoutingTableConfig
// (limit_attached_weak < good < strong < fully < over).
type Thresholds struct {
	Weak   int
	Good   int
	Strong int
	Fully  int
	Over   int
}

// classify maps routing-table health onto a target attachment state (spec
// §4.7): the weak threshold is satisfied by either reliable-or-unreliable
// entry counts; every higher threshold requires reliable counts alone.
func classify(h routingtable.HealthStats, t Thresholds) State {
	reliable := h.ReliableEntryCount
	combined := h.ReliableEntryCount + h.UnreliableEntryCount

	switch {
	case reliable >= t.Over:
		return OverAttached
	case reliable >= t.Fully:
		return FullyAttached
	case reliable >= t.Strong:
		return AttachedStrong
	case reliable >= t.Good:
		return AttachedGood
	case combined >= t.Weak:
		return AttachedWeak
	default:
		return Attaching
	}
}
