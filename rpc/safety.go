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

package rpc

import "github.com/dbasu/corenet/crypto"

// Sequencing controls whether a safety-routed message prefers an ordered
// (connection-oriented) path.
type Sequencing uint8

const (
	SequencingNoPreference Sequencing = iota
	SequencingPreferOrdered
	SequencingEnsureOrdered
)

// Stability controls whether route allocation prefers the fastest known
// hops or the most reliable ones.
type Stability uint8

const (
	StabilityLowLatency Stability = iota
	StabilityReliable
)

// SafetySpec parameterizes safety-route selection/allocation.
type SafetySpec struct {
	PreferredRoute *crypto.TypedKey // route public key to reuse, if any
	HopCount       int
	Stability      Stability
	Sequencing     Sequencing
}

// SafetySelection is either Unsafe(sequencing) or Safe(spec).
type SafetySelection struct {
	safe       bool
	sequencing Sequencing
	spec       SafetySpec
}

func Unsafe(sequencing Sequencing) SafetySelection {
	return SafetySelection{safe: false, sequencing: sequencing}
}

func Safe(spec SafetySpec) SafetySelection {
	return SafetySelection{safe: true, spec: spec}
}

func (s SafetySelection) IsSafe() bool           { return s.safe }
func (s SafetySelection) Sequencing() Sequencing { return s.sequencing }
func (s SafetySelection) Spec() SafetySpec       { return s.spec }
