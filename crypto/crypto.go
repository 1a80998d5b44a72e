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

package crypto

// Crypto is the aggregator mapping each CryptoKind to its System
// implementation plus that kind's DH cache. All crypto operations in the
// rest of the codebase go through a *Crypto; nothing else constructs a
// System directly or branches on CryptoKind.
type Crypto struct {
	systems map[CryptoKind]System
	dhCache map[CryptoKind]*DHCache
}

// New builds a Crypto aggregator with the default kind set (VLD0, SECP)
// and a DH cache of dhCacheSize entries per kind.
func New(dhCacheSize int) *Crypto {
	c := &Crypto{
		systems: make(map[CryptoKind]System),
		dhCache: make(map[CryptoKind]*DHCache),
	}
	c.Register(NewVLD0())
	c.Register(NewSECP())
	for _, k := range ValidCryptoKinds {
		c.dhCache[k] = NewDHCache(dhCacheSize)
	}
	return c
}

// Register installs or replaces the System for sys.Kind().
func (c *Crypto) Register(sys System) {
	c.systems[sys.Kind()] = sys
}

// System returns the System for kind, or an error if unsupported.
func (c *Crypto) System(kind CryptoKind) (System, error) {
	sys, ok := c.systems[kind]
	if !ok {
		return nil, &ErrUnsupportedKind{Kind: kind}
	}
	return sys, nil
}

// BestSystem returns the System for BestCryptoKind().
func (c *Crypto) BestSystem() System {
	sys, err := c.System(BestCryptoKind())
	if err != nil {
		panic("crypto: default kind unregistered")
	}
	return sys
}

// CachedDH performs a DH exchange under kind, using that kind's shared
// cache.
func (c *Crypto) CachedDH(kind CryptoKind, publicKey TypedKey, secretKey TypedSecret) ([32]byte, error) {
	sys, err := c.System(kind)
	if err != nil {
		return [32]byte{}, err
	}
	return sys.CachedDH(c.dhCache[kind], publicKey, secretKey)
}

// SupportedKinds returns the kinds this aggregator has a System for, in
// ValidCryptoKinds order.
func (c *Crypto) SupportedKinds() []CryptoKind {
	out := make([]CryptoKind, 0, len(ValidCryptoKinds))
	for _, k := range ValidCryptoKinds {
		if _, ok := c.systems[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// GenerateKeyPair generates a keypair under the best supported kind.
func (c *Crypto) GenerateKeyPair() (TypedKeyPair, error) {
	return c.BestSystem().GenerateKeyPair()
}

// GenerateKeyPairForKind generates a keypair under a specific kind.
func (c *Crypto) GenerateKeyPairForKind(kind CryptoKind) (TypedKeyPair, error) {
	sys, err := c.System(kind)
	if err != nil {
		return TypedKeyPair{}, err
	}
	return sys.GenerateKeyPair()
}
