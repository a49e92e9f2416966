// Package dkg implements the decentralized-knowledge-graph layer: content
// keying, the local knowledge-graph store, the DKG wire protocol (storage
// requests and triplet transfer), the edge-search coordinator, and the DKG
// Node orchestrator that ties them to one or more co-resident Skip Graphs.
package dkg

import (
	"crypto/sha1"
	"encoding/binary"
	"strconv"
)

// Content is a single indexable item: an opaque identifier (its content
// hash, typically) and its raw data.
type Content struct {
	Identifier []byte
	Data       []byte
}

// KeyStrategy, when its Custom list is non-nil, overrides Keys for every
// identifier: a test hook, modeled as an injectable override rather than a
// package-level mutable global so concurrent tests don't trample each
// other.
type KeyStrategy struct {
	Custom []uint32
}

// Keys derives the n replication keys for identifier:
// keys(identifier, n) = [ sha1(identifier || ascii_decimal(i)) mod 2^32 ].
// sha1 digests are 20 bytes; taking the big-endian integer mod 2^32 is the
// same as taking its low-order 4 bytes, which is what this does directly.
func Keys(identifier []byte, n int) []uint32 {
	if n <= 0 {
		return nil
	}
	keys := make([]uint32, n)
	for i := 0; i < n; i++ {
		h := sha1.New()
		h.Write(identifier)
		h.Write([]byte(strconv.Itoa(i)))
		sum := h.Sum(nil)
		keys[i] = binary.BigEndian.Uint32(sum[len(sum)-4:])
	}
	return keys
}

// KeysWith is Keys, but honors a KeyStrategy override when one is supplied
// (ks == nil or ks.Custom == nil falls through to the real derivation).
func KeysWith(ks *KeyStrategy, identifier []byte, n int) []uint32 {
	if ks != nil && ks.Custom != nil {
		return ks.Custom
	}
	return Keys(identifier, n)
}

// VerifyKey reports whether key is among the n replication keys derived
// from identifier.
func VerifyKey(identifier []byte, key uint32, n int) bool {
	for _, k := range Keys(identifier, n) {
		if k == key {
			return true
		}
	}
	return false
}
