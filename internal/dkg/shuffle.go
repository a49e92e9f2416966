package dkg

import "math/rand"

// shuffleKeys returns a randomized copy of keys: SearchEdges issues its
// replication-key lookups in shuffled order so concurrent searchers
// spread load across the replica set.
func shuffleKeys(keys []uint32) []uint32 {
	out := make([]uint32, len(keys))
	copy(out, keys)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
