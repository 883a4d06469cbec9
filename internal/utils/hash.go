package utils

import "hash/fnv"

// StableIndex maps key onto [0, n) using FNV-1a, so the same key always lands in the same slot.
func StableIndex(key string, n int) int {
	if n <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(n))
}
