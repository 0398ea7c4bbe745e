package workflows

import "sort"

// SortedMapKeys returns the keys of a map in ascending order. Map iteration
// order is random, so workflow code that logs or dispatches per key must
// sort first to replay identically.
func SortedMapKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

// ChunkIDs splits ids into consecutive chunks of at most size elements,
// dropping duplicates and keeping first-seen order. The input is not modified.
func ChunkIDs(ids []int64, size int) [][]int64 {
	if size < 1 {
		size = 1
	}
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	chunks := make([][]int64, 0, (len(unique)+size-1)/size)
	for start := 0; start < len(unique); start += size {
		end := min(start+size, len(unique))
		chunks = append(chunks, unique[start:end:end])
	}
	return chunks
}
