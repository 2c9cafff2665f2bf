package syncer

import "fmt"

// Partition splits items into exactly workers contiguous slices whose concatenation equals items.
// Slice sizes differ by at most one and never increase: the first len(items)%workers slices
// carry one extra element. Slices beyond the item count are empty.
func Partition[T any](items []T, workers int) ([][]T, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", workers)
	}

	base := len(items) / workers
	extra := len(items) % workers

	parts := make([][]T, workers)
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < extra {
			size++
		}
		end := start + size
		part := make([]T, size)
		copy(part, items[start:end])
		parts[i] = part
		start = end
	}
	return parts, nil
}

// Chunk splits items into batches of at most size elements, preserving order.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", size)
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}
