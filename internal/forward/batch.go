package forward

import "forwardbot/internal/transport"

// splitBatches partitions targets into contiguous groups of at most size,
// preserving input order. The returned slices alias the input; callers must
// not mutate the target list during a run.
func splitBatches(targets []transport.ChatTarget, size int) [][]transport.ChatTarget {
	if size <= 0 {
		size = defaultBatchSize
	}
	if len(targets) == 0 {
		return nil
	}
	batches := make([][]transport.ChatTarget, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := start + size
		if end > len(targets) {
			end = len(targets)
		}
		batches = append(batches, targets[start:end])
	}
	return batches
}
