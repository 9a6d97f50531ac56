package scan

import "fmt"

// IndexRange is an inclusive range of owner token indexes.
type IndexRange struct {
	From uint64
	To   uint64
}

// Len is the number of indexes in the range.
func (r IndexRange) Len() int {
	return int(r.To - r.From + 1)
}

// SplitRange splits an index range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]IndexRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to index must be >= from index")
	}

	ranges := make([]IndexRange, 0, (to-from)/batchSize+1)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, IndexRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
