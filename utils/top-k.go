package utils

type valIdx struct {
	val   float64
	index int
}

// TopK returns the indices of the k largest values, largest first. Ties
// keep the lower index first.
func TopK(vals []float64, k int) []int {
	k = min(k, len(vals))
	if k <= 0 {
		return []int{}
	}

	// min-heap of the best k seen so far
	heap := make([]valIdx, 0, k)
	for i := range k {
		heap = append(heap, valIdx{vals[i], i})
	}
	for i := k/2 - 1; i >= 0; i-- {
		siftDown(heap, i)
	}
	for i := k; i < len(vals); i++ {
		if vals[i] > heap[0].val {
			heap[0] = valIdx{vals[i], i}
			siftDown(heap, 0)
		}
	}

	// pop in ascending order, fill from the back
	ret := make([]int, k)
	for n := k; n > 0; n-- {
		ret[n-1] = heap[0].index
		heap[0] = heap[n-1]
		heap = heap[:n-1]
		siftDown(heap, 0)
	}
	return ret
}

// less orders the heap so that the root is the entry to evict first
func less(a, b valIdx) bool {
	if a.val != b.val {
		return a.val < b.val
	}
	return a.index > b.index
}

func siftDown(heap []valIdx, root int) {
	end := len(heap) - 1
	for {
		child := root*2 + 1
		if child > end {
			return
		}
		if child+1 <= end && less(heap[child+1], heap[child]) {
			child++
		}
		if !less(heap[child], heap[root]) {
			return
		}
		heap[root], heap[child] = heap[child], heap[root]
		root = child
	}
}
