package wake

import "container/heap"

// requestHeap implements container/heap.Interface for pending requests,
// sorted by At (earliest first).
type requestHeap []Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].seq < h[j].seq
	}

	return h[i].At.Before(h[j].At)
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(Request)) //nolint:forcetypeassert // Only Requests are pushed.
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}

// push adds a request, maintaining the heap invariant.
func (h *requestHeap) push(r Request) {
	heap.Push(h, r)
}

// pop removes and returns the earliest request. Panics if the heap is empty.
func (h *requestHeap) pop() Request {
	return heap.Pop(h).(Request) //nolint:forcetypeassert // Only Requests are pushed.
}

// removeByID removes the request with the given identifier.
// Returns true if it was found.
func (h *requestHeap) removeByID(id int) bool {
	for i, r := range *h {
		if r.ID == id {
			heap.Remove(h, i)

			return true
		}
	}

	return false
}
