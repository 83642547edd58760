package solver

import "container/heap"

type node struct {
	fixed []int8
	bound float64 // relaxation bound of the parent
	seq   int
}

// frontier holds the open nodes: a stack while diving for the first
// incumbent, then a queue ordered by parent bound.
type frontier struct {
	dive  []node
	queue nodeQueue
	seq   int
}

func (f *frontier) push(n node, diving bool) {
	f.seq++
	n.seq = f.seq
	if diving {
		f.dive = append(f.dive, n)
		return
	}
	heap.Push(&f.queue, n)
}

func (f *frontier) pop() (node, bool) {
	if k := len(f.dive); k > 0 {
		n := f.dive[k-1]
		f.dive = f.dive[:k-1]
		return n, true
	}
	if f.queue.Len() == 0 {
		return node{}, false
	}
	return heap.Pop(&f.queue).(node), true
}

// settle moves whatever is left of the dive into the best-bound queue
func (f *frontier) settle() {
	for _, n := range f.dive {
		heap.Push(&f.queue, n)
	}
	f.dive = nil
}

// nodeQueue is a max-heap on bound; equal bounds pop in push order
type nodeQueue []node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound > q[j].bound
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
