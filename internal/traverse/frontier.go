package traverse

import (
	"container/list"

	"github.com/elliotchance/orderedmap/v2"
)

// Frontier is the FIFO queue of containers awaiting expansion. It is the
// BFS work queue: roots are seeded at the front of the walk, discovered
// sub-containers go on the back, so expansion proceeds level by level.
type Frontier struct {
	queue *list.List
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue: list.New(),
	}
}

// Enqueue adds a container to the back of the frontier.
func (f *Frontier) Enqueue(ref ContainerRef) {
	f.queue.PushBack(ref)
}

// Dequeue removes and returns the container at the front of the frontier.
// Returns false if the frontier is empty.
func (f *Frontier) Dequeue() (ContainerRef, bool) {
	if f.queue.Len() == 0 {
		return "", false
	}
	elem := f.queue.Front()
	f.queue.Remove(elem)
	return elem.Value.(ContainerRef), true
}

// Len returns the number of containers awaiting expansion.
func (f *Frontier) Len() int {
	return f.queue.Len()
}

// IsEmpty returns true if the frontier has no containers.
func (f *Frontier) IsEmpty() bool {
	return f.queue.Len() == 0
}

// VisitedSet records containers that have already been expanded. It is the
// cycle guard: a ref present here is skipped when dequeued again. Insertion
// order is preserved so diagnostics can report the expansion sequence.
type VisitedSet struct {
	m *orderedmap.OrderedMap[ContainerRef, int]
}

// NewVisitedSet creates an empty visited set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		m: orderedmap.NewOrderedMap[ContainerRef, int](),
	}
}

// Contains reports whether the container has already been expanded.
func (v *VisitedSet) Contains(ref ContainerRef) bool {
	_, ok := v.m.Get(ref)
	return ok
}

// Add records a container as expanded, remembering its expansion index.
func (v *VisitedSet) Add(ref ContainerRef) {
	if _, ok := v.m.Get(ref); ok {
		return
	}
	v.m.Set(ref, v.m.Len())
}

// Len returns the number of expanded containers.
func (v *VisitedSet) Len() int {
	return v.m.Len()
}

// Order returns the containers in the order they were expanded.
func (v *VisitedSet) Order() []ContainerRef {
	refs := make([]ContainerRef, 0, v.m.Len())
	for el := v.m.Front(); el != nil; el = el.Next() {
		refs = append(refs, el.Key)
	}
	return refs
}
