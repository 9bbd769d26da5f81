package driver

import (
	"github.com/wippyai/binder"
)

// nodeTable is the handle -> node map. It is not safe for concurrent use;
// the driver serializes access.
type nodeTable struct {
	entries  []node
	freeList []binder.Handle
	live     int
}

type node struct {
	object   Object
	watchers []binder.DeathNotifiee
	strong   int32
	weak     int32
	dead     bool
	valid    bool
}

func newNodeTable() *nodeTable {
	return &nodeTable{
		entries:  make([]node, 0, 64),
		freeList: make([]binder.Handle, 0, 16),
	}
}

func (t *nodeTable) insert(obj Object) binder.Handle {
	n := node{
		object: obj,
		valid:  true,
	}
	t.live++

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = n
		return h
	}

	t.entries = append(t.entries, n)
	return binder.Handle(len(t.entries))
}

// get returns the node for h, or nil if h is not in use.
func (t *nodeTable) get(h binder.Handle) *node {
	if h == 0 {
		return nil
	}
	idx := int(h) - 1
	if idx >= len(t.entries) {
		return nil
	}
	n := &t.entries[idx]
	if !n.valid {
		return nil
	}
	return n
}

// release frees h if its node is dead and unreferenced.
func (t *nodeTable) release(h binder.Handle) bool {
	n := t.get(h)
	if n == nil || !n.dead || n.strong > 0 || n.weak > 0 {
		return false
	}
	t.entries[h-1] = node{}
	t.freeList = append(t.freeList, h)
	t.live--
	return true
}

func (t *nodeTable) each(fn func(binder.Handle, *node) bool) {
	for i := range t.entries {
		if t.entries[i].valid {
			if !fn(binder.Handle(i+1), &t.entries[i]) {
				return
			}
		}
	}
}

func removeNotifiee(list []binder.DeathNotifiee, n binder.DeathNotifiee) ([]binder.DeathNotifiee, bool) {
	for i, x := range list {
		if x == n {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
