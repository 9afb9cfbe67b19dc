package staticptr

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/rawbytedev/staticptr/internal/common"
)

// Optional lifecycle hooks. A stored type may implement any subset of these
// (on its pointer receiver); the operation table picks them up once per type.
// Types implementing none of them are relocated bitwise, which is correct for
// any Go value that does not track its own identity or address.

// Mover is the move-construct hook: the receiver is fresh, zeroed storage and
// must take over the state of src (a pointer to the same concrete type). The
// source object stays live afterwards; teardown is a separate step.
type Mover interface {
	MoveFrom(src any)
}

// Assigner is the move-assign hook: the receiver is a live value that must
// absorb the state of src (a pointer to the same concrete type), releasing
// whatever it held before. The source object stays live afterwards.
type Assigner interface {
	AssignFrom(src any)
}

// Destroyer is the teardown hook, run before storage is released or reused.
// It must not fail; there is no channel for a teardown error. A type whose
// teardown releases resources should also implement Mover and Assigner to
// drain the source object, because bitwise relocation leaves the source
// intact and Destroy still runs on it afterwards.
type Destroyer interface {
	Destroy()
}

type binaryOp func(dst, src unsafe.Pointer)
type unaryOp func(p unsafe.Pointer)

// opsTable is the per-concrete-type relocation record. Exactly one table
// exists per stored type; tables are compared by pointer to detect the
// same-type relocation fast path.
type opsTable struct {
	typ      reflect.Type
	size     int
	pointers bool

	relocateConstruct binaryOp // dst uninitialized, src live
	relocateAssign    binaryOp // dst and src both live
	destroy           unaryOp  // p live; storage zeroed afterwards
}

var tables = struct {
	mu sync.RWMutex
	m  map[reflect.Type]*opsTable
}{m: make(map[reflect.Type]*opsTable)}

// tableFor returns the relocation table for the concrete type t, building
// and caching it on first use.
func tableFor(t reflect.Type) *opsTable {
	tables.mu.RLock()
	if tab, ok := tables.m[t]; ok {
		tables.mu.RUnlock()
		return tab
	}
	tables.mu.RUnlock()

	tables.mu.Lock()
	defer tables.mu.Unlock()

	// Double-check
	if tab, ok := tables.m[t]; ok {
		return tab
	}
	tab := buildTable(t)
	tables.m[t] = tab
	return tab
}

var (
	moverType     = reflect.TypeOf((*Mover)(nil)).Elem()
	assignerType  = reflect.TypeOf((*Assigner)(nil)).Elem()
	destroyerType = reflect.TypeOf((*Destroyer)(nil)).Elem()
)

func buildTable(t reflect.Type) *opsTable {
	pt := reflect.PointerTo(t)
	canMove := pt.Implements(moverType)
	canAssign := pt.Implements(assignerType)
	canDestroy := pt.Implements(destroyerType)

	tab := &opsTable{
		typ:      t,
		size:     int(t.Size()),
		pointers: common.HasPointers(t),
	}

	// ref builds a typed *T view over raw storage for hook dispatch.
	ref := func(p unsafe.Pointer) any {
		return reflect.NewAt(t, p).Interface()
	}

	switch {
	case canMove:
		tab.relocateConstruct = func(dst, src unsafe.Pointer) {
			common.Memzero(dst, tab.size)
			ref(dst).(Mover).MoveFrom(ref(src))
		}
	case canAssign:
		// no move hook: default-construct, then move-assign
		tab.relocateConstruct = func(dst, src unsafe.Pointer) {
			common.Memzero(dst, tab.size)
			ref(dst).(Assigner).AssignFrom(ref(src))
		}
	default:
		tab.relocateConstruct = func(dst, src unsafe.Pointer) {
			common.Memcopy(dst, src, tab.size)
		}
	}

	if canDestroy {
		tab.destroy = func(p unsafe.Pointer) {
			ref(p).(Destroyer).Destroy()
			common.Memzero(p, tab.size)
		}
	} else {
		tab.destroy = func(p unsafe.Pointer) {
			common.Memzero(p, tab.size)
		}
	}

	switch {
	case canAssign:
		tab.relocateAssign = func(dst, src unsafe.Pointer) {
			ref(dst).(Assigner).AssignFrom(ref(src))
		}
	case canMove || canDestroy:
		// no assign hook: tear down the target, then move-construct
		tab.relocateAssign = func(dst, src unsafe.Pointer) {
			tab.destroy(dst)
			tab.relocateConstruct(dst, src)
		}
	default:
		tab.relocateAssign = func(dst, src unsafe.Pointer) {
			common.Memcopy(dst, src, tab.size)
		}
	}

	return tab
}
