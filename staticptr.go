// Package staticptr holds one polymorphic value inline, in a fixed-size
// buffer, instead of behind a heap allocation. A Ptr[I] owns room for a
// single value satisfying the interface I and relocates, replaces and tears
// down occupants through a small per-type operation table, so churning
// through many short-lived implementations of I costs no allocator traffic.
package staticptr

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/staticptr/internal/common"
)

var (
	ErrNilValue     = errors.New("staticptr: nil value")
	ErrCapacity     = errors.New("staticptr: value exceeds capacity")
	ErrIncompatible = errors.New("staticptr: incompatible value type")
)

// inlineWords covers DefaultCapacity bytes without spilling.
const inlineWords = DefaultCapacity / 8

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Ptr is a move-only inline container for one value satisfying the interface
// I. The zero value is empty and ready to use. Storage capacity comes from
// the capacity registry (see Capacity) and is captured on first emplace;
// capacities above DefaultCapacity use a spill buffer allocated once per
// container, never per value.
//
// Ptr must not be copied after first use; transfer ownership with MoveFrom or
// Transfer instead (go vet flags copies). It is not synchronized: concurrent
// mutation of one Ptr is a data race the caller must prevent.
//
// Stored values whose type carries Go pointers are pinned: the emplaced value
// is retained so heap objects reachable from the stored copy stay alive.
// Pointer fields reassigned in place through the value returned by Get are
// outside the pin; the caller must keep such replacements alive elsewhere.
type Ptr[I any] struct {
	noCopy noCopy

	ops      *opsTable
	pin      any
	capacity int // bytes, 0 until first emplace
	spill    []uint64
	inline   [inlineWords]uint64
}

// Make returns a new container holding v, the one-step construction path.
func Make[I any](v I) (*Ptr[I], error) {
	p := new(Ptr[I])
	if _, err := p.Emplace(v); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Ptr[I]) storage() unsafe.Pointer {
	if p.spill != nil {
		return unsafe.Pointer(&p.spill[0])
	}
	return unsafe.Pointer(&p.inline[0])
}

// ensure captures the container's capacity on first use and sets up spill
// storage when the registry asks for more than the inline buffer holds.
func (p *Ptr[I]) ensure() {
	if p.capacity != 0 {
		return
	}
	p.capacity = CapacityFor[I]()
	if p.capacity > DefaultCapacity {
		p.spill = make([]uint64, common.WordsFor(p.capacity))
	}
}

// view hands out the live occupant: for an interface I, an I whose dynamic
// type is a pointer into the container's storage; for a concrete I, a copy.
func (p *Ptr[I]) view() I {
	v := reflect.NewAt(p.ops.typ, p.storage()).Interface()
	if out, ok := v.(I); ok {
		return out
	}
	return reflect.ValueOf(v).Elem().Interface().(I)
}

// Emplace replaces the container's occupant with v. A pointer argument is
// dereferenced and the pointee stored, so the object itself lives inline.
// The returned I is a view over the stored object; type-assert it to reach
// the concrete type.
//
// An admission error (nil value, value too large) leaves the container
// unchanged. Once v is admitted the previous occupant is destroyed
// unconditionally; there is no rollback to it.
func (p *Ptr[I]) Emplace(v I) (I, error) {
	var zero I
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return zero, ErrNilValue
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return zero, ErrNilValue
		}
		rv = rv.Elem()
	}
	t := rv.Type()
	p.ensure()
	if sz := int(t.Size()); sz > p.capacity {
		return zero, fmt.Errorf("%w: %v needs %d bytes, capacity is %d", ErrCapacity, t, sz, p.capacity)
	}
	p.Reset()
	reflect.NewAt(t, p.storage()).Elem().Set(rv)
	p.ops = tableFor(t)
	if p.ops.pointers {
		p.pin = v
	}
	return p.view(), nil
}

// Reset destroys the occupant, if any, and leaves the container empty.
func (p *Ptr[I]) Reset() {
	if p.ops == nil {
		return
	}
	p.ops.destroy(p.storage())
	p.ops = nil
	p.pin = nil
}

// Close resets the container. It exists so a Ptr can sit behind io.Closer
// and a defer; the error is always nil.
func (p *Ptr[I]) Close() error {
	p.Reset()
	return nil
}

// Get returns the occupant as an I, or the zero I (nil for interface types)
// when the container is empty. It never constructs or destroys anything.
func (p *Ptr[I]) Get() I {
	if p.ops == nil {
		var zero I
		return zero
	}
	return p.view()
}

// Empty reports whether the container holds no value.
func (p *Ptr[I]) Empty() bool {
	return p.ops == nil
}

// Type returns the concrete type of the occupant, or nil when empty.
func (p *Ptr[I]) Type() reflect.Type {
	if p.ops == nil {
		return nil
	}
	return p.ops.typ
}

// Cap returns the container's storage capacity in bytes.
func (p *Ptr[I]) Cap() int {
	if p.capacity != 0 {
		return p.capacity
	}
	return CapacityFor[I]()
}

// Footprint returns the deep memory size of the occupant in bytes, or 0 when
// empty. See Sizeof.
func (p *Ptr[I]) Footprint() int {
	if p.ops == nil {
		return 0
	}
	return Sizeof(reflect.NewAt(p.ops.typ, p.storage()).Interface())
}

// MoveFrom moves the occupant of src into p, leaving src empty. Moving an
// empty source into an empty destination is a no-op; moving an empty source
// into an occupied destination just destroys the destination's occupant.
func (p *Ptr[I]) MoveFrom(src *Ptr[I]) error {
	return Transfer(p, src)
}

// Transfer moves the occupant of src, a container of a possibly different
// interface type, into dst. The occupant must satisfy I and fit dst's
// capacity; otherwise dst and src are left untouched and an error is
// returned. After a successful transfer src is empty.
//
// When both containers hold the same concrete type the value is move-assigned
// over the destination's occupant, skipping a destroy/construct cycle;
// otherwise the destination's occupant is destroyed first and the value is
// move-constructed into the vacated storage.
func Transfer[I, J any](dst *Ptr[I], src *Ptr[J]) error {
	if unsafe.Pointer(dst) == unsafe.Pointer(src) {
		return nil
	}
	if src.ops != nil {
		it := reflect.TypeOf((*I)(nil)).Elem()
		if it.Kind() == reflect.Interface {
			if !reflect.PointerTo(src.ops.typ).Implements(it) {
				return fmt.Errorf("%w: %v does not satisfy %v", ErrIncompatible, src.ops.typ, it)
			}
		} else if src.ops.typ != it {
			return fmt.Errorf("%w: container of %v cannot hold %v", ErrIncompatible, it, src.ops.typ)
		}
		dst.ensure()
		if src.ops.size > dst.capacity {
			return fmt.Errorf("%w: %v needs %d bytes, capacity is %d", ErrCapacity, src.ops.typ, src.ops.size, dst.capacity)
		}
	}

	switch {
	case src.ops == nil && dst.ops == nil:
		// both empty, nothing to do
	case src.ops == dst.ops:
		// same concrete type: assign over the live target, then tear down
		// the drained source
		tab := src.ops
		tab.relocateAssign(dst.storage(), src.storage())
		tab.destroy(src.storage())
		dst.pin = src.pin
		src.ops = nil
		src.pin = nil
	default:
		if dst.ops != nil {
			dst.ops.destroy(dst.storage())
			dst.ops = nil
			dst.pin = nil
		}
		if src.ops != nil {
			src.ops.relocateConstruct(dst.storage(), src.storage())
			src.ops.destroy(src.storage())
		}
		dst.ops = src.ops
		dst.pin = src.pin
		src.ops = nil
		src.pin = nil
	}
	return nil
}
