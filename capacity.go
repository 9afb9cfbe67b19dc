package staticptr

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/DmitriyVTitov/size"
)

// DefaultCapacity is the floor for inline storage, in bytes. It matches the
// inline buffer of Ptr, so any interface type without an override stores its
// values with zero extra allocation.
const DefaultCapacity = 16

// Sizable is implemented by types that know their own deep memory size.
type Sizable interface {
	Size() int // memory size in bytes
}

type inheritedOverride struct {
	iface reflect.Type
	bytes int
}

// Capacity overrides are meant to be registered from init functions, before
// any Ptr of the affected interface type is used. A Ptr captures its capacity
// on first emplace and keeps it for life.
var capRegistry = struct {
	mu        sync.RWMutex
	exact     map[reflect.Type]int
	inherited []inheritedOverride
}{exact: make(map[reflect.Type]int)}

// SetCapacity overrides the storage capacity for exactly the type I.
// Types that embed or implement I are unaffected and keep computing their
// capacity from their own size. Registering twice replaces the earlier value.
func SetCapacity[I any](bytes int) {
	if bytes <= 0 {
		panic(fmt.Sprintf("staticptr: capacity override for %v must be positive, got %d", reflect.TypeOf((*I)(nil)).Elem(), bytes))
	}
	capRegistry.mu.Lock()
	defer capRegistry.mu.Unlock()
	capRegistry.exact[reflect.TypeOf((*I)(nil)).Elem()] = bytes
}

// SetInheritedCapacity overrides the storage capacity for the interface I and
// for every type whose method set satisfies I. I must be an interface type.
//
// When both an exact and an inherited override name the same interface, the
// exact one wins for that interface itself; subtypes see only the inherited
// one. When several inherited overrides match a type, the one with the larger
// method set wins, and ties go to the most recent registration.
func SetInheritedCapacity[I any](bytes int) {
	t := reflect.TypeOf((*I)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("staticptr: inherited capacity override needs an interface type, got %v", t))
	}
	if bytes <= 0 {
		panic(fmt.Sprintf("staticptr: capacity override for %v must be positive, got %d", t, bytes))
	}
	capRegistry.mu.Lock()
	defer capRegistry.mu.Unlock()
	capRegistry.inherited = append(capRegistry.inherited, inheritedOverride{iface: t, bytes: bytes})
}

// CapacityFor returns the inline storage capacity for the type I.
func CapacityFor[I any]() int {
	return Capacity(reflect.TypeOf((*I)(nil)).Elem())
}

// Capacity returns the inline storage capacity for t: an exact override if
// one is registered, else the best matching inherited override, else
// max(DefaultCapacity, sizeof(t)).
func Capacity(t reflect.Type) int {
	if t == nil {
		return DefaultCapacity
	}
	capRegistry.mu.RLock()
	defer capRegistry.mu.RUnlock()

	if n, ok := capRegistry.exact[t]; ok {
		return n
	}
	best := -1
	bytes := 0
	for _, ov := range capRegistry.inherited {
		if !satisfies(t, ov.iface) {
			continue
		}
		// later registrations win ties
		if m := ov.iface.NumMethod(); m >= best {
			best = m
			bytes = ov.bytes
		}
	}
	if best >= 0 {
		return bytes
	}
	return max(DefaultCapacity, int(t.Size()))
}

// satisfies reports whether t's capability set covers the interface iface.
func satisfies(t, iface reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return t.Implements(iface)
	}
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}

// Sizeof reports the deep memory size of v in bytes, honoring Sizable when
// implemented. Useful for choosing capacity override values: the shallow
// sizeof admits a value, Sizeof tells what it really costs.
func Sizeof(v any) int {
	if s, ok := v.(Sizable); ok {
		return s.Size()
	}
	return size.Of(v)
}
