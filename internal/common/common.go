package common

import (
	"reflect"
	"unsafe"
)

// WordSize is the storage granularity in bytes. Buffers are built from
// uint64 words so that &words[0] is aligned for any Go type.
const WordSize = int(unsafe.Sizeof(uint64(0)))

// WordsFor returns the number of words needed to cover n bytes.
func WordsFor(n int) int {
	return (n + WordSize - 1) / WordSize
}

// Bytes aliases n bytes at p as a byte slice without copying.
func Bytes(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

// Memcopy copies n bytes from src to dst. The regions must not overlap.
func Memcopy(dst, src unsafe.Pointer, n int) {
	copy(Bytes(dst, n), Bytes(src, n))
}

// Memzero clears n bytes at p.
func Memzero(p unsafe.Pointer, n int) {
	clear(Bytes(p, n))
}

// HasPointers reports whether values of type t contain Go pointers,
// directly or through nested fields. Values of such types stored in word
// buffers are invisible to the garbage collector and need pinning.
func HasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Slice, reflect.String, reflect.Interface, reflect.Func:
		return true
	case reflect.Array:
		return t.Len() > 0 && HasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if HasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
