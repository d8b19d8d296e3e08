package llptr

import "unsafe"

// uintptrOf returns an integer identity for a box pointer, used only as a
// hazard.Value key — never dereferenced as a memory address by package
// hazard, and never converted back to a pointer here.
func uintptrOf[T any](b *box[T]) uintptr {
	return uintptr(unsafe.Pointer(b))
}
