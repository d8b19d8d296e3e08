package llqueue

import "unsafe"

// nodeIdentity returns an integer identity for a Node, used only as a
// hazard.Value key.
func nodeIdentity(n *Node) uintptr {
	return uintptr(unsafe.Pointer(n))
}
