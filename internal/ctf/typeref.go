package ctf

// TypeRef is a packed type reference: a container-locality bit plus a
// 1-based type index. In a container that has a parent, references to the
// container's own types carry the locality bit; references with the bit
// clear resolve in the parent. In a container without a parent the bit is
// never set and the reference is a bare index.
type TypeRef uint32

// NoTypeRef is the zero reference. It never resolves.
const NoTypeRef TypeRef = 0

const refLocalBit = TypeRef(1) << 31

// MakeRef packs idx into a reference. local marks the reference as pointing
// into the child's own type table; pass false for containers without a
// parent and for references that resolve in the parent.
func MakeRef(idx uint32, local bool) TypeRef {
	r := TypeRef(idx)
	if local {
		r |= refLocalBit
	}
	return r
}

// Index strips the locality bit and returns the bare 1-based index.
func (r TypeRef) Index() uint32 {
	return uint32(r &^ refLocalBit)
}

// IsLocal reports whether the locality bit is set.
func (r TypeRef) IsLocal() bool {
	return r&refLocalBit != 0
}

// Normalize walks a (container, reference) pair to the container that owns
// the referenced type and reduces the reference to a bare index. A
// reference without the locality bit in a container that has a parent is
// owned by the parent.
func Normalize(c *Container, r TypeRef) (*Container, uint32) {
	if c.parent != nil && !r.IsLocal() {
		return c.parent, r.Index()
	}
	return c, r.Index()
}

// RefIn re-packs a bare index as a full reference from the viewpoint of c:
// the locality bit is set iff c has a parent.
func RefIn(c *Container, idx uint32) TypeRef {
	return MakeRef(idx, c.parent != nil)
}
