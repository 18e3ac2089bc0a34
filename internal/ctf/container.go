package ctf

import (
	"fmt"

	"fortio.org/safecast"
)

// Container is a single CTF type universe: an ordered type table, a
// variables table, string atoms, an optional external string table and an
// optional parent container. Per-CU children created during a link hold a
// weak reference to their parent; the parent never references children
// from here (the link output set owns them).
type Container struct {
	types []Type // index 0 is a reserved invalid sentinel

	named   map[nameKey]uint32
	unnamed map[refKey]uint32

	vars     map[string]TypeRef
	varOrder []string

	atoms     map[string]uint32
	atomOrder []string
	atomSize  uint32

	external      map[uint32]string
	externalByStr map[string]uint32

	parent  *Container
	cuName  string
	dirty   bool
	image   []byte
	lastErr error
}

type nameKey struct {
	space nameSpace
	name  string
}

// refKey is the structural identity of an unnamed reference-shaped type.
// Record and enum types never get one: unnamed records are not
// deduplicated, which matches the known limitation of the duplicate
// detection this model mirrors.
type refKey struct {
	kind   Kind
	ref    TypeRef
	count  uint32
	params string
}

// NewContainer returns a fresh writable container.
func NewContainer() *Container {
	return &Container{
		types:         make([]Type, 1, 16),
		named:         make(map[nameKey]uint32, 16),
		unnamed:       make(map[refKey]uint32, 16),
		vars:          make(map[string]TypeRef, 8),
		atoms:         map[string]uint32{"": 0},
		atomOrder:     []string{""},
		atomSize:      1,
		external:      make(map[uint32]string),
		externalByStr: make(map[string]uint32),
		dirty:         true,
	}
}

// Import installs parent as the parent of c, so references without the
// locality bit resolve there. Passing nil detaches.
func (c *Container) Import(parent *Container) {
	c.parent = parent
	c.dirty = true
}

// Parent returns the parent container, or nil.
func (c *Container) Parent() *Container {
	return c.parent
}

// SetCUName records the compilation unit name embedded in the container.
func (c *Container) SetCUName(name string) {
	c.cuName = name
	c.dirty = true
}

// CUName returns the embedded compilation unit name.
func (c *Container) CUName() string {
	return c.cuName
}

// Dirty reports whether the container has unserialized changes.
func (c *Container) Dirty() bool {
	return c.dirty
}

// TypeCount returns the number of types local to c, excluding the parent.
func (c *Container) TypeCount() int {
	return len(c.types) - 1
}

// VarCount returns the number of variables in c.
func (c *Container) VarCount() int {
	return len(c.varOrder)
}

// TypeIDs returns a reference for every type local to c, in table order.
func (c *Container) TypeIDs() []TypeRef {
	out := make([]TypeRef, 0, c.TypeCount())
	for i := 1; i < len(c.types); i++ {
		idx, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(fmt.Errorf("type table overflow: %w", err))
		}
		out = append(out, RefIn(c, idx))
	}
	return out
}

// TypeByRef resolves r from the viewpoint of c, walking to the parent when
// the reference is parent-scoped.
func (c *Container) TypeByRef(r TypeRef) (Type, bool) {
	owner, idx := Normalize(c, r)
	if idx == 0 || int(idx) >= len(owner.types) {
		return Type{}, false
	}
	return owner.types[idx], true
}

// LookupByName finds a named type of the given kind in c or its parent.
func (c *Container) LookupByName(kind Kind, name string) (TypeRef, bool) {
	key := nameKey{kind.space(), name}
	if idx, ok := c.named[key]; ok {
		return RefIn(c, idx), true
	}
	if c.parent != nil {
		if idx, ok := c.parent.named[key]; ok {
			return MakeRef(idx, false), true
		}
	}
	return NoTypeRef, false
}

// addLocal appends t to the local type table and indexes it. The caller is
// responsible for name-conflict checks; addLocal overwrites nothing.
func (c *Container) addLocal(t Type) (uint32, error) {
	idx, err := safecast.Conv[uint32](len(c.types))
	if err != nil {
		return 0, fmt.Errorf("type table overflow: %w", err)
	}
	c.types = append(c.types, t)
	if t.Name != "" {
		c.named[nameKey{t.Kind.space(), t.Name}] = idx
	} else if key, ok := t.structuralKey(); ok {
		c.unnamed[key] = idx
	}
	c.dirty = true
	return idx, nil
}

// DefineType adds a locally-authored type descriptor to c and returns its
// reference. Named duplicates return the existing reference when the
// structure matches and ErrConflict otherwise.
func (c *Container) DefineType(t Type) (TypeRef, error) {
	if t.Kind == KindInvalid {
		return NoTypeRef, fmt.Errorf("define type: %w", ErrFormat)
	}
	if t.Name != "" {
		if idx, ok := c.named[nameKey{t.Kind.space(), t.Name}]; ok {
			if equalToDescriptor(c, idx, c, t) {
				return RefIn(c, idx), nil
			}
			return NoTypeRef, fmt.Errorf("define type %s %s: %w", t.Kind, t.Name, ErrConflict)
		}
	} else if key, ok := t.structuralKey(); ok {
		if idx, ok := c.unnamed[key]; ok {
			return RefIn(c, idx), nil
		}
	}
	idx, err := c.addLocal(t)
	if err != nil {
		return NoTypeRef, err
	}
	return RefIn(c, idx), nil
}

// structuralKey returns the dedup key for unnamed reference-shaped types.
// The second result is false for kinds that do not participate in unnamed
// deduplication.
func (t *Type) structuralKey() (refKey, bool) {
	if t.Name != "" {
		return refKey{}, false
	}
	switch t.Kind {
	case KindPointer, KindArray, KindTypedef:
		return refKey{kind: t.Kind, ref: t.Ref, count: t.Count}, true
	case KindFunction:
		params := make([]byte, 0, len(t.Params)*5)
		for _, p := range t.Params {
			params = append(params,
				byte(p>>24), byte(p>>16), byte(p>>8), byte(p), ',')
		}
		return refKey{kind: t.Kind, ref: t.Ref, params: string(params)}, true
	default:
		return refKey{}, false
	}
}
