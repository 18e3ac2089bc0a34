package ctf

import "fmt"

// AddType copies the type referenced by src/ref into c, recursively pulling
// in every type it references, with duplicate detection against c's existing
// types. A named type whose structure matches an existing one collapses to
// the existing reference; a named type whose structure differs returns
// ErrConflict. Unnamed pointer, array, typedef and function types collapse
// by structural key. Unnamed record types are added unconditionally, so
// duplicate unnamed records may multiply.
func (c *Container) AddType(src *Container, ref TypeRef) (TypeRef, error) {
	cp := &typeCopier{
		dst:     c,
		src:     src,
		visited: make(map[copySite]TypeRef),
	}
	return cp.copyRef(src, ref)
}

// copySite identifies a normalized source type during one AddType call.
type copySite struct {
	owner *Container
	idx   uint32
}

type typeCopier struct {
	dst     *Container
	src     *Container
	visited map[copySite]TypeRef
}

func (cp *typeCopier) copyRef(from *Container, ref TypeRef) (TypeRef, error) {
	owner, idx := Normalize(from, ref)
	if idx == 0 || int(idx) >= len(owner.types) {
		return NoTypeRef, fmt.Errorf("add type: reference %#x does not resolve: %w", uint32(ref), ErrFormat)
	}
	site := copySite{owner, idx}
	if dst, ok := cp.visited[site]; ok {
		return dst, nil
	}
	t := owner.types[idx]

	if t.Name != "" {
		return cp.copyNamed(site, owner, t)
	}
	return cp.copyUnnamed(site, owner, t)
}

func (cp *typeCopier) copyNamed(site copySite, owner *Container, t Type) (TypeRef, error) {
	key := nameKey{t.Kind.space(), t.Name}
	if existing, ok := cp.dst.lookupNamedIdx(key); ok {
		eqC, eqIdx := existing.owner, existing.idx
		if equalTypes(eqC, RefIn(eqC, eqIdx), owner, RefIn(owner, site.idx), nil) {
			ref := existing.refFrom(cp.dst)
			cp.visited[site] = ref
			return ref, nil
		}
		if existing.owner == cp.dst {
			return NoTypeRef, fmt.Errorf("add type %s %s: %w", t.Kind, t.Name, ErrConflict)
		}
		// A mismatching definition in the parent is shadowed by a fresh
		// local one; name lookups in this container see the local type.
	}

	switch t.Kind {
	case KindStruct, KindUnion, KindEnum:
		// Reserve the shell before descending so self-referential
		// records terminate.
		shell := Type{Kind: t.Kind, Name: t.Name, Size: t.Size, Consts: t.Consts}
		idx, err := cp.dst.addLocal(shell)
		if err != nil {
			return NoTypeRef, err
		}
		ref := RefIn(cp.dst, idx)
		cp.visited[site] = ref
		members := make([]Member, 0, len(t.Members))
		for _, m := range t.Members {
			mref, err := cp.copyRef(owner, m.Type)
			if err != nil {
				return NoTypeRef, err
			}
			members = append(members, Member{Name: m.Name, Type: mref, Offset: m.Offset})
		}
		cp.dst.types[idx].Members = members
		return ref, nil
	default:
		return cp.copyLeaf(site, owner, t)
	}
}

func (cp *typeCopier) copyUnnamed(site copySite, owner *Container, t Type) (TypeRef, error) {
	switch t.Kind {
	case KindStruct, KindUnion, KindEnum:
		shell := Type{Kind: t.Kind, Size: t.Size, Consts: t.Consts}
		idx, err := cp.dst.addLocal(shell)
		if err != nil {
			return NoTypeRef, err
		}
		ref := RefIn(cp.dst, idx)
		cp.visited[site] = ref
		members := make([]Member, 0, len(t.Members))
		for _, m := range t.Members {
			mref, err := cp.copyRef(owner, m.Type)
			if err != nil {
				return NoTypeRef, err
			}
			members = append(members, Member{Name: m.Name, Type: mref, Offset: m.Offset})
		}
		cp.dst.types[idx].Members = members
		return ref, nil
	default:
		return cp.copyLeaf(site, owner, t)
	}
}

// copyLeaf copies non-record types: referenced types are retargeted first,
// then the rewritten descriptor goes through DefineType for dedup.
func (cp *typeCopier) copyLeaf(site copySite, owner *Container, t Type) (TypeRef, error) {
	out := t
	out.Members = nil
	if t.Ref != NoTypeRef {
		r, err := cp.copyRef(owner, t.Ref)
		if err != nil {
			return NoTypeRef, err
		}
		out.Ref = r
	}
	if len(t.Params) > 0 {
		out.Params = make([]TypeRef, 0, len(t.Params))
		for _, p := range t.Params {
			r, err := cp.copyRef(owner, p)
			if err != nil {
				return NoTypeRef, err
			}
			out.Params = append(out.Params, r)
		}
	}
	ref, err := cp.dst.DefineType(out)
	if err != nil {
		return NoTypeRef, err
	}
	cp.visited[site] = ref
	return ref, nil
}

// namedSite locates a named type in a container or its parent.
type namedSite struct {
	owner *Container
	idx   uint32
}

func (s namedSite) refFrom(viewpoint *Container) TypeRef {
	if s.owner == viewpoint {
		return RefIn(viewpoint, s.idx)
	}
	// Owned by the viewpoint's parent.
	return MakeRef(s.idx, false)
}

func (c *Container) lookupNamedIdx(key nameKey) (namedSite, bool) {
	if idx, ok := c.named[key]; ok {
		return namedSite{c, idx}, true
	}
	if c.parent != nil {
		if idx, ok := c.parent.named[key]; ok {
			return namedSite{c.parent, idx}, true
		}
	}
	return namedSite{}, false
}

// equalToDescriptor compares the type at idx in c against a descriptor t
// that has not been inserted yet; t's references resolve in d.
func equalToDescriptor(c *Container, idx uint32, d *Container, t Type) bool {
	have := c.types[idx]
	if have.Kind != t.Kind || have.Name != t.Name || have.Size != t.Size ||
		have.Bits != t.Bits || have.Signed != t.Signed || have.Count != t.Count ||
		have.FwdKind != t.FwdKind {
		return false
	}
	if len(have.Members) != len(t.Members) || len(have.Consts) != len(t.Consts) ||
		len(have.Params) != len(t.Params) {
		return false
	}
	for i := range have.Consts {
		if have.Consts[i] != t.Consts[i] {
			return false
		}
	}
	seen := make(map[eqPair]bool)
	if (have.Ref == NoTypeRef) != (t.Ref == NoTypeRef) {
		return false
	}
	if have.Ref != NoTypeRef && !equalTypes(c, have.Ref, d, t.Ref, seen) {
		return false
	}
	for i := range have.Members {
		hm, tm := have.Members[i], t.Members[i]
		if hm.Name != tm.Name || hm.Offset != tm.Offset {
			return false
		}
		if !equalTypes(c, hm.Type, d, tm.Type, seen) {
			return false
		}
	}
	for i := range have.Params {
		if !equalTypes(c, have.Params[i], d, t.Params[i], seen) {
			return false
		}
	}
	return true
}

type eqPair struct {
	a copySite
	b copySite
}

// equalTypes reports deep structural equality of two (container, reference)
// pairs. Cycles are broken by assuming equality for pairs already under
// comparison.
func equalTypes(aC *Container, aRef TypeRef, bC *Container, bRef TypeRef, seen map[eqPair]bool) bool {
	aO, aI := Normalize(aC, aRef)
	bO, bI := Normalize(bC, bRef)
	if aI == 0 || bI == 0 || int(aI) >= len(aO.types) || int(bI) >= len(bO.types) {
		return false
	}
	if aO == bO && aI == bI {
		return true
	}
	pair := eqPair{copySite{aO, aI}, copySite{bO, bI}}
	if seen == nil {
		seen = make(map[eqPair]bool)
	}
	if seen[pair] {
		return true
	}
	seen[pair] = true

	a, b := aO.types[aI], bO.types[bI]
	if a.Kind != b.Kind || a.Name != b.Name || a.Size != b.Size ||
		a.Bits != b.Bits || a.Signed != b.Signed || a.Count != b.Count ||
		a.FwdKind != b.FwdKind {
		return false
	}
	if len(a.Members) != len(b.Members) || len(a.Consts) != len(b.Consts) ||
		len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Consts {
		if a.Consts[i] != b.Consts[i] {
			return false
		}
	}
	if a.Ref != NoTypeRef || b.Ref != NoTypeRef {
		if (a.Ref == NoTypeRef) != (b.Ref == NoTypeRef) {
			return false
		}
		if !equalTypes(aO, a.Ref, bO, b.Ref, seen) {
			return false
		}
	}
	for i := range a.Members {
		am, bm := a.Members[i], b.Members[i]
		if am.Name != bm.Name || am.Offset != bm.Offset {
			return false
		}
		if !equalTypes(aO, am.Type, bO, bm.Type, seen) {
			return false
		}
	}
	for i := range a.Params {
		if !equalTypes(aO, a.Params[i], bO, b.Params[i], seen) {
			return false
		}
	}
	return true
}
