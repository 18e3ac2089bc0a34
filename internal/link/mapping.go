package link

import "ctfld/internal/ctf"

// mappingKey identifies a source type: the container that owns it (by
// identity) and its bare 1-based index.
type mappingKey struct {
	src *ctf.Container
	idx uint32
}

// typeMapping records, per destination container, which source types are
// now represented by which local destination index. It lives for the
// duration of a link and is consulted when variables are retargeted.
type typeMapping struct {
	byDst map[*ctf.Container]map[mappingKey]uint32
}

func newTypeMapping() *typeMapping {
	return &typeMapping{byDst: make(map[*ctf.Container]map[mappingKey]uint32)}
}

// Record stores the correspondence between a source type and the type
// ctf.AddType placed in dst. Both sides are normalized to the owning
// container and a bare index first, so the entry is independent of the
// reference encoding it arrived with.
func (m *typeMapping) Record(srcC *ctf.Container, srcRef ctf.TypeRef, dstC *ctf.Container, dstRef ctf.TypeRef) {
	srcOwner, srcIdx := ctf.Normalize(srcC, srcRef)
	dstOwner, dstIdx := ctf.Normalize(dstC, dstRef)

	tbl, ok := m.byDst[dstOwner]
	if !ok {
		tbl = make(map[mappingKey]uint32)
		m.byDst[dstOwner] = tbl
	}
	tbl[mappingKey{srcOwner, srcIdx}] = dstIdx
}

// Lookup finds the destination of a source type. The hinted destination is
// tried first; on a miss the hint's parent is tried and returned as the
// resolved destination. The returned reference is from the resolved
// destination's perspective.
func (m *typeMapping) Lookup(srcC *ctf.Container, srcRef ctf.TypeRef, dstHint *ctf.Container) (*ctf.Container, ctf.TypeRef, bool) {
	srcOwner, srcIdx := ctf.Normalize(srcC, srcRef)
	key := mappingKey{srcOwner, srcIdx}

	if tbl, ok := m.byDst[dstHint]; ok {
		if idx, ok := tbl[key]; ok {
			return dstHint, ctf.RefIn(dstHint, idx), true
		}
	}
	parent := dstHint.Parent()
	if parent == nil {
		return nil, ctf.NoTypeRef, false
	}
	if tbl, ok := m.byDst[parent]; ok {
		if idx, ok := tbl[key]; ok {
			return parent, ctf.RefIn(parent, idx), true
		}
	}
	return nil, ctf.NoTypeRef, false
}
