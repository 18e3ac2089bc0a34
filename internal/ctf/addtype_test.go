package ctf

import (
	"errors"
	"testing"
)

func mustDefine(t *testing.T, c *Container, typ Type) TypeRef {
	t.Helper()
	ref, err := c.DefineType(typ)
	if err != nil {
		t.Fatalf("DefineType(%s %s): %v", typ.Kind, typ.Name, err)
	}
	return ref
}

func TestDefineTypeDeduplicatesNamed(t *testing.T) {
	c := NewContainer()
	a := mustDefine(t, c, MakeInteger("int", 32, true))
	b := mustDefine(t, c, MakeInteger("int", 32, true))
	if a != b {
		t.Fatalf("identical named types should collapse: %#x vs %#x", a, b)
	}
	if c.TypeCount() != 1 {
		t.Fatalf("expected 1 type, got %d", c.TypeCount())
	}
}

func TestDefineTypeConflict(t *testing.T) {
	c := NewContainer()
	mustDefine(t, c, MakeInteger("int", 32, true))
	_, err := c.DefineType(MakeInteger("int", 64, true))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDefineTypeDeduplicatesUnnamedPointers(t *testing.T) {
	c := NewContainer()
	intRef := mustDefine(t, c, MakeInteger("int", 32, true))
	p1 := mustDefine(t, c, MakePointer(intRef))
	p2 := mustDefine(t, c, MakePointer(intRef))
	if p1 != p2 {
		t.Fatalf("identical pointers should collapse")
	}
}

func TestNamespacesAreSeparate(t *testing.T) {
	c := NewContainer()
	intRef := mustDefine(t, c, MakeInteger("int", 32, true))
	mustDefine(t, c, MakeStruct("S", 4, Member{Name: "a", Type: intRef}))
	// A union named S lives in its own namespace and must not conflict.
	if _, err := c.DefineType(MakeUnion("S", 4, Member{Name: "a", Type: intRef})); err != nil {
		t.Fatalf("union S should not conflict with struct S: %v", err)
	}
}

func TestAddTypeCopiesRecursively(t *testing.T) {
	src := NewContainer()
	intRef := mustDefine(t, src, MakeInteger("int", 32, true))
	ptrRef := mustDefine(t, src, MakePointer(intRef))
	sRef := mustDefine(t, src, MakeStruct("S", 8,
		Member{Name: "a", Type: intRef},
		Member{Name: "p", Type: ptrRef, Offset: 32},
	))

	dst := NewContainer()
	got, err := dst.AddType(src, sRef)
	if err != nil {
		t.Fatalf("AddType: %v", err)
	}
	if dst.TypeCount() != 3 {
		t.Fatalf("expected int, pointer and struct in dst, got %d types", dst.TypeCount())
	}
	typ, ok := dst.TypeByRef(got)
	if !ok || typ.Kind != KindStruct || typ.Name != "S" {
		t.Fatalf("struct S not copied: %+v", typ)
	}
	member, ok := dst.TypeByRef(typ.Members[1].Type)
	if !ok || member.Kind != KindPointer {
		t.Fatalf("member p should resolve to a pointer in dst")
	}
}

func TestAddTypeDetectsDuplicate(t *testing.T) {
	src := NewContainer()
	intRef := mustDefine(t, src, MakeInteger("int", 32, true))
	sRef := mustDefine(t, src, MakeStruct("S", 4, Member{Name: "a", Type: intRef}))

	dst := NewContainer()
	first, err := dst.AddType(src, sRef)
	if err != nil {
		t.Fatalf("first AddType: %v", err)
	}
	second, err := dst.AddType(src, sRef)
	if err != nil {
		t.Fatalf("second AddType: %v", err)
	}
	if first != second {
		t.Fatalf("duplicate struct should collapse to the same ref")
	}
	if dst.TypeCount() != 2 {
		t.Fatalf("expected 2 types after duplicate add, got %d", dst.TypeCount())
	}
}

func TestAddTypeConflictAcrossContainers(t *testing.T) {
	a := NewContainer()
	aInt := mustDefine(t, a, MakeInteger("int", 32, true))
	aS := mustDefine(t, a, MakeStruct("S", 4, Member{Name: "a", Type: aInt}))

	b := NewContainer()
	bLong := mustDefine(t, b, MakeInteger("long", 64, true))
	bS := mustDefine(t, b, MakeStruct("S", 8, Member{Name: "a", Type: bLong}))

	dst := NewContainer()
	if _, err := dst.AddType(a, aS); err != nil {
		t.Fatalf("adding first S: %v", err)
	}
	_, err := dst.AddType(b, bS)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for mismatched struct S, got %v", err)
	}
}

func TestAddTypeSelfReferentialStruct(t *testing.T) {
	src := NewContainer()
	// struct node { struct node *next; } via a forward-free cycle: define
	// the struct first with a placeholder, then patch through DefineType
	// ordering: pointer to the struct's own ref.
	nodeShell := mustDefine(t, src, MakeStruct("node", 8))
	ptr := mustDefine(t, src, MakePointer(nodeShell))
	// Rebuild the struct with its member in place.
	srcTyp, _ := src.TypeByRef(nodeShell)
	srcTyp.Members = []Member{{Name: "next", Type: ptr}}
	src.types[nodeShell.Index()] = srcTyp

	dst := NewContainer()
	got, err := dst.AddType(src, nodeShell)
	if err != nil {
		t.Fatalf("AddType self-referential: %v", err)
	}
	typ, ok := dst.TypeByRef(got)
	if !ok || len(typ.Members) != 1 {
		t.Fatalf("node not copied with members: %+v", typ)
	}
	next, ok := dst.TypeByRef(typ.Members[0].Type)
	if !ok || next.Kind != KindPointer {
		t.Fatalf("next should be a pointer")
	}
	back, ok := dst.TypeByRef(next.Ref)
	if !ok || back.Name != "node" {
		t.Fatalf("pointer should cycle back to node, got %+v", back)
	}
}

func TestAddTypeUnnamedRecordsMultiply(t *testing.T) {
	src := NewContainer()
	intRef := mustDefine(t, src, MakeInteger("int", 32, true))
	anon := mustDefine(t, src, MakeStruct("", 4, Member{Name: "a", Type: intRef}))

	dst := NewContainer()
	if _, err := dst.AddType(src, anon); err != nil {
		t.Fatalf("first anon add: %v", err)
	}
	if _, err := dst.AddType(src, anon); err != nil {
		t.Fatalf("second anon add: %v", err)
	}
	// Unnamed records are not deduplicated; the duplicate is expected.
	if dst.TypeCount() != 3 {
		t.Fatalf("expected int + two anon structs, got %d types", dst.TypeCount())
	}
}

func TestAddTypeFindsNamedInParent(t *testing.T) {
	parent := NewContainer()
	mustDefine(t, parent, MakeInteger("int", 32, true))

	child := NewContainer()
	child.Import(parent)

	src := NewContainer()
	srcInt := mustDefine(t, src, MakeInteger("int", 32, true))
	sRef := mustDefine(t, src, MakeStruct("S", 4, Member{Name: "a", Type: srcInt}))

	got, err := child.AddType(src, sRef)
	if err != nil {
		t.Fatalf("AddType into child: %v", err)
	}
	typ, _ := child.TypeByRef(got)
	if typ.Members[0].Type.IsLocal() {
		t.Fatalf("member int should be a parent-scoped ref, got %#x", uint32(typ.Members[0].Type))
	}
	if child.TypeCount() != 1 {
		t.Fatalf("only struct S should be local to the child, got %d types", child.TypeCount())
	}
}
