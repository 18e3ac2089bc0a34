package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ctfld/internal/archive"
	"ctfld/internal/ctf"
)

// containerWith builds a container holding int, *int and struct S with the
// given field type name ("int" or "long").
func containerWith(t *testing.T, fieldType string) *ctf.Container {
	t.Helper()
	c := ctf.NewContainer()
	intRef, err := c.DefineType(ctf.MakeInteger("int", 32, true))
	require.NoError(t, err)
	field := intRef
	if fieldType == "long" {
		field, err = c.DefineType(ctf.MakeInteger("long", 64, true))
		require.NoError(t, err)
	}
	_, err = c.DefineType(ctf.MakePointer(intRef))
	require.NoError(t, err)
	_, err = c.DefineType(ctf.MakeStruct("S", 8, ctf.Member{Name: "a", Type: field}))
	require.NoError(t, err)
	return c
}

func mainArchive(t *testing.T, c *ctf.Container) *archive.Archive {
	t.Helper()
	arc, err := archive.New(archive.Member{Name: archive.CTFMain, File: c})
	require.NoError(t, err)
	return arc
}

func TestLinkIdenticalMains(t *testing.T) {
	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))
	require.NoError(t, l.AddInput("b.o", mainArchive(t, containerWith(t, "int"))))

	require.NoError(t, l.Link(ShareUnconflicted))

	require.Equal(t, 3, out.TypeCount(), "identical inputs must fully collapse")
	require.Empty(t, l.Outputs(), "no per-CU containers expected")

	buf, err := l.Write(-1)
	require.NoError(t, err)

	got, err := archive.Open(buf)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	main, err := got.OpenMember(archive.CTFMain)
	require.NoError(t, err)
	require.Equal(t, 3, main.TypeCount())
}

func TestLinkConflictingStruct(t *testing.T) {
	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))
	require.NoError(t, l.AddInput("b.o", mainArchive(t, containerWith(t, "long"))))

	require.NoError(t, l.Link(ShareUnconflicted))

	// Shared output holds int, long, *int and A's struct S.
	_, ok := out.LookupByName(ctf.KindInteger, "int")
	require.True(t, ok)
	_, ok = out.LookupByName(ctf.KindInteger, "long")
	require.True(t, ok)
	sRef, ok := out.LookupByName(ctf.KindStruct, "S")
	require.True(t, ok)
	s, _ := out.TypeByRef(sRef)
	fieldA, _ := out.TypeByRef(s.Members[0].Type)
	require.Equal(t, "int", fieldA.Name)

	outputs := l.Outputs()
	require.Len(t, outputs, 1)
	require.Equal(t, ".ctf.b.o", outputs[0].Name)
	require.Equal(t, "b.o", outputs[0].File.CUName())
	require.Same(t, out, outputs[0].File.Parent(), "per-CU output must hang off the shared output")

	perS, ok := outputs[0].File.LookupByName(ctf.KindStruct, "S")
	require.True(t, ok, "conflicting S must live in the per-CU container")
	ps, _ := outputs[0].File.TypeByRef(perS)
	fieldB, _ := outputs[0].File.TypeByRef(ps.Members[0].Type)
	require.Equal(t, "long", fieldB.Name)

	buf, err := l.Write(-1)
	require.NoError(t, err)
	got, err := archive.Open(buf)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	require.Equal(t, archive.CTFMain, got.Members()[0].Name, "shared member must come first")
}

func TestLinkVariableStaysInParent(t *testing.T) {
	a := containerWith(t, "int")
	sRef, ok := a.LookupByName(ctf.KindStruct, "S")
	require.True(t, ok)
	require.NoError(t, a.AddVariable("g", sRef))

	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, a)))
	require.NoError(t, l.AddInput("b.o", mainArchive(t, containerWith(t, "long"))))

	require.NoError(t, l.Link(ShareUnconflicted))

	gRef, ok := out.VariableByName("g")
	require.True(t, ok, "g must land in the shared output")
	g, _ := out.TypeByRef(gRef)
	require.Equal(t, "S", g.Name)
	field, _ := out.TypeByRef(g.Members[0].Type)
	require.Equal(t, "int", field.Name, "g must resolve to the A copy of S")

	for _, m := range l.Outputs() {
		_, ok := m.File.VariableByName("g")
		require.False(t, ok, "g must not be duplicated into per-CU containers")
	}
}

func TestLinkLateAdd(t *testing.T) {
	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))
	require.NoError(t, l.Link(ShareUnconflicted))

	err := l.AddInput("late.o", mainArchive(t, containerWith(t, "int")))
	require.ErrorIs(t, err, ctf.ErrLinkAddedLate)
	require.Equal(t, 3, out.TypeCount(), "late add must leave output state unchanged")
}

func TestLinkExternalStrings(t *testing.T) {
	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))
	require.NoError(t, l.AddInput("b.o", mainArchive(t, containerWith(t, "long"))))
	require.NoError(t, l.Link(ShareUnconflicted))
	require.NotEmpty(t, l.Outputs())

	pairs := []struct {
		s   string
		off uint32
	}{{"foo", 17}, {"bar", 34}}
	i := 0
	require.NoError(t, l.AddStrtab(func() (string, uint32, bool) {
		if i >= len(pairs) {
			return "", 0, false
		}
		p := pairs[i]
		i++
		return p.s, p.off, true
	}))

	check := func(c *ctf.Container) {
		t.Helper()
		for _, p := range pairs {
			s, ok := c.ExternalString(p.off)
			require.True(t, ok)
			require.Equal(t, p.s, s)
		}
	}
	check(out)
	for _, m := range l.Outputs() {
		check(m.File)
	}

	buf, err := l.Write(-1)
	require.NoError(t, err)
	got, err := archive.Open(buf)
	require.NoError(t, err)
	main, err := got.OpenMember(archive.CTFMain)
	require.NoError(t, err)
	check(main)
}

func TestLinkShareDuplicatedRejected(t *testing.T) {
	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))

	err := l.Link(ShareDuplicated)
	require.ErrorIs(t, err, ctf.ErrNotYetImplemented)
	require.Equal(t, 0, out.TypeCount(), "rejected mode must not mutate state")
	require.Empty(t, l.Outputs())

	// The output set was never created, so more inputs are still welcome.
	require.NoError(t, l.AddInput("b.o", mainArchive(t, containerWith(t, "int"))))
}

func TestLinkSkipsArchiveWithoutMain(t *testing.T) {
	orphan, err := archive.New(archive.Member{Name: "stray", File: containerWith(t, "long")})
	require.NoError(t, err)

	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("orphan.o", orphan))
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))

	require.NoError(t, l.Link(ShareUnconflicted), "missing main member is skipped, link proceeds")
	require.Equal(t, 3, out.TypeCount(), "the healthy archive must still be merged")
}

func TestLinkChildMemberGoesToPerCU(t *testing.T) {
	main := containerWith(t, "int")
	child := ctf.NewContainer()
	child.Import(main)
	intRef, ok := main.LookupByName(ctf.KindInteger, "int")
	require.True(t, ok)
	_, err := child.DefineType(ctf.MakeStruct("T", 4, ctf.Member{Name: "x", Type: ctf.MakeRef(intRef.Index(), false)}))
	require.NoError(t, err)

	arc, err := archive.New(
		archive.Member{Name: archive.CTFMain, File: main},
		archive.Member{Name: ".ctf.a.o", File: child},
	)
	require.NoError(t, err)

	out := ctf.NewContainer()
	l := New(out)
	require.NoError(t, l.AddInput("a.o", arc))
	require.NoError(t, l.Link(ShareUnconflicted))

	outputs := l.Outputs()
	require.Len(t, outputs, 1)
	require.Equal(t, ".ctf.a.o", outputs[0].Name)
	require.Equal(t, "a.o", outputs[0].File.CUName())
	_, ok = outputs[0].File.LookupByName(ctf.KindStruct, "T")
	require.True(t, ok, "child member types must land in the per-CU output")
}

func TestLinkWithNoInputs(t *testing.T) {
	out := ctf.NewContainer()
	_, err := out.DefineType(ctf.MakeInteger("int", 32, true))
	require.NoError(t, err)

	l := New(out)
	require.NoError(t, l.Link(ShareUnconflicted))

	buf, err := l.Write(-1)
	require.NoError(t, err)
	got, err := archive.Open(buf)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	main, err := got.OpenMember(archive.CTFMain)
	require.NoError(t, err)
	require.Equal(t, 1, main.TypeCount())
}

func TestLinkDuplicateInputName(t *testing.T) {
	l := New(ctf.NewContainer())
	require.NoError(t, l.AddInput("a.o", mainArchive(t, containerWith(t, "int"))))
	err := l.AddInput("a.o", mainArchive(t, containerWith(t, "int")))
	require.True(t, errors.Is(err, ctf.ErrDuplicate))
}

func TestShuffleSymsIsANoOp(t *testing.T) {
	l := New(ctf.NewContainer())
	err := l.ShuffleSyms(func() (Symbol, bool) { return Symbol{}, false })
	require.NoError(t, err)
}
