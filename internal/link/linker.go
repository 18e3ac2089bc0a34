// Package link merges CTF archives produced from separate compilation
// units into one output archive: structurally identical types collapse
// into the shared output container, conflicting types are segregated into
// per-CU child containers, and external strings are interned into every
// output so post-link references resolve against the host's string
// section.
package link

import (
	"errors"
	"fmt"
	"strings"

	"ctfld/internal/archive"
	"ctfld/internal/ctf"
	"ctfld/internal/ctfdebug"
)

// ShareMode selects how duplicated types are distributed across outputs.
type ShareMode uint8

const (
	// ShareUnconflicted dedupes structurally identical types into the
	// shared container and segregates conflicting ones per CU.
	ShareUnconflicted ShareMode = iota

	// ShareDuplicated is reserved and rejected with ErrNotYetImplemented.
	ShareDuplicated
)

// String returns the string representation of ShareMode.
func (m ShareMode) String() string {
	switch m {
	case ShareUnconflicted:
		return "share-unconflicted"
	case ShareDuplicated:
		return "share-duplicated"
	default:
		return "unknown"
	}
}

// Linker accumulates input archives and merges them into a caller-owned
// writable shared output container. The linker is single-threaded; all
// calls run to completion on the calling goroutine.
type Linker struct {
	out *ctf.Container

	inputs     map[string]*archive.Archive
	inputOrder []string

	// outputs is allocated by Link; its existence marks the point after
	// which inputs may no longer be added.
	outputs     map[string]*ctf.Container
	outputOrder []string

	mapping *typeMapping
}

// New binds a linker to the shared output container out.
func New(out *ctf.Container) *Linker {
	return &Linker{
		out:     out,
		inputs:  make(map[string]*archive.Archive),
		mapping: newTypeMapping(),
	}
}

// Out returns the shared output container.
func (l *Linker) Out() *ctf.Container {
	return l.out
}

// AddInput registers an input archive under a unique file name. The linker
// owns the archive from this point on. Once Link has merged inputs, further
// registrations return ErrLinkAddedLate; a Link call that was rejected or
// had no inputs leaves registration open.
func (l *Linker) AddInput(name string, arc *archive.Archive) error {
	if l.outputs != nil {
		return fmt.Errorf("add input %q: %w", name, ctf.ErrLinkAddedLate)
	}
	if _, ok := l.inputs[name]; ok {
		return fmt.Errorf("add input %q: %w", name, ctf.ErrDuplicate)
	}
	l.inputs[name] = arc
	l.inputOrder = append(l.inputOrder, name)
	return nil
}

// Outputs returns the per-CU output containers in creation order, keyed by
// their archive member name.
func (l *Linker) Outputs() []archive.Member {
	out := make([]archive.Member, 0, len(l.outputOrder))
	for _, name := range l.outputOrder {
		out = append(out, archive.Member{Name: name, File: l.outputs[name]})
	}
	return out
}

// memberState carries the per-input-archive state threaded through the
// merge of one archive's members.
type memberState struct {
	fileName  string
	mainInput *ctf.Container
	arcname   string
	cuName    string
	inInputCU bool
	doneMain  bool
}

// Link merges the type and variable sections of every registered input
// into the shared output. Inputs whose archives cannot be traversed taint
// the returned error but do not stop the remaining inputs.
func (l *Linker) Link(mode ShareMode) error {
	if mode != ShareUnconflicted {
		ctfdebug.Printf("Share-duplicated mode not yet implemented.")
		return fmt.Errorf("link mode %s: %w", mode, ctf.ErrNotYetImplemented)
	}
	if len(l.inputs) == 0 {
		return nil
	}
	if l.outputs == nil {
		l.outputs = make(map[string]*ctf.Container)
	}

	var tainted error
	for _, name := range l.inputOrder {
		if err := l.linkOneInputArchive(name, l.inputs[name]); err != nil {
			ctfdebug.Printf("Cannot traverse archive in input file %s: some types skipped: %v.", name, err)
			tainted = err
		}
	}
	return tainted
}

// linkOneInputArchive merges one input archive: the main member first,
// then every remaining member in archive order.
func (l *Linker) linkOneInputArchive(fileName string, arc *archive.Archive) error {
	st := &memberState{fileName: fileName}

	main, err := arc.OpenMember(archive.CTFMain)
	if err != nil {
		if errors.Is(err, ctf.ErrNoSuchMember) {
			ctfdebug.Printf("Cannot open main archive member in input file %s in the link: skipping: %v.", fileName, err)
			return nil
		}
		return fmt.Errorf("input file %s: %w", fileName, err)
	}
	st.mainInput = main

	if err := l.linkOneMember(main, archive.CTFMain, st); err != nil {
		return err
	}
	st.doneMain = true

	for _, m := range arc.Members() {
		if err := l.linkOneMember(m.File, m.Name, st); err != nil {
			return err
		}
	}
	return nil
}

// linkOneMember merges every type and variable of one archive member. The
// member name, sans any leading ".ctf.", becomes the CU name for ambiguous
// types; the main member uses the input file name instead.
func (l *Linker) linkOneMember(in *ctf.Container, name string, st *memberState) error {
	if name == archive.CTFMain {
		// The default member was already processed explicitly. Rescanning
		// it is harmless when sharing unconflicted types but would make
		// share-duplicated mode see universal duplication.
		if st.doneMain {
			return nil
		}
		st.arcname = ".ctf." + st.fileName
		st.inInputCU = false
	} else {
		st.arcname = name
		in.Import(st.mainInput)
		st.inInputCU = true
	}
	st.cuName = strings.TrimPrefix(st.arcname, ".ctf.")

	defer func() {
		st.inInputCU = false
		st.arcname = ""
	}()

	for _, ref := range in.TypeIDs() {
		if err := l.linkOneType(in, ref, st); err != nil {
			return err
		}
	}
	for _, v := range in.Variables() {
		if err := l.linkOneVariable(in, v.Name, v.Type, st); err != nil {
			return err
		}
	}
	return nil
}

// linkOneType places one source type: into the shared output when it came
// from a main member and does not conflict, otherwise into the per-CU
// output container keyed by the current arcname. Duplicate detection is
// delegated to ctf.AddType.
func (l *Linker) linkOneType(in *ctf.Container, ref ctf.TypeRef, st *memberState) error {
	if !st.inInputCU {
		dst, err := l.out.AddType(in, ref)
		if err == nil {
			l.mapping.Record(in, ref, l.out, dst)
			return nil
		}
		if !errors.Is(err, ctf.ErrConflict) {
			ctfdebug.Printf("Cannot link type %#x from archive member %s, input file %s into output link: %v",
				uint32(ref), st.arcname, st.fileName, err)
			return err
		}
	}

	perCU, ok := l.outputs[st.arcname]
	if !ok {
		perCU = ctf.NewContainer()
		perCU.Import(l.out)
		perCU.SetCUName(st.cuName)
		l.outputs[st.arcname] = perCU
		l.outputOrder = append(l.outputOrder, st.arcname)
	}

	dst, err := perCU.AddType(in, ref)
	if err != nil {
		// Should be impossible: abort the link for this input.
		ctfdebug.Printf("Cannot link type %#x from CTF archive member %s, input file %s into output per-CU CTF archive member %s: %v: skipped",
			uint32(ref), st.arcname, st.fileName, st.arcname, err)
		return err
	}
	l.mapping.Record(in, ref, perCU, dst)
	return nil
}

// linkOneVariable retargets one variable's type reference through the
// mapping index and adds the variable to the container that won the type:
// the shared output's parent first in nested links, then the shared output,
// then the current member's per-CU output when the type landed there.
func (l *Linker) linkOneVariable(in *ctf.Container, name string, ref ctf.TypeRef, st *memberState) error {
	var (
		dstC     *ctf.Container
		dstRef   ctf.TypeRef
		inParent bool
	)

	if parent := l.out.Parent(); parent != nil {
		if c, r, ok := l.mapping.Lookup(in, ref, parent); ok {
			if have, exists := c.VariableByName(name); exists {
				if have == r {
					return nil
				}
				// Conflicting binding upstairs: fall through and place the
				// variable in the shared output, referring to the parent's type.
				inParent = true
				dstRef = r
			} else {
				return c.AddVariable(name, r)
			}
		}
	}

	if inParent {
		// Re-scope the parent-resolved index into the shared output's
		// reference space.
		dstC = l.out
		dstRef = ctf.MakeRef(dstRef.Index(), false)
	} else {
		c, r, ok := l.mapping.Lookup(in, ref, l.out)
		if !ok {
			// Conflicting types, and every type of a child member, were
			// recorded against the current member's per-CU output.
			if perCU, exists := l.outputs[st.arcname]; exists {
				c, r, ok = l.mapping.Lookup(in, ref, perCU)
			}
		}
		if !ok {
			ctfdebug.Printf("Type %#x from CTF archive member %s, input file %s not known in parent while adding variable %s: this should never happen.",
				uint32(ref), st.arcname, st.fileName, name)
			return fmt.Errorf("variable %s: %w", name, ctf.ErrInvalidMapping)
		}
		dstC, dstRef = c, r
	}

	return dstC.AddVariable(name, dstRef)
}
