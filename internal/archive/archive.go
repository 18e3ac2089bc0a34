// Package archive reads and writes CTF archives: ordered collections of
// named container members with a distinguished default member.
package archive

import (
	"fmt"

	"ctfld/internal/ctf"
)

// CTFMain is the reserved name of an archive's default member.
const CTFMain = ".ctf"

// Member pairs a member name with its container.
type Member struct {
	Name string
	File *ctf.Container
}

// Archive is an in-memory CTF archive: ordered named members, addressable
// by name.
type Archive struct {
	members []Member
	index   map[string]*ctf.Container
}

// New builds an archive from an ordered member list. Member names must be
// unique.
func New(members ...Member) (*Archive, error) {
	a := &Archive{
		members: make([]Member, 0, len(members)),
		index:   make(map[string]*ctf.Container, len(members)),
	}
	for _, m := range members {
		if _, ok := a.index[m.Name]; ok {
			return nil, fmt.Errorf("archive member %q: %w", m.Name, ctf.ErrDuplicate)
		}
		a.members = append(a.members, m)
		a.index[m.Name] = m.File
	}
	return a, nil
}

// OpenMember returns the container stored under name.
func (a *Archive) OpenMember(name string) (*ctf.Container, error) {
	if c, ok := a.index[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("archive member %q: %w", name, ctf.ErrNoSuchMember)
}

// Members returns the member list in archive order.
func (a *Archive) Members() []Member {
	return a.members
}

// Len returns the number of members.
func (a *Archive) Len() int {
	return len(a.members)
}
