package ctf

import (
	"fmt"

	"fortio.org/safecast"
)

// AddString interns s in the container's atoms table and returns its
// offset. The empty string is pre-interned at offset zero.
func (c *Container) AddString(s string) uint32 {
	if off, ok := c.atoms[s]; ok {
		return off
	}
	off := c.atomSize
	lenS, err := safecast.Conv[uint32](len(s))
	if err != nil {
		panic(fmt.Errorf("string table overflow: %w", err))
	}
	c.atoms[s] = off
	c.atomOrder = append(c.atomOrder, s)
	c.atomSize += lenS + 1
	c.dirty = true
	return off
}

// AddExternalString records that s lives at the given offset of the host's
// external string section. Re-adding an offset overwrites the previous
// binding. Serialized string references prefer external offsets over
// fresh atoms.
func (c *Container) AddExternalString(s string, offset uint32) {
	if old, ok := c.external[offset]; ok && old != s {
		delete(c.externalByStr, old)
	}
	c.external[offset] = s
	c.externalByStr[s] = offset
	c.dirty = true
}

// ExternalString returns the string recorded at the given external offset.
func (c *Container) ExternalString(offset uint32) (string, bool) {
	s, ok := c.external[offset]
	return s, ok
}

// ExternalOffset returns the external offset recorded for s.
func (c *Container) ExternalOffset(s string) (uint32, bool) {
	off, ok := c.externalByStr[s]
	return off, ok
}

// ExternalCount returns the number of external string bindings.
func (c *Container) ExternalCount() int {
	return len(c.external)
}
