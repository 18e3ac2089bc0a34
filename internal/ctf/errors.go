package ctf

import "errors"

// Sentinel errors surfaced by containers, archives and the link engine.
// Callers match them with errors.Is; wrapping sites add context with %w.
var (
	// ErrConflict reports that a named type with the same name but a
	// different structure already exists in the destination container.
	ErrConflict = errors.New("type is not a duplicate of an existing type")

	// ErrNotYetImplemented reports a requested feature that is reserved in
	// the surface contract but not implemented.
	ErrNotYetImplemented = errors.New("feature not yet implemented")

	// ErrLinkAddedLate reports an input registered after link outputs exist.
	ErrLinkAddedLate = errors.New("attempt to add CTF input after link output set exists")

	// ErrNoSuchMember reports a missing archive member.
	ErrNoSuchMember = errors.New("no such archive member")

	// ErrInvalidMapping reports a source type with no destination mapping
	// anywhere. It signals a corrupt type-mapping index.
	ErrInvalidMapping = errors.New("source type has no destination mapping")

	// ErrDuplicate reports a second definition with a different payload
	// under a name that is already bound.
	ErrDuplicate = errors.New("duplicate definition")

	// ErrFormat reports malformed serialized container or archive bytes.
	ErrFormat = errors.New("malformed CTF data")
)

// SetErr records err in the container's last-error slot.
func (c *Container) SetErr(err error) {
	c.lastErr = err
}

// Err returns the last error recorded on the container.
func (c *Container) Err() error {
	return c.lastErr
}
