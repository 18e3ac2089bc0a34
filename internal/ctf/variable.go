package ctf

import "fmt"

// Variable is one entry of the variables table.
type Variable struct {
	Name string
	Type TypeRef
}

// AddVariable binds name to a type reference. Re-binding with the same
// reference is idempotent; a different reference is ErrDuplicate.
func (c *Container) AddVariable(name string, ref TypeRef) error {
	if have, ok := c.vars[name]; ok {
		if have == ref {
			return nil
		}
		return fmt.Errorf("variable %s: %w", name, ErrDuplicate)
	}
	c.vars[name] = ref
	c.varOrder = append(c.varOrder, name)
	c.dirty = true
	return nil
}

// VariableByName returns the type reference bound to name.
func (c *Container) VariableByName(name string) (TypeRef, bool) {
	ref, ok := c.vars[name]
	return ref, ok
}

// Variables returns the variables table in insertion order.
func (c *Container) Variables() []Variable {
	out := make([]Variable, 0, len(c.varOrder))
	for _, name := range c.varOrder {
		out = append(out, Variable{Name: name, Type: c.vars[name]})
	}
	return out
}
