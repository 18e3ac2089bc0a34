package ctf

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// ImageMagic prefixes every serialized container image.
const ImageMagic = "CTF\x01"

// extStrBit tags a serialized string reference as an offset into the
// host's external string section rather than the container's own atoms.
const extStrBit = uint32(1) << 31

type memberImage struct {
	Name   uint32 `msgpack:"n"`
	Type   uint32 `msgpack:"t"`
	Offset uint32 `msgpack:"o"`
}

type constImage struct {
	Name  uint32 `msgpack:"n"`
	Value int64  `msgpack:"v"`
}

type typeImage struct {
	Kind    uint8         `msgpack:"k"`
	Name    uint32        `msgpack:"n"`
	Size    uint32        `msgpack:"s"`
	Bits    uint32        `msgpack:"b"`
	Signed  bool          `msgpack:"g"`
	Ref     uint32        `msgpack:"r"`
	Count   uint32        `msgpack:"c"`
	Members []memberImage `msgpack:"m,omitempty"`
	Consts  []constImage  `msgpack:"e,omitempty"`
	Params  []uint32      `msgpack:"p,omitempty"`
	FwdKind uint8         `msgpack:"f"`
}

type varImage struct {
	Name uint32 `msgpack:"n"`
	Type uint32 `msgpack:"t"`
}

type containerImage struct {
	CUName   string            `msgpack:"cu"`
	Types    []typeImage       `msgpack:"ty"`
	Vars     []varImage        `msgpack:"va"`
	Atoms    []string          `msgpack:"at"`
	External map[uint32]string `msgpack:"ex,omitempty"`
}

// strRef encodes a string as a reference: external offset when the string
// is known to the external table, atom offset otherwise.
func (c *Container) strRef(s string) uint32 {
	if off, ok := c.externalByStr[s]; ok {
		return off | extStrBit
	}
	return c.AddString(s)
}

// Update materializes the container's dirty type and variable buffers into
// the serialized image. Variables are emitted sorted by name.
func (c *Container) Update() error {
	img := containerImage{CUName: c.cuName}

	img.Types = make([]typeImage, 0, c.TypeCount())
	for i := 1; i < len(c.types); i++ {
		t := &c.types[i]
		ti := typeImage{
			Kind:    uint8(t.Kind),
			Name:    c.strRef(t.Name),
			Size:    t.Size,
			Bits:    t.Bits,
			Signed:  t.Signed,
			Ref:     uint32(t.Ref),
			Count:   t.Count,
			FwdKind: uint8(t.FwdKind),
		}
		for _, m := range t.Members {
			ti.Members = append(ti.Members, memberImage{
				Name:   c.strRef(m.Name),
				Type:   uint32(m.Type),
				Offset: m.Offset,
			})
		}
		for _, e := range t.Consts {
			ti.Consts = append(ti.Consts, constImage{Name: c.strRef(e.Name), Value: e.Value})
		}
		for _, p := range t.Params {
			ti.Params = append(ti.Params, uint32(p))
		}
		img.Types = append(img.Types, ti)
	}

	names := make([]string, len(c.varOrder))
	copy(names, c.varOrder)
	sort.Strings(names)
	img.Vars = make([]varImage, 0, len(names))
	for _, name := range names {
		img.Vars = append(img.Vars, varImage{Name: c.strRef(name), Type: uint32(c.vars[name])})
	}

	img.Atoms = c.atomOrder
	if len(c.external) > 0 {
		img.External = c.external
	}

	body, err := msgpack.Marshal(&img)
	if err != nil {
		return fmt.Errorf("container update: %w", err)
	}
	buf := make([]byte, 0, len(ImageMagic)+len(body))
	buf = append(buf, ImageMagic...)
	buf = append(buf, body...)
	c.image = buf
	c.dirty = false
	return nil
}

// Bytes returns the serialized container image, updating first when dirty.
func (c *Container) Bytes() ([]byte, error) {
	if c.dirty {
		if err := c.Update(); err != nil {
			return nil, err
		}
	}
	return c.image, nil
}

// Size returns the serialized size in bytes of the container image.
func (c *Container) Size() int {
	if c.dirty {
		if err := c.Update(); err != nil {
			return 0
		}
	}
	return len(c.image)
}

// IsImage reports whether data starts with a container image magic.
func IsImage(data []byte) bool {
	return len(data) >= len(ImageMagic) && bytes.Equal(data[:len(ImageMagic)], []byte(ImageMagic))
}

// Decode reconstructs a container from a serialized image.
func Decode(data []byte) (*Container, error) {
	if !IsImage(data) {
		return nil, fmt.Errorf("container decode: bad magic: %w", ErrFormat)
	}
	var img containerImage
	if err := msgpack.Unmarshal(data[len(ImageMagic):], &img); err != nil {
		return nil, fmt.Errorf("container decode: %w", ErrFormat)
	}

	c := NewContainer()
	c.cuName = img.CUName

	atoms := make(map[uint32]string, len(img.Atoms))
	var off uint32
	for _, s := range img.Atoms {
		atoms[off] = s
		if s != "" {
			c.AddString(s)
		}
		off += uint32(len(s)) + 1
	}
	for o, s := range img.External {
		c.AddExternalString(s, o)
	}

	str := func(ref uint32) (string, error) {
		if ref&extStrBit != 0 {
			if s, ok := img.External[ref&^extStrBit]; ok {
				return s, nil
			}
			return "", fmt.Errorf("container decode: unresolved external string %#x: %w", ref, ErrFormat)
		}
		if s, ok := atoms[ref]; ok {
			return s, nil
		}
		return "", fmt.Errorf("container decode: unresolved string offset %d: %w", ref, ErrFormat)
	}

	for _, ti := range img.Types {
		name, err := str(ti.Name)
		if err != nil {
			return nil, err
		}
		t := Type{
			Kind:    Kind(ti.Kind),
			Name:    name,
			Size:    ti.Size,
			Bits:    ti.Bits,
			Signed:  ti.Signed,
			Ref:     TypeRef(ti.Ref),
			Count:   ti.Count,
			FwdKind: Kind(ti.FwdKind),
		}
		for _, mi := range ti.Members {
			mname, err := str(mi.Name)
			if err != nil {
				return nil, err
			}
			t.Members = append(t.Members, Member{Name: mname, Type: TypeRef(mi.Type), Offset: mi.Offset})
		}
		for _, ei := range ti.Consts {
			ename, err := str(ei.Name)
			if err != nil {
				return nil, err
			}
			t.Consts = append(t.Consts, EnumConst{Name: ename, Value: ei.Value})
		}
		for _, p := range ti.Params {
			t.Params = append(t.Params, TypeRef(p))
		}
		if _, err := c.addLocal(t); err != nil {
			return nil, err
		}
	}

	for _, vi := range img.Vars {
		name, err := str(vi.Name)
		if err != nil {
			return nil, err
		}
		if err := c.AddVariable(name, TypeRef(vi.Type)); err != nil {
			return nil, err
		}
	}

	c.image = data
	c.dirty = false
	return c, nil
}
