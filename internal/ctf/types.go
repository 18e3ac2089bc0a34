package ctf

// Member is one field of a struct or union.
type Member struct {
	Name   string
	Type   TypeRef
	Offset uint32 // bit offset within the record
}

// EnumConst is one enumerator of an enum type.
type EnumConst struct {
	Name  string
	Value int64
}

// Type is an in-memory type descriptor. Which fields are meaningful
// depends on Kind; unused fields stay zero.
type Type struct {
	Kind    Kind
	Name    string // empty for unnamed types
	Size    uint32 // byte size for integers, floats and records
	Bits    uint32 // bit width for integers and floats
	Signed  bool
	Ref     TypeRef     // pointee, element, aliased or return type
	Count   uint32      // array element count
	Members []Member    // struct and union fields
	Consts  []EnumConst // enum constants
	Params  []TypeRef   // function parameter types
	FwdKind Kind        // the kind a forward declares
}

// MakeInteger builds a named integer descriptor.
func MakeInteger(name string, bits uint32, signed bool) Type {
	return Type{Kind: KindInteger, Name: name, Size: bits / 8, Bits: bits, Signed: signed}
}

// MakeFloat builds a named floating-point descriptor.
func MakeFloat(name string, bits uint32) Type {
	return Type{Kind: KindFloat, Name: name, Size: bits / 8, Bits: bits}
}

// MakePointer builds an unnamed pointer to ref.
func MakePointer(ref TypeRef) Type {
	return Type{Kind: KindPointer, Ref: ref}
}

// MakeArray builds an unnamed array of count elements of type elem.
func MakeArray(elem TypeRef, count uint32) Type {
	return Type{Kind: KindArray, Ref: elem, Count: count}
}

// MakeTypedef builds a named alias of ref.
func MakeTypedef(name string, ref TypeRef) Type {
	return Type{Kind: KindTypedef, Name: name, Ref: ref}
}

// MakeStruct builds a struct descriptor with the given byte size.
func MakeStruct(name string, size uint32, members ...Member) Type {
	return Type{Kind: KindStruct, Name: name, Size: size, Members: members}
}

// MakeUnion builds a union descriptor with the given byte size.
func MakeUnion(name string, size uint32, members ...Member) Type {
	return Type{Kind: KindUnion, Name: name, Size: size, Members: members}
}

// MakeEnum builds an enum descriptor.
func MakeEnum(name string, consts ...EnumConst) Type {
	return Type{Kind: KindEnum, Name: name, Size: 4, Consts: consts}
}

// MakeForward builds a forward declaration of kind k.
func MakeForward(name string, k Kind) Type {
	return Type{Kind: KindForward, Name: name, FwdKind: k}
}

// MakeFunction builds an unnamed function type.
func MakeFunction(ret TypeRef, params ...TypeRef) Type {
	return Type{Kind: KindFunction, Ref: ret, Params: params}
}
