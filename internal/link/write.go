package link

import (
	"fmt"

	"ctfld/internal/archive"
	"ctfld/internal/ctfdebug"
)

// Write finalizes every output container and emits the link result as a
// contiguous byte buffer: the shared container alone when no per-CU
// outputs exist, otherwise an archive whose first member is the shared
// container under the default name, followed by the per-CU members in
// creation order. Members larger than threshold are compressed.
func (l *Linker) Write(threshold int) ([]byte, error) {
	if err := l.out.Update(); err != nil {
		return nil, l.writeErr("CTF file construction", err)
	}

	members := make([]archive.Member, 0, len(l.outputOrder)+1)
	for _, name := range l.outputOrder {
		perCU := l.outputs[name]
		if err := perCU.Update(); err != nil {
			return nil, l.writeErr("hash creation", err)
		}
		members = append(members, archive.Member{Name: name, File: perCU})
	}

	// No extra outputs? Just write the shared container.
	if len(members) == 0 {
		buf, err := archive.WriteSingle(l.out, threshold)
		if err != nil {
			return nil, l.writeErr("CTF archive buffer allocation", err)
		}
		return buf, nil
	}

	// The shared repository, parent of all the others, goes on the front
	// under the default name.
	members = append([]archive.Member{{Name: archive.CTFMain, File: l.out}}, members...)

	buf, err := archive.Write(members, threshold)
	if err != nil {
		return nil, l.writeErr("archive writing", err)
	}
	return buf, nil
}

func (l *Linker) writeErr(stage string, err error) error {
	werr := fmt.Errorf("cannot write archive in link: %s failure: %w", stage, err)
	ctfdebug.Printf("%v", werr)
	l.out.SetErr(werr)
	return werr
}
