package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/vmihailenco/msgpack/v5"

	"ctfld/internal/ctf"
)

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Open decodes an archive buffer. A bare container image, compressed or
// not, presents as a single-member archive under the default name.
func Open(data []byte) (*Archive, error) {
	switch {
	case hasMagic(data, archiveMagic):
		var img archiveImage
		if err := msgpack.Unmarshal(data[len(archiveMagic):], &img); err != nil {
			return nil, fmt.Errorf("archive open: %w", ctf.ErrFormat)
		}
		members := make([]Member, 0, len(img.Members))
		for _, rec := range img.Members {
			payload := rec.Data
			if rec.Compressed {
				raw, err := inflate(payload)
				if err != nil {
					return nil, fmt.Errorf("archive open: member %q: %w", rec.Name, ctf.ErrFormat)
				}
				payload = raw
			}
			c, err := ctf.Decode(payload)
			if err != nil {
				return nil, fmt.Errorf("archive open: member %q: %w", rec.Name, err)
			}
			members = append(members, Member{Name: rec.Name, File: c})
		}
		return New(members...)

	case hasMagic(data, compressedMagic):
		raw, err := inflate(data[len(compressedMagic):])
		if err != nil {
			return nil, fmt.Errorf("archive open: %w", ctf.ErrFormat)
		}
		c, err := ctf.Decode(raw)
		if err != nil {
			return nil, err
		}
		return New(Member{Name: CTFMain, File: c})

	case ctf.IsImage(data):
		c, err := ctf.Decode(data)
		if err != nil {
			return nil, err
		}
		return New(Member{Name: CTFMain, File: c})

	default:
		return nil, fmt.Errorf("archive open: unrecognized magic: %w", ctf.ErrFormat)
	}
}

func hasMagic(data []byte, magic string) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}
