package archive

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
	"github.com/vmihailenco/msgpack/v5"

	"ctfld/internal/ctf"
)

// archiveMagic prefixes serialized multi-member archives. A buffer that
// instead starts with a container image magic is a bare single container.
const archiveMagic = "CARC"

// compressedMagic prefixes a single container image that was compressed
// because it exceeded the caller's threshold.
const compressedMagic = "CTFZ"

type memberRecord struct {
	Name       string `msgpack:"n"`
	Compressed bool   `msgpack:"z"`
	Data       []byte `msgpack:"d"`
}

type archiveImage struct {
	Members []memberRecord `msgpack:"m"`
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes an ordered member list into a contiguous archive
// buffer. Members whose payload exceeds threshold are individually
// zlib-compressed.
func Write(members []Member, threshold int) ([]byte, error) {
	img := archiveImage{Members: make([]memberRecord, 0, len(members))}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, ok := seen[m.Name]; ok {
			return nil, fmt.Errorf("archive write: member %q: %w", m.Name, ctf.ErrDuplicate)
		}
		seen[m.Name] = struct{}{}

		payload, err := m.File.Bytes()
		if err != nil {
			return nil, fmt.Errorf("archive write: member %q: %w", m.Name, err)
		}
		rec := memberRecord{Name: m.Name, Data: payload}
		if threshold >= 0 && len(payload) > threshold {
			z, err := deflate(payload)
			if err != nil {
				return nil, fmt.Errorf("archive write: compress member %q: %w", m.Name, err)
			}
			rec.Compressed = true
			rec.Data = z
		}
		img.Members = append(img.Members, rec)
	}

	body, err := msgpack.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("archive write: %w", err)
	}
	buf := make([]byte, 0, len(archiveMagic)+len(body))
	buf = append(buf, archiveMagic...)
	buf = append(buf, body...)
	return buf, nil
}

// WriteSingle serializes one container as a standalone buffer, compressed
// as a whole when its image exceeds threshold.
func WriteSingle(c *ctf.Container, threshold int) ([]byte, error) {
	payload, err := c.Bytes()
	if err != nil {
		return nil, fmt.Errorf("container write: %w", err)
	}
	if threshold < 0 || len(payload) <= threshold {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	z, err := deflate(payload)
	if err != nil {
		return nil, fmt.Errorf("container write: compress: %w", err)
	}
	buf := make([]byte, 0, len(compressedMagic)+len(z))
	buf = append(buf, compressedMagic...)
	buf = append(buf, z...)
	return buf, nil
}
