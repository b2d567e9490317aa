package verify

import (
	"fmt"

	"github.com/APTlantis/ROM-Verify/internal/archive"
	"github.com/APTlantis/ROM-Verify/internal/romhash"
)

// Hashed is the identity of one candidate file.
type Hashed struct {
	// Entry is the name of the content entry inside the container.
	Entry string
	CRC   uint32
	// Size is the entry size including the stripped header.
	Size int
}

// HashFile extracts the single entry of the container at path and returns the
// checksum of its header-stripped content.
func HashFile(path string) (Hashed, error) {
	e, err := archive.Extract(path)
	if err != nil {
		return Hashed{}, err
	}
	h := Hashed{Entry: e.Name, Size: len(e.Data)}
	crc, err := romhash.Checksum(e.Data)
	if err != nil {
		return h, fmt.Errorf("%s in %s: %w", e.Name, path, err)
	}
	h.CRC = crc
	return h, nil
}
