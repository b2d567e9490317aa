// Package romhash computes the content identity of a cartridge image: a CRC-32
// over the image with its fixed-size leading header removed. Catalogs store the
// same value as an 8 digit lowercase hex string.
package romhash

import (
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// HeaderSize is the length of the cartridge header stripped before hashing
// (the 16 byte iNES header on NES images).
const HeaderSize = 16

// ErrMalformedContent is returned for images too short to carry a header.
var ErrMalformedContent = errors.New("malformed content")

// Checksum strips the header from data and returns the IEEE CRC-32 of the rest.
func Checksum(data []byte) (uint32, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the %d byte header", ErrMalformedContent, len(data), HeaderSize)
	}
	return crc32.ChecksumIEEE(data[HeaderSize:]), nil
}

// Format renders sum the way catalogs store it: zero padded lowercase hex.
func Format(sum uint32) string {
	return fmt.Sprintf("%08x", sum)
}

// Parse reads a catalog checksum. Case and surrounding space are ignored.
func Parse(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty checksum")
	}
	if len(s) > 8 {
		return 0, fmt.Errorf("checksum %q longer than 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("checksum %q: %w", s, err)
	}
	return uint32(v), nil
}
