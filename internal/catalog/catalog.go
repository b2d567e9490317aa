// Package catalog reads reference catalogs (No-Intro style XML DAT files) and
// splits them into per-category shards keyed by checksum.
//
// A DAT looks like:
//
//	<datafile>
//	  <header><name>Nintendo - Nintendo Entertainment System</name>...</header>
//	  <game name="Game A (USA)">
//	    <rom name="Game A (USA).nes" size="40976" crc="deadbeef" .../>
//	  </game>
//	</datafile>
//
// Only the game name and the crc of its first checksum-bearing rom are used.
package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/APTlantis/ROM-Verify/internal/romhash"
)

var (
	// ErrCatalogUnreadable means the catalog could not be opened or parsed.
	ErrCatalogUnreadable = errors.New("catalog unreadable")
	// ErrMalformedRecord marks a single game record that was skipped.
	ErrMalformedRecord = errors.New("malformed catalog record")
)

// Entry is one known-good catalog entry.
type Entry struct {
	Name string
	CRC  uint32
}

// Catalog is a parsed DAT. Entries keep document order.
type Catalog struct {
	Name        string
	Description string
	Version     string
	Entries     []Entry
	// Malformed holds one ErrMalformedRecord per skipped record.
	Malformed []error
}

type datHeader struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
}

type datRom struct {
	Name string `xml:"name,attr"`
	CRC  string `xml:"crc,attr"`
}

type datGame struct {
	Name string   `xml:"name,attr"`
	Roms []datRom `xml:"rom"`
}

// Parse reads a DAT document. Records without a usable checksum are skipped and
// recorded in Malformed; a document that is not well formed XML, or has no root
// element, fails with ErrCatalogUnreadable.
func Parse(r io.Reader) (*Catalog, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	cat := &Catalog{}
	depth := 0
	root := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnreadable, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				root = true
				depth++
				continue
			}
			if depth == 1 {
				switch t.Name.Local {
				case "header":
					var h datHeader
					if err := dec.DecodeElement(&h, &t); err != nil {
						return nil, fmt.Errorf("%w: header: %v", ErrCatalogUnreadable, err)
					}
					cat.Name = strings.TrimSpace(h.Name)
					cat.Description = strings.TrimSpace(h.Description)
					cat.Version = strings.TrimSpace(h.Version)
					continue
				case "game", "machine":
					var g datGame
					if err := dec.DecodeElement(&g, &t); err != nil {
						return nil, fmt.Errorf("%w: game: %v", ErrCatalogUnreadable, err)
					}
					cat.add(g)
					continue
				}
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if !root {
		return nil, fmt.Errorf("%w: no root element", ErrCatalogUnreadable)
	}
	return cat, nil
}

func (c *Catalog) add(g datGame) {
	if g.Name == "" {
		c.skip(g.Name, errors.New("game has no name"))
		return
	}
	for _, rom := range g.Roms {
		if strings.TrimSpace(rom.CRC) == "" {
			continue
		}
		crc, err := romhash.Parse(rom.CRC)
		if err != nil {
			c.skip(g.Name, err)
			return
		}
		c.Entries = append(c.Entries, Entry{Name: g.Name, CRC: crc})
		return
	}
	c.skip(g.Name, errors.New("no rom with a crc"))
}

func (c *Catalog) skip(name string, reason error) {
	err := fmt.Errorf("%w: %q: %v", ErrMalformedRecord, name, reason)
	c.Malformed = append(c.Malformed, err)
	slog.Warn("catalog_record_skipped", "game", name, "err", reason)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Shard maps checksum to game name for the entries of one category.
type Shard map[uint32]string

// Partition builds one shard per category. An entry belongs to a category when
// its name contains the category string (case sensitive), so an entry may land
// in several shards. When two entries in a category share a checksum the later
// one wins. The returned counts are the shard sizes before any verification.
func (c *Catalog) Partition(categories []string) (map[string]Shard, map[string]int) {
	shards := make(map[string]Shard, len(categories))
	counts := make(map[string]int, len(categories))
	for _, cat := range categories {
		s := make(Shard)
		for _, e := range c.Entries {
			if strings.Contains(e.Name, cat) {
				s[e.CRC] = e.Name
			}
		}
		shards[cat] = s
		counts[cat] = len(s)
	}
	return shards, counts
}

// Lookup returns the first entry with the given checksum.
func (c *Catalog) Lookup(crc uint32) (Entry, bool) {
	for _, e := range c.Entries {
		if e.CRC == crc {
			return e, true
		}
	}
	return Entry{}, false
}
