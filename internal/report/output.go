package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/APTlantis/ROM-Verify/internal/romhash"
	"github.com/APTlantis/ROM-Verify/internal/verify"
)

// ErrUnknownFormat is returned for a summary path with an unrecognized
// extension.
var ErrUnknownFormat = errors.New("unknown summary format")

// WriteMissing writes the missing list of reports to path, one "(crc) name"
// line each. A path ending in .zst is zstd compressed.
func WriteMissing(path string, reports []verify.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	var zw *zstd.Encoder
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		zw, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		w = zw
	}

	bw := bufio.NewWriter(w)
	for _, line := range MissingLines(reports) {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}

type missingDoc struct {
	CRC  string `json:"crc" yaml:"crc"`
	Name string `json:"name" yaml:"name"`
}

type categoryDoc struct {
	Category  string       `json:"category" yaml:"category"`
	Confirmed int          `json:"confirmed" yaml:"confirmed"`
	Original  int          `json:"original" yaml:"original"`
	Percent   float64      `json:"percent" yaml:"percent"`
	Empty     bool         `json:"empty,omitempty" yaml:"empty,omitempty"`
	Missing   []missingDoc `json:"missing" yaml:"missing"`
}

type summaryDoc struct {
	Collection  string           `json:"collection" yaml:"collection"`
	Categories  []categoryDoc    `json:"categories" yaml:"categories"`
	Files       verify.FileStats `json:"files" yaml:"files"`
	BytesHashed int64            `json:"bytes_hashed" yaml:"bytes_hashed"`
	Size        string           `json:"size" yaml:"size"`
	Duration    string           `json:"duration" yaml:"duration"`
}

func newSummaryDoc(sum verify.Summary) summaryDoc {
	doc := summaryDoc{
		Collection:  sum.Collection,
		Categories:  make([]categoryDoc, 0, len(sum.Reports)),
		Files:       sum.Files,
		BytesHashed: sum.BytesHashed,
		Size:        humanize.Bytes(uint64(sum.BytesHashed)),
		Duration:    sum.Duration.String(),
	}
	for _, r := range sum.Reports {
		cd := categoryDoc{
			Category:  r.Category,
			Confirmed: r.Confirmed,
			Original:  r.Original,
			Percent:   r.Percent,
			Empty:     r.Empty(),
			Missing:   make([]missingDoc, 0, len(r.Missing)),
		}
		for _, e := range r.Missing {
			cd.Missing = append(cd.Missing, missingDoc{CRC: romhash.Format(e.CRC), Name: e.Name})
		}
		doc.Categories = append(doc.Categories, cd)
	}
	return doc
}

// FormatOf maps a summary path to "json" or "yaml".
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// EncodeSummary writes sums to w in format ("json" or "yaml").
func EncodeSummary(w io.Writer, format string, sums []verify.Summary) error {
	docs := make([]summaryDoc, 0, len(sums))
	for _, s := range sums {
		docs = append(docs, newSummaryDoc(s))
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteSummary writes sums to path, choosing JSON or YAML by extension.
func WriteSummary(path string, sums []verify.Summary) (err error) {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := EncodeSummary(bw, format, sums); err != nil {
		return err
	}
	return bw.Flush()
}
