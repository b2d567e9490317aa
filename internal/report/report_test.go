package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
	"github.com/APTlantis/ROM-Verify/internal/verify"
)

func sampleReports() []verify.Report {
	return []verify.Report{
		{Category: "USA", Confirmed: 1, Original: 3, Percent: 100.0 / 3, Missing: []catalog.Entry{
			{Name: "Contra (USA)", CRC: 0x0000abcd},
			{Name: "Metroid (USA)", CRC: 0xdeadbeef},
		}},
		{Category: "Japan", Confirmed: 2, Original: 2, Percent: 100},
		{Category: "Europe"},
		// overlapping category repeats an entry
		{Category: "USA, Europe", Confirmed: 0, Original: 1, Missing: []catalog.Entry{
			{Name: "Contra (USA)", CRC: 0x0000abcd},
		}},
	}
}

func TestCategoryLine(t *testing.T) {
	r := sampleReports()
	assert.Equal(t, "USA          33.33%         1/3", CategoryLine(r[0]))
	assert.Equal(t, "Japan          100%         2/2", CategoryLine(r[1]))
	assert.Equal(t, "Europe        empty         0/0", CategoryLine(r[2]))
	assert.Equal(t, "USA, Europe       0%         0/1", CategoryLine(r[3]))
}

func TestMissingLinesSortedAndUnique(t *testing.T) {
	assert.Equal(t, []string{
		"(0000abcd) Contra (USA)",
		"(deadbeef) Metroid (USA)",
	}, MissingLines(sampleReports()))
	assert.Empty(t, MissingLines(nil))
}

func TestPrinterSummaryPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PlainStyles())
	p.Summary(verify.Summary{
		Collection:  "nes",
		Reports:     sampleReports()[:2],
		Files:       verify.FileStats{Candidates: 4, Hashed: 3, Matched: 3, Skipped: 1},
		BytesHashed: 2048,
		Duration:    1500 * time.Millisecond,
	})
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "nes", lines[0])
	assert.Contains(t, lines[1], "4 files, 3 hashed (2.0 kB)")
	assert.Contains(t, lines[1], "1 skipped")
	assert.Equal(t, "USA          33.33%         1/3", lines[2])
	assert.NotContains(t, out, "\x1b[")
}

func TestNewStylesOnBufferIsPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, NewStyles(&buf))
	p.Missing(sampleReports())
	assert.Equal(t, "(0000abcd) Contra (USA)\n(deadbeef) Metroid (USA)\n", buf.String())
}

func TestWriteMissingPlainAndZstd(t *testing.T) {
	dir := t.TempDir()
	want := "(0000abcd) Contra (USA)\n(deadbeef) Metroid (USA)\n"

	plain := filepath.Join(dir, "missing.txt")
	require.NoError(t, WriteMissing(plain, sampleReports()))
	got, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	packed := filepath.Join(dir, "missing.txt.zst")
	require.NoError(t, WriteMissing(packed, sampleReports()))
	f, err := os.Open(packed)
	require.NoError(t, err)
	defer f.Close()
	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()
	got, err = io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestWriteSummaryFormats(t *testing.T) {
	dir := t.TempDir()
	sums := []verify.Summary{{
		Collection:  "nes",
		Reports:     sampleReports()[:1],
		Files:       verify.FileStats{Candidates: 1, Hashed: 1, Matched: 1},
		BytesHashed: 1000,
		Duration:    time.Second,
	}}

	jsonPath := filepath.Join(dir, "summary.json")
	require.NoError(t, WriteSummary(jsonPath, sums))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var docs []summaryDoc
	require.NoError(t, json.Unmarshal(raw, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "nes", docs[0].Collection)
	assert.Equal(t, "1.0 kB", docs[0].Size)
	assert.Equal(t, "1s", docs[0].Duration)
	require.Len(t, docs[0].Categories, 1)
	assert.Equal(t, missingDoc{CRC: "deadbeef", Name: "Metroid (USA)"}, docs[0].Categories[0].Missing[1])

	yamlPath := filepath.Join(dir, "summary.yml")
	require.NoError(t, WriteSummary(yamlPath, sums))
	raw, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var ydocs []summaryDoc
	require.NoError(t, yaml.Unmarshal(raw, &ydocs))
	assert.Equal(t, docs, ydocs)
	assert.Contains(t, string(raw), "0000abcd")

	err = WriteSummary(filepath.Join(dir, "summary.txt"), sums)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestBarUpdate(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf, time.Hour)

	b.Update(verify.Progress{Category: "USA", Done: 1, Total: 4, Confirmed: 1, Original: 10})
	// throttled
	b.Update(verify.Progress{Category: "USA", Done: 2, Total: 4, Confirmed: 1, Original: 10})
	// completion always draws
	b.Update(verify.Progress{Category: "USA", Done: 4, Total: 4, Confirmed: 3, Original: 10})
	b.Update(verify.Progress{Category: "Japan", Done: 1, Total: 1, Confirmed: 0, Original: 0})
	b.Done()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "\r"))
	assert.Contains(t, out, "1/10")
	assert.NotContains(t, out, "2/4")
	assert.Contains(t, out, "3/10")
	assert.Contains(t, out, "Japan")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestIsTerminalOnFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
