// Package seed reads the ordered identity list a sync pass works through.
package seed

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when a seed source yields no identities.
var ErrEmpty = eris.New("seed: no identities")

// identityHeaders are first-row labels that mark a header rather than data.
var identityHeaders = map[string]bool{
	"identity": true,
	"姓名":       true,
	"player":   true,
	"handle":   true,
	"name":     true,
	"id":       true,
}

// Load reads identities from path. The format follows the extension: .yaml
// and .yml hold a "players" list, .csv and .xlsx a table whose identity
// column is found by header (else the first column is used), anything else is
// one identity per line with "#" comments. Duplicates are dropped keeping the
// first occurrence.
func Load(path string) ([]string, error) {
	var (
		ids []string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ids, err = loadYAML(path)
	case ".csv":
		ids, err = loadCSV(path)
	case ".xlsx":
		ids, err = loadXLSX(path)
	default:
		ids, err = loadText(path)
	}
	if err != nil {
		return nil, err
	}
	ids = Dedupe(ids)
	if len(ids) == 0 {
		return nil, eris.Wrapf(ErrEmpty, "seed: %s", path)
	}
	return ids, nil
}

// Dedupe trims identities, drops blanks and repeats, and keeps first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// FromRows picks the identity column out of a table. A first row containing a
// recognized identity label is a header; otherwise every row is data and the
// first column holds identities.
func FromRows(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	col := 0
	start := 0
	for i, h := range rows[0] {
		if identityHeaders[strings.ToLower(strings.TrimSpace(h))] {
			col = i
			start = 1
			break
		}
	}
	var out []string
	for _, row := range rows[start:] {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out
}

type yamlSeed struct {
	Players []string `yaml:"players"`
}

func loadYAML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	var s yamlSeed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrapf(err, "seed: parse yaml %s", path)
	}
	return s.Players, nil
}

func loadCSV(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: read %s", path)
	}
	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	r.Comment = '#'
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "seed: parse csv %s", path)
	}
	return FromRows(rows), nil
}

func loadXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("seed: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return FromRows(rows), nil
}

func loadText(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return ParseText(f)
}

// ParseText reads one identity per line, skipping blank lines and "#" comments.
func ParseText(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	var out []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, eris.Wrap(sc.Err(), "seed: scan text")
}
