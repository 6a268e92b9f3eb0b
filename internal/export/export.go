// Package export writes the player table and its report to files meant for
// people rather than for the next sync pass.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/report"
	"github.com/sells-group/roster-cli/internal/store"
)

// Formats accepted by Write.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Options controls labels and encoding of exported files.
type Options struct {
	Locale   string
	WriteBOM bool
}

// Write exports records in format to path. The report is only used by xlsx.
func Write(format, path string, records []model.PlayerRecord, rep report.Report, opts Options) error {
	switch format {
	case FormatCSV:
		return WriteCSV(path, records, opts)
	case FormatXLSX:
		return WriteXLSX(path, records, rep, opts)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteCSV writes records with the localized header and sentinel labels,
// replacing any existing file.
func WriteCSV(path string, records []model.PlayerRecord, opts Options) error {
	labels, err := labelsFor(opts.Locale)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, labels.Header())
	for _, rec := range records {
		rows = append(rows, labels.Row(rec))
	}

	if opts.WriteBOM {
		tw := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
		if err := csv.NewWriter(tw).WriteAll(rows); err != nil {
			return eris.Wrap(err, "export: write csv")
		}
		return eris.Wrap(tw.Close(), "export: flush csv")
	}
	return eris.Wrap(csv.NewWriter(f).WriteAll(rows), "export: write csv")
}

// WriteXLSX writes a "Players" sheet and a "Report" sheet.
func WriteXLSX(path string, records []model.PlayerRecord, rep report.Report, opts Options) error {
	labels, err := labelsFor(opts.Locale)
	if err != nil {
		return err
	}
	f := xlsx.NewFile()

	players, err := f.AddSheet("Players")
	if err != nil {
		return eris.Wrap(err, "export: add players sheet")
	}
	addRow(players, append(labels.Header(), "source")...)
	for _, rec := range records {
		row := players.AddRow()
		cells := labels.Row(rec)
		for i, c := range cells {
			cell := row.AddCell()
			if i == 3 && rec.Known(model.FieldAge) {
				cell.SetInt(rec.Age)
				continue
			}
			cell.SetString(c)
		}
		row.AddCell().SetString(rec.Source)
	}

	sheet, err := f.AddSheet("Report")
	if err != nil {
		return eris.Wrap(err, "export: add report sheet")
	}
	writeReportSheet(sheet, rep)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create dir")
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	zap.L().Info("export: wrote workbook", zap.String("path", path), zap.Int("players", len(records)))
	return nil
}

func writeReportSheet(sheet *xlsx.Sheet, rep report.Report) {
	addRow(sheet, "Total players", strconv.Itoa(rep.Total))
	addRow(sheet, "Complete records", strconv.Itoa(rep.Complete))
	sheet.AddRow()

	addRow(sheet, "Field", "Known", "Percent")
	for _, c := range rep.Completeness {
		addRow(sheet, string(c.Field), strconv.Itoa(c.Known), strconv.FormatFloat(c.Percent, 'f', 1, 64))
	}
	sheet.AddRow()

	addRow(sheet, "Nationality", "Players")
	for _, c := range rep.TopNationalities() {
		addRow(sheet, c.Label, strconv.Itoa(c.N))
	}
	sheet.AddRow()

	addRow(sheet, "Role", "Players")
	for _, c := range rep.Roles {
		addRow(sheet, c.Label, strconv.Itoa(c.N))
	}
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func labelsFor(locale string) (store.Labels, error) {
	if locale == "" {
		locale = store.LocaleEN
	}
	return store.LabelsFor(locale)
}
