package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/store"
)

const legacyTable = "identity,team,nationality,age,role\n" +
	"s1mple,Natus Vincere,Ukraine,28,AWPer\n" +
	"ZywOo,Team Vitality,France,25,AWPer\n" +
	"karrigan,FaZe Clan,Denmark,35,Unknown Role\n"

func TestReportCmd_Text(t *testing.T) {
	c, _ := testConfig(t)
	cfg = c
	writeFile(t, cfg.Store.Path, legacyTable)
	reportTop, reportOutput, reportJSON = 0, "", false

	out, err := runCommand(t, reportCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Total players: 3")
	assert.Contains(t, out, "- AWPer: 2")
}

func TestReportCmd_JSONToFile(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	writeFile(t, cfg.Store.Path, legacyTable)
	reportTop, reportOutput, reportJSON = 1, filepath.Join(dir, "out", "report.json"), true
	t.Cleanup(func() { reportTop, reportOutput, reportJSON = 0, "", false })

	out, err := runCommand(t, reportCmd)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(reportOutput)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total": 3`)
}

func TestValidateCmd_Strict(t *testing.T) {
	c, _ := testConfig(t)
	cfg = c
	writeFile(t, cfg.Store.Path, legacyTable+"x,Nobody,Atlantis,99,Rifler\n")

	validateStrict = false
	out, err := runCommand(t, validateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation Report")
	assert.Contains(t, out, "Total records: 4")

	validateStrict = true
	t.Cleanup(func() { validateStrict = false })
	_, err = runCommand(t, validateCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 records invalid")
}

func TestExportCmd_XLSX(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	writeFile(t, cfg.Store.Path, legacyTable)
	exportFormat, exportOutput = "xlsx", filepath.Join(dir, "players.xlsx")
	t.Cleanup(func() { exportFormat, exportOutput = "xlsx", "" })

	_, err := runCommand(t, exportCmd)
	require.NoError(t, err)

	f, err := xlsx.OpenFile(exportOutput)
	require.NoError(t, err)
	require.Contains(t, f.Sheet, "Players")
	assert.Len(t, f.Sheet["Players"].Rows, 4)
}

func TestExportCmd_UnknownFormat(t *testing.T) {
	c, _ := testConfig(t)
	cfg = c
	exportFormat = "pdf"
	t.Cleanup(func() { exportFormat = "xlsx" })

	_, err := runCommand(t, exportCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestImportCmd_MergesLegacyFiles(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c

	// The stored table knows s1mple's team but not his role.
	writeFile(t, cfg.Store.Path, "identity,team,nationality,age,role\n"+
		"s1mple,Natus Vincere,Unknown Nationality,Unknown Age,Unknown Role\n")

	a := filepath.Join(dir, "legacy_a.csv")
	b := filepath.Join(dir, "legacy_b.csv")
	writeFile(t, a, "姓名,队伍,国籍,年龄,游戏内位置\n"+
		"s1mple,未知队伍,Ukraine,未知年龄,AWPer\n"+
		"device,Astralis,Denmark,29,未知位置\n")
	writeFile(t, b, "identity,team,nationality,age,role\n"+
		"device,Unknown Team,Unknown Nationality,Unknown Age,AWPer\n")

	importFrom, importDryRun = []string{a, b}, false
	t.Cleanup(func() { importFrom, importDryRun = nil, false })

	_, err := runCommand(t, importCmd)
	require.NoError(t, err)

	ctx := context.Background()
	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	recs, err := st.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "s1mple", recs[0].Identity)
	assert.Equal(t, "Natus Vincere", recs[0].Team)
	assert.Equal(t, "Ukraine", recs[0].Nationality)
	assert.Equal(t, "AWPer", recs[0].Role)

	assert.Equal(t, "device", recs[1].Identity)
	assert.Equal(t, "Astralis", recs[1].Team)
	assert.Equal(t, 29, recs[1].Age)
	assert.Equal(t, "AWPer", recs[1].Role)
}

func TestImportCmd_RejectsInvalidRows(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	a := filepath.Join(dir, "legacy.csv")
	writeFile(t, a, "identity,team,nationality,age,role\n"+
		"x,Nobody,Atlantis,99,Streamer\n"+
		"zywoo,Vitality,France,99,Streamer\n")

	importFrom, importDryRun = []string{a}, false
	t.Cleanup(func() { importFrom, importDryRun = nil, false })

	_, err := runCommand(t, importCmd)
	require.NoError(t, err)

	st, err := store.NewCSV(cfg.Store.Path, store.CSVOptions{})
	require.NoError(t, err)
	recs, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "zywoo", recs[0].Identity)
	assert.Equal(t, "Vitality", recs[0].Team)
	assert.Equal(t, model.UnknownAge, recs[0].Age)
	assert.Equal(t, model.UnknownRole, recs[0].Role)
}

func TestMergeInto_DemotesInvalidStoredFields(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	ctx := context.Background()

	st, err := store.NewCSV(filepath.Join(dir, "players.csv"), store.CSVOptions{})
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, model.PlayerRecord{
		Identity: "s1mple", Team: "Natus Vincere", Nationality: "Ukraine", Age: 99, Role: "Streamer",
	}))

	incoming := []model.PlayerRecord{model.NewPlayerRecord("s1mple")}
	sum, err := mergeInto(ctx, st, buildValidator(), incoming, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.updated)
	assert.Equal(t, 0, sum.rejected)

	got, ok, err := st.Get(ctx, "s1mple")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Natus Vincere", got.Team)
	assert.Equal(t, model.UnknownAge, got.Age)
	assert.Equal(t, model.UnknownRole, got.Role)
}

func TestImportCmd_DryRun(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	a := filepath.Join(dir, "legacy.csv")
	writeFile(t, a, legacyTable)

	importFrom, importDryRun = []string{a}, true
	t.Cleanup(func() { importFrom, importDryRun = nil, false })

	_, err := runCommand(t, importCmd)
	require.NoError(t, err)

	_, err = os.Stat(cfg.Store.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestImportCmd_MissingFile(t *testing.T) {
	c, dir := testConfig(t)
	cfg = c
	importFrom = []string{filepath.Join(dir, "nope.csv")}
	t.Cleanup(func() { importFrom = nil })

	_, err := runCommand(t, importCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import: stat")
}
