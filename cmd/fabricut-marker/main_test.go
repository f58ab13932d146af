package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shirtCSV = "Piece,Size,Width,Length,Qty\nFront,M,70,50,4\nSleeve,M,35,60,4\nCollar,M,45,9,2\n"

func writePieces(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "shirt.csv")
	require.NoError(t, os.WriteFile(path, []byte(shirtCSV), 0o644))
	return dir, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLayout_WritesAllFormats(t *testing.T) {
	dir, input := writePieces(t)
	pdfPath := filepath.Join(dir, "marker.pdf")
	xlsPath := filepath.Join(dir, "marker.xlsx")
	dxfBase := filepath.Join(dir, "dxf", "marker")

	out, err := run(t, "layout", input,
		"--settings", filepath.Join(dir, "missing.json"),
		"--width", "150", "--max-length", "300", "--seam", "0.5", "--grain",
		"--pdf", pdfPath, "--xlsx", xlsPath, "--dxf", dxfBase)
	require.NoError(t, err)

	assert.Contains(t, out, "Sheet 1:")
	assert.Contains(t, out, "Total fabric:")
	assert.FileExists(t, pdfPath)
	assert.FileExists(t, xlsPath)
	assert.FileExists(t, filepath.Join(dir, "dxf", "marker-sheet1.dxf"))
}

func TestLayout_PieceWiderThanFabric(t *testing.T) {
	dir, input := writePieces(t)

	_, err := run(t, "layout", input, "--settings", filepath.Join(dir, "missing.json"),
		"--width", "40", "--grain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wider than the fabric")
}

func TestLayout_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(input, nil, 0o644))

	_, err := run(t, "layout", input, "--settings", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pieces read")
}

func TestCompare_PrintsScenarios(t *testing.T) {
	dir, input := writePieces(t)

	out, err := run(t, "compare", input, "--settings", filepath.Join(dir, "missing.json"), "--seam", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "Current Settings")
	assert.Contains(t, out, "Grain Locked")
	assert.Contains(t, out, "Seam 0.50cm (half)")
}

func TestSheetPath(t *testing.T) {
	assert.Equal(t, "out/marker-sheet2.dxf", sheetPath("out/marker.dxf", 2))
	assert.Equal(t, "marker-sheet1.dxf", sheetPath("marker", 1))
}

func TestEstimate_PrintsPurchase(t *testing.T) {
	_, input := writePieces(t)

	out, err := run(t, "estimate", input, "--width", "150", "--seam", "1", "--price", "6", "--roll", "50")
	require.NoError(t, err)

	assert.Contains(t, out, "To buy:")
	assert.Contains(t, out, "Rolls:           1 x 50 m")
	assert.Contains(t, out, "Estimated cost:")
}

func TestSettingsInit_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "planning.json")

	out, err := run(t, "settings", "init", "--settings", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Planning settings written")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lay_plan")
}
