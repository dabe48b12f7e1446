package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jamolinav/ai-assist-attorney/models"
)

func TestWriteDetailSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caratulado.xlsx")
	rows := []models.DetailRow{
		{
			Folio:       "12",
			DocURL:      "https://oficinajudicialvirtual.pjud.cl/doc.php",
			DocToken:    "tok",
			Annex:       "(CUA)",
			Stage:       "Tramitación",
			Procedure:   "Resolución",
			Description: "Mero trámite Despáchese",
			Page:        "15",
			Location:    "Cuaderno Principal",
		},
		{Folio: "11", Stage: "Tramitación", Procedure: "Escrito", Description: "Téngase presente"},
	}

	require.NoError(t, WriteDetailSheet(path, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Caratulado"}, f.GetSheetList())

	header, err := f.GetCellValue("Caratulado", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Folio", header)

	folio, err := f.GetCellValue("Caratulado", "A2")
	require.NoError(t, err)
	assert.Equal(t, "12", folio)

	doc, err := f.GetCellValue("Caratulado", "B2")
	require.NoError(t, err)
	assert.Equal(t, "https://oficinajudicialvirtual.pjud.cl/doc.php", doc)

	// Row without a downloadable document leaves the Doc column empty.
	doc2, err := f.GetCellValue("Caratulado", "B3")
	require.NoError(t, err)
	assert.Empty(t, doc2)
}

func TestWriteDetailSheetEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vacio.xlsx")
	require.NoError(t, WriteDetailSheet(path, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Caratulado"}, f.GetSheetList())
}
