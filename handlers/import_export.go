package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"catalog-backend/dtos"
	"catalog-backend/importer"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errorExportHeaders = []string{"Linha", "Produto", "Erro", "Detalhes", "Tentativa"}

type templateColumn struct {
	Field       importer.Field
	Description string
	Example     string
	Required    bool
}

var templateColumns = []templateColumn{
	{importer.FieldName, "Nome do produto (até 255 caracteres)", "Anel Solitário Prata", true},
	{importer.FieldDescription, "Descrição livre", "Anel em prata 925 com zircônia", false},
	{importer.FieldSKU, "Código único do produto (até 100 caracteres)", "AN-0001", false},
	{importer.FieldBasePrice, "Preço base, aceita vírgula ou ponto decimal", "129,90", true},
	{importer.FieldWeight, "Peso em gramas", "3,5", false},
	{importer.FieldCategory, "Nome da categoria", "Anéis", false},
	{importer.FieldMaterial, "Nome do material", "Prata 925", false},
	{importer.FieldSize, "Tamanho da variante", "16", false},
	{importer.FieldColor, "Cor da variante", "Prata", false},
	{importer.FieldWidth, "Largura da variante", "2mm", false},
	{importer.FieldImages, "URLs separadas por vírgula ou ponto e vírgula", "https://cdn.exemplo.com/an-0001.jpg", false},
	{importer.FieldStockQuantity, "Quantidade em estoque", "10", false},
}

// ExportErrors downloads a job's error log as CSV (default) or XLSX.
func (h *ImportHandler) ExportErrors(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	outcomes, err := dtos.DecodeOutcomes(job.ErrorLog)
	if err != nil {
		h.Logger.WithError(err).WithField("job_id", job.ID).Error("Corrupt import error log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read error log"})
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", "attachment; filename="+exportFileName(job.ID, "csv"))
		c.Status(http.StatusOK)

		writer := csv.NewWriter(c.Writer)
		writer.Write(errorExportHeaders)
		for _, o := range outcomes {
			writer.Write(errorRecord(o))
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			h.Logger.WithError(err).Warn("Failed to write error export")
		}
	case "xlsx":
		f, err := errorWorkbook(outcomes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build spreadsheet"})
			return
		}
		defer f.Close()

		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", "attachment; filename="+exportFileName(job.ID, "xlsx"))
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			h.Logger.WithError(err).Warn("Failed to write error export")
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
	}
}

func errorRecord(o dtos.RowOutcome) []string {
	row := ""
	if o.Row > 0 {
		row = strconv.Itoa(o.Row)
	}
	attempt := ""
	if o.RetryAttempt > 0 {
		attempt = strconv.Itoa(o.RetryAttempt)
	}
	return []string{row, o.Product, o.Error, o.Details, attempt}
}

func errorWorkbook(outcomes []dtos.RowOutcome) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Erros"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C00000"}, Pattern: 1},
	})

	for i, header := range errorExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "D", 40)
	f.SetColWidth(sheet, "E", "E", 12)

	for r, o := range outcomes {
		for col, value := range errorRecord(o) {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			f.SetCellValue(sheet, cell, value)
		}
	}
	return f, nil
}

// DownloadTemplate serves an XLSX with one column per mappable field, a sample
// row and an instructions sheet.
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Produtos"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range templateColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, string(col.Field))
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		sample, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, sample, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	f.NewSheet("Instruções")
	f.SetCellValue("Instruções", "A1", "Campo")
	f.SetCellValue("Instruções", "B1", "Descrição")
	f.SetCellValue("Instruções", "C1", "Obrigatório")
	for i, col := range templateColumns {
		row := strconv.Itoa(i + 2)
		required := "Não"
		if col.Required {
			required = "Sim"
		}
		f.SetCellValue("Instruções", "A"+row, string(col.Field))
		f.SetCellValue("Instruções", "B"+row, col.Description)
		f.SetCellValue("Instruções", "C"+row, required)
	}
	f.SetColWidth("Instruções", "A", "A", 20)
	f.SetColWidth("Instruções", "B", "B", 50)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=modelo_importacao_produtos.xlsx")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.Logger.WithError(err).Warn("Failed to write import template")
	}
}
