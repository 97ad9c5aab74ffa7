package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"despesas/internal/core"
	"despesas/internal/dashboard"
)

// PDFFilename is the download name of the PDF report.
const PDFFilename = "relatorio_financeiro_detalhado.pdf"

var (
	headerColor     = [3]int{11, 95, 215}
	headerTextColor = [3]int{255, 255, 255}
	bodyTextColor   = [3]int{33, 33, 33}
	gridColor       = [3]int{160, 160, 160}
)

// WritePDF renders a landscape report with a per-category summary followed
// by every record and its share of its category.
func WritePDF(w io.Writer, records []core.Expense, generatedAt time.Time) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, tr("Gerado em "+generatedAt.Format("02/01/2006 15:04")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	pdf.CellFormat(0, 10, tr("Relatório Financeiro - Sumário por Categoria"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	total := dashboard.Total(records)
	categories := dashboard.GroupByCategory(records)
	catTotals := make(map[string]int64, len(categories))

	summaryWidths := []float64{90, 60, 40}
	tableHeader(pdf, tr, summaryWidths, []string{"Categoria", "Total (R$)", "% do Total"})
	pdf.SetFont("Arial", "", 10)
	for _, c := range categories {
		catTotals[c.Name] = c.Value.Cents
		cells := []string{c.Name, dashboard.FormatMoney(c.Value), percent(c.Value.Cents, total.Cents)}
		tableRow(pdf, tr, summaryWidths, cells)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, tr("Detalhamento por Categoria"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	detailWidths := []float64{30, 45, 120, 40, 35}
	tableHeader(pdf, tr, detailWidths, []string{"Data", "Categoria", "Descrição", "Valor (R$)", "% da Categoria"})
	pdf.SetFont("Arial", "", 9)
	for _, e := range records {
		cells := []string{e.Date, e.Category, truncate(e.Description, 80), dashboard.FormatMoney(e.Amount), percent(e.Amount.Cents, catTotals[e.Category])}
		tableRow(pdf, tr, detailWidths, cells)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func tableHeader(pdf *gofpdf.Fpdf, tr func(string) string, widths []float64, cols []string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
	pdf.SetDrawColor(gridColor[0], gridColor[1], gridColor[2])
	for i, c := range cols {
		pdf.CellFormat(widths[i], 8, tr(c), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
}

func tableRow(pdf *gofpdf.Fpdf, tr func(string) string, widths []float64, cells []string) {
	for i, c := range cells {
		align := "L"
		if i >= len(cells)-2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(c), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func percent(part, whole int64) string {
	if whole <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(whole)*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
