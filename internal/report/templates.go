package report

import (
	"fmt"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/aurahq/aura/internal/collector"
)

// Professional dark blue palette shared by all templates.
var (
	colorPrimary     = [3]int{30, 58, 95}
	colorSecondary   = [3]int{52, 152, 219}
	colorWarning     = [3]int{241, 196, 15}
	colorDanger      = [3]int{231, 76, 60}
	colorAccent      = [3]int{46, 204, 113}
	colorTextDark    = [3]int{44, 62, 80}
	colorTextMuted   = [3]int{127, 140, 141}
	colorBackground  = [3]int{248, 249, 250}
	colorTableHeader = [3]int{30, 58, 95}
	colorTableAlt    = [3]int{241, 245, 249}
	colorGridLine    = [3]int{220, 220, 220}
)

// coverTemplate draws the report cover page.
func coverTemplate(pdf *fpdf.Fpdf, ctx *RenderContext) {
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	// Top accent bar
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 32)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 15, "AURA", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 8, "Monitoring Analysis Reports", "", 1, "C", false, 0, "")

	pdf.SetY(100)
	pdf.SetFont("Arial", "B", 28)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 12, ctx.ReportName, "", 1, "C", false, 0, "")

	// Client box
	pdf.SetY(130)
	boxWidth := pageWidth - 80
	pdf.SetFillColor(colorBackground[0], colorBackground[1], colorBackground[2])
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	pdf.RoundedRect(40, pdf.GetY(), boxWidth, 45, 3, "1234", "FD")

	pdf.SetY(pdf.GetY() + 10)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "CLIENT", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, ctx.ClientName, "", 1, "C", false, 0, "")

	pdf.SetY(195)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "REPORTING PERIOD", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, fmt.Sprintf("%s - %s", ctx.StartDate, ctx.EndDate), "", 1, "C", false, 0, "")

	// Known only in the final pass.
	if ctx.TotalPages > 0 {
		pdf.SetY(220)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 6, fmt.Sprintf("%d pages", ctx.TotalPages), "", 1, "C", false, 0, "")
	}
}

// moduleTemplate renders one module result: insights, chart, then table.
func moduleTemplate(pdf *fpdf.Fpdf, ctx *RenderContext) {
	pdf.AddPage()
	addModuleHeader(pdf, ctx)

	if ctx.Result == nil {
		return
	}

	if len(ctx.Result.Insights) > 0 {
		writeInsights(pdf, ctx.Result.Insights)
	}
	if ctx.Result.Chart != nil {
		writeChart(pdf, ctx.Result.Chart)
	}
	if ctx.Result.Table != nil {
		writeTable(pdf, ctx, ctx.Result.Table)
	}
}

func addModuleHeader(pdf *fpdf.Fpdf, ctx *RenderContext) {
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetDrawColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.SetLineWidth(0.5)
	pdf.Line(20, 15, pageWidth-20, 15)

	pdf.SetY(18)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 5, ctx.ReportName, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 5, ctx.ClientName, "", 1, "R", false, 0, "")

	pdf.SetY(30)
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, ctx.Title, "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func severityColor(sev collector.Severity) [3]int {
	switch sev {
	case collector.SeverityCritical:
		return colorDanger
	case collector.SeverityWarning, collector.SeverityElevated:
		return colorWarning
	default:
		return colorAccent
	}
}

func writeInsights(pdf *fpdf.Fpdf, insights []collector.Insight) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Findings", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	for _, ins := range insights {
		c := severityColor(ins.Severity)
		y := pdf.GetY()
		pdf.SetFillColor(c[0], c[1], c[2])
		pdf.Rect(20, y+1, 2, 6, "F")

		pdf.SetX(25)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.MultiCell(165, 6, ins.Text, "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(4)
}

func writeChart(pdf *fpdf.Fpdf, chart *collector.Chart) {
	if len(chart.Values) == 0 {
		return
	}

	chartX, chartWidth, chartHeight := 20.0, 170.0, 55.0
	if pdf.GetY()+chartHeight+20 > 250 {
		pdf.AddPage()
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 7, chart.YLabel, "", 1, "L", false, 0, "")

	chartY := pdf.GetY()
	switch chart.Kind {
	case collector.ChartLine:
		drawLineChart(pdf, chart, chartX, chartY, chartWidth, chartHeight)
	default:
		drawBarChart(pdf, chart, chartX, chartY, chartWidth, chartHeight)
	}
	pdf.SetY(chartY + chartHeight + 12)
}

// chartScale computes a padded [min,max] display range for the values.
func chartScale(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	valRange := maxVal - minVal
	if valRange < 1 {
		valRange = 10
	}
	return math.Max(0, minVal-valRange*0.1), maxVal + valRange*0.1
}

func drawChartFrame(pdf *fpdf.Fpdf, x, y, width, height, minVal, maxVal float64) {
	pdf.SetFillColor(255, 255, 255)
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	pdf.SetLineWidth(0.3)
	pdf.Rect(x, y, width, height, "FD")

	pdf.SetFont("Arial", "", 7)
	const gridLines = 5
	for i := 0; i <= gridLines; i++ {
		gridY := y + height - (float64(i)/gridLines)*height
		val := minVal + (float64(i)/gridLines)*(maxVal-minVal)

		pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
		pdf.SetLineWidth(0.1)
		pdf.Line(x, gridY, x+width, gridY)

		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.SetXY(x-15, gridY-2)
		pdf.CellFormat(12, 5, fmt.Sprintf("%.0f", val), "", 0, "R", false, 0, "")
	}
}

func drawBarChart(pdf *fpdf.Fpdf, chart *collector.Chart, x, y, width, height float64) {
	minVal, maxVal := chartScale(chart.Values)
	drawChartFrame(pdf, x, y, width, height, minVal, maxVal)

	slot := (width - 4) / float64(len(chart.Values))
	barWidth := slot * 0.6

	pdf.SetFillColor(colorSecondary[0], colorSecondary[1], colorSecondary[2])
	for i, v := range chart.Values {
		barHeight := ((v - minVal) / (maxVal - minVal)) * (height - 4)
		barX := x + 2 + float64(i)*slot + (slot-barWidth)/2
		pdf.Rect(barX, y+height-2-barHeight, barWidth, barHeight, "F")
	}

	// X labels, truncated to the slot width
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	for i, label := range chart.Labels {
		if len(label) > 14 {
			label = label[:14]
		}
		pdf.SetXY(x+2+float64(i)*slot, y+height+1)
		pdf.CellFormat(slot, 4, label, "", 0, "C", false, 0, "")
	}
}

func drawLineChart(pdf *fpdf.Fpdf, chart *collector.Chart, x, y, width, height float64) {
	minVal, maxVal := chartScale(chart.Values)
	drawChartFrame(pdf, x, y, width, height, minVal, maxVal)

	span := float64(len(chart.Values) - 1)
	if span == 0 {
		span = 1
	}

	pdf.SetDrawColor(colorSecondary[0], colorSecondary[1], colorSecondary[2])
	pdf.SetLineWidth(0.8)

	prevX, prevY := 0.0, 0.0
	for i, v := range chart.Values {
		xPos := x + 2 + (float64(i)/span)*(width-4)
		yPos := y + height - 2 - ((v-minVal)/(maxVal-minVal))*(height-4)
		if i > 0 {
			pdf.Line(prevX, prevY, xPos, yPos)
		}
		prevX, prevY = xPos, yPos
	}

	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.SetXY(x, y+height+1)
	pdf.CellFormat(40, 4, chart.Labels[0], "", 0, "L", false, 0, "")
	pdf.SetXY(x+width-40, y+height+1)
	pdf.CellFormat(40, 4, chart.Labels[len(chart.Labels)-1], "", 0, "R", false, 0, "")
}

func writeTableHeader(pdf *fpdf.Fpdf, table *collector.Table, colWidth float64) {
	pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 8)
	for _, col := range table.Columns {
		pdf.CellFormat(colWidth, 7, col, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func writeTable(pdf *fpdf.Fpdf, ctx *RenderContext, table *collector.Table) {
	if len(table.Columns) == 0 {
		return
	}
	colWidth := 170.0 / float64(len(table.Columns))

	writeTableHeader(pdf, table, colWidth)

	pdf.SetFont("Arial", "", 8)
	fill := false
	for _, row := range table.Rows {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			addModuleHeader(pdf, ctx)
			writeTableHeader(pdf, table, colWidth)
			pdf.SetFont("Arial", "", 8)
			fill = false
		}

		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])

		for i, cell := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(colWidth, 6, cell, "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
		fill = !fill
	}
}
