// Package report assembles collected module results into one paginated PDF
// artifact via a two-pass render/count/re-render protocol.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/aurahq/aura/internal/collector"
)

// CoverTemplateKey is the fixed template used for the report cover.
const CoverTemplateKey = "cover"

// RenderContext is the data a template draws from. It is rebuilt fresh for
// each render pass; the draft pass runs with TotalPages zero.
type RenderContext struct {
	ReportName string
	ClientName string
	StartDate  string
	EndDate    string

	// TotalPages is the merged page count, known only in the final pass.
	// PageOffset is the number of pages preceding this fragment in the
	// merged artifact, so footers can number pages globally.
	TotalPages int
	PageOffset int

	Title      string
	ModuleName string
	NewPage    bool
	Result     *collector.Result
}

// TemplateFunc draws one fragment into a fresh document. Templates add
// their own pages.
type TemplateFunc func(pdf *fpdf.Fpdf, ctx *RenderContext)

// DocumentBuilder renders document fragments and merges them into the final
// artifact. Every fragment path it returns is owned by the caller until
// passed to Merge or Cleanup; Merge deletes all of its inputs on every exit
// path.
type DocumentBuilder struct {
	workDir   string
	templates map[string]TemplateFunc
	logger    zerolog.Logger
}

// NewDocumentBuilder creates a builder writing artifacts under workDir.
// The cover template is pre-registered.
func NewDocumentBuilder(workDir string, logger zerolog.Logger) (*DocumentBuilder, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	b := &DocumentBuilder{
		workDir:   workDir,
		templates: make(map[string]TemplateFunc),
		logger:    logger.With().Str("component", "documents").Logger(),
	}
	b.RegisterTemplate(CoverTemplateKey, coverTemplate)
	return b, nil
}

// RegisterTemplate binds a template key to a draw function.
func (b *DocumentBuilder) RegisterTemplate(key string, fn TemplateFunc) {
	b.templates[key] = fn
}

// RegisterModuleTemplates gives every registered module the generic module
// template unless a dedicated one was already bound.
func (b *DocumentBuilder) RegisterModuleTemplates(reg *collector.Registry) {
	for _, info := range reg.List() {
		if _, ok := b.templates[info.Key]; !ok {
			b.RegisterTemplate(info.Key, moduleTemplate)
		}
	}
}

// RenderFragment renders one template into a uniquely named temporary PDF
// and returns its path.
func (b *DocumentBuilder) RenderFragment(templateKey string, ctx *RenderContext) (string, error) {
	fn, ok := b.templates[templateKey]
	if !ok {
		return "", fmt.Errorf("render: unknown template %q", templateKey)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	if ctx.TotalPages > 0 && templateKey != CoverTemplateKey {
		setGlobalFooter(pdf, ctx)
	}

	fn(pdf, ctx)

	path := filepath.Join(b.workDir, fmt.Sprintf("frag_%s.pdf", uuid.NewString()))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("render template %q: %w", templateKey, err)
	}
	return path, nil
}

// RenderCover renders the fixed cover template.
func (b *DocumentBuilder) RenderCover(ctx *RenderContext) (string, error) {
	return b.RenderFragment(CoverTemplateKey, ctx)
}

// PageCount returns the number of pages in one fragment.
func (b *DocumentBuilder) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

// CountPages sums the page counts of the cover (if any) and all fragments.
// A fragment that cannot be opened contributes zero; the total is a planning
// number, not correctness-critical for content.
func (b *DocumentBuilder) CountPages(fragments []string, cover string) int {
	total := 0
	paths := fragments
	if cover != "" {
		paths = append([]string{cover}, fragments...)
	}
	for _, path := range paths {
		n, err := b.PageCount(path)
		if err != nil {
			b.logger.Warn().Err(err).Msg("Skipping unreadable fragment in page count")
			continue
		}
		total += n
	}
	return total
}

// Merge concatenates the cover (if any) and the fragments, in order, into
// outputName under the builder's work directory. Fragments that cannot be
// opened are skipped with a warning. All inputs, cover included, are
// deleted before Merge returns, success or not.
func (b *DocumentBuilder) Merge(fragments []string, cover string, outputName string) (string, error) {
	inputs := fragments
	if cover != "" {
		inputs = append([]string{cover}, fragments...)
	}
	defer b.Cleanup(inputs)

	readable := make([]string, 0, len(inputs))
	for _, path := range inputs {
		if _, err := b.PageCount(path); err != nil {
			b.logger.Warn().Err(err).Msg("Skipping unreadable fragment in merge")
			continue
		}
		readable = append(readable, path)
	}
	if len(readable) == 0 {
		return "", fmt.Errorf("merge: no readable fragments")
	}

	outPath := filepath.Join(b.workDir, outputName)
	if err := api.MergeCreateFile(readable, outPath, false, nil); err != nil {
		return "", fmt.Errorf("merge fragments: %w", err)
	}

	b.logger.Info().Str("path", outPath).Int("fragments", len(readable)).Msg("Report artifact merged")
	return outPath, nil
}

// Cleanup removes temporary fragment files. Missing files are fine.
func (b *DocumentBuilder) Cleanup(paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			b.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove temporary fragment")
		}
	}
}

// setGlobalFooter numbers every page of the fragment within the merged
// artifact using the context's page offset and total.
func setGlobalFooter(pdf *fpdf.Fpdf, ctx *RenderContext) {
	offset := ctx.PageOffset
	total := ctx.TotalPages
	pdf.SetFooterFunc(func() {
		pageWidth, pageHeight := pdf.GetPageSize()
		pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
		pdf.SetLineWidth(0.3)
		pdf.Line(20, pageHeight-20, pageWidth-20, pageHeight-20)
		pdf.SetY(pageHeight - 15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", offset+pdf.PageNo(), total), "", 0, "C", false, 0, "")
	})
}
