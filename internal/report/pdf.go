package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

const (
	fontFamily = "Report"
	lineHeight = 6.0
)

// PDFRenderer renders a group into a one-file PDF report: a summary table
// with one row per member followed by a detail block per member.
type PDFRenderer struct {
	locale   Locale
	title    string
	fonts    *FontSet
	compress bool
}

var _ ports.ReportRenderer = (*PDFRenderer)(nil)

// NewPDFRenderer builds a renderer. An empty title uses the locale default
// and nil fonts use the embedded DejaVu pair.
func NewPDFRenderer(locale Locale, title string, fonts *FontSet) (*PDFRenderer, error) {
	if title == "" {
		title = locale.Labels.Title
	}
	if fonts == nil {
		var err error
		if fonts, err = DefaultFonts(); err != nil {
			return nil, err
		}
	}
	return &PDFRenderer{locale: locale, title: title, fonts: fonts, compress: true}, nil
}

type column struct {
	label string
	width float64
	value func(domain.Gazette) string
}

func (r *PDFRenderer) columns() []column {
	l := r.locale.Labels
	return []column{
		{l.BulletinNumber, 22, func(g domain.Gazette) string { return g.BulletinNumber }},
		{l.BulletinDate, 24, func(g domain.Gazette) string { return g.BulletinDate }},
		{l.FileNumber, 24, func(g domain.Gazette) string { return g.FileNumber }},
		{l.PublishedMark, 40, func(g domain.Gazette) string { return g.PublishedMark }},
		{l.GuardedMark, 40, func(g domain.Gazette) string { return g.GuardedMark }},
		{l.Class, 14, func(g domain.Gazette) string { return g.Class }},
		{l.Applicant, 26, func(g domain.Gazette) string { return g.Applicant }},
	}
}

// Render writes the PDF for group to w. Field values are written verbatim;
// a value the font cannot draw fails with ErrUnsupportedText.
func (r *PDFRenderer) Render(w io.Writer, client domain.Client, group domain.Group, at time.Time) error {
	if len(group.Members) == 0 {
		return fmt.Errorf("render %s: empty group", group.Key)
	}
	if err := r.fonts.check(r.texts(client, group)); err != nil {
		return fmt.Errorf("render %s: %w", group.Key, err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(at)
	pdf.SetTitle(r.title, true)
	pdf.SetAuthor(client.Key, true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", r.fonts.Regular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", r.fonts.Bold)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load report font: %w", err)
	}
	labels := r.locale.Labels

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, r.title, "", 1, "C", false, 0, "")

	pdf.SetFont(fontFamily, "", 11)
	header := []struct{ label, value string }{
		{labels.Client, client.Key},
		{labels.Importance, r.locale.Importance(group.Key.Importance)},
		{labels.Generated, r.locale.Date(at)},
	}
	for _, h := range header {
		pdf.CellFormat(0, lineHeight, h.label+": "+h.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "B", 13)
	pdf.CellFormat(0, 8, labels.Summary, "", 1, "L", false, 0, "")

	cols := r.columns()
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetFillColor(225, 225, 225)
	for _, c := range cols {
		pdf.CellFormat(c.width, lineHeight, c.label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 8)
	for _, m := range group.Members {
		for _, c := range cols {
			pdf.CellFormat(c.width, lineHeight, fit(pdf, c.value(m.Gazette), c.width-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont(fontFamily, "B", 13)
	pdf.CellFormat(0, 8, labels.Details, "", 1, "L", false, 0, "")

	for _, m := range group.Members {
		r.detail(pdf, m.Gazette)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *PDFRenderer) detail(pdf *fpdf.Fpdf, g domain.Gazette) {
	l := r.locale.Labels
	fields := []struct{ label, value string }{
		{l.BulletinNumber, g.BulletinNumber},
		{l.BulletinDate, g.BulletinDate},
		{l.OrderNumber, g.OrderNumber},
		{l.Applicant, g.Applicant},
		{l.Agent, g.Agent},
		{l.FileNumber, g.FileNumber},
		{l.Class, g.Class},
		{l.GuardedMark, g.GuardedMark},
		{l.PublishedMark, g.PublishedMark},
		{l.ClassList, g.ClassList},
	}

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, lineHeight, l.BulletinNumber+" "+g.BulletinNumber, "B", 1, "L", true, 0, "")
	for _, f := range fields {
		pdf.SetFont(fontFamily, "B", 9)
		pdf.CellFormat(40, lineHeight, f.label, "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 9)
		pdf.MultiCell(0, lineHeight, f.value, "", "L", false)
	}
	pdf.Ln(4)
}

// texts collects every value drawn into the report, keyed for error messages.
func (r *PDFRenderer) texts(client domain.Client, group domain.Group) map[string]string {
	values := map[string]string{"title": r.title, "client": client.Key}
	for _, m := range group.Members {
		g := m.Gazette
		prefix := "bulletin " + g.BulletinNumber + " "
		for label, value := range map[string]string{
			"number":         g.BulletinNumber,
			"date":           g.BulletinDate,
			"order":          g.OrderNumber,
			"applicant":      g.Applicant,
			"agent":          g.Agent,
			"file":           g.FileNumber,
			"class":          g.Class,
			"guarded mark":   g.GuardedMark,
			"published mark": g.PublishedMark,
			"class list":     g.ClassList,
		} {
			values[prefix+label] = value
		}
	}
	return values
}

// fit shortens text to render within width. Only the summary table
// truncates; detail blocks wrap instead.
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
