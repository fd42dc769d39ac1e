// Package render prints lab results to the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/labkit/internal/factcheck"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/rag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ClaimPreviewRunes is how much of a claim the history list shows
const ClaimPreviewRunes = 50

// Renderer writes styled output. Colour is dropped automatically when w is
// not a terminal.
type Renderer struct {
	w io.Writer

	header  lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	danger  lipgloss.Style
	panel   lipgloss.Style
}

// New creates a renderer for w
func New(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:       w,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		warn:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		danger:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		panel:   r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// Writer returns the underlying writer, for streaming
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// Header prints a section title
func (r *Renderer) Header(title string) {
	fmt.Fprintln(r.w, r.header.Render(title))
}

// Info prints a muted status line
func (r *Renderer) Info(format string, a ...any) {
	fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf(format, a...)))
}

// Success prints a confirmation line
func (r *Renderer) Success(format string, a ...any) {
	fmt.Fprintln(r.w, r.success.Render("✓ "+fmt.Sprintf(format, a...)))
}

// Warn prints a warning line
func (r *Renderer) Warn(format string, a ...any) {
	fmt.Fprintln(r.w, r.warn.Render(fmt.Sprintf(format, a...)))
}

// Error prints an error line
func (r *Renderer) Error(format string, a ...any) {
	fmt.Fprintln(r.w, r.danger.Render(fmt.Sprintf(format, a...)))
}

// Text prints s followed by a newline
func (r *Renderer) Text(s string) {
	fmt.Fprintln(r.w, s)
}

// JSON pretty-prints v
func (r *Renderer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render json: %w", err)
	}
	_, err = fmt.Fprintln(r.w, string(data))
	return err
}

// Verdict prints a fact-check result: a coloured label and the JSON body
func (r *Renderer) Verdict(v *model.Verdict) error {
	fmt.Fprintln(r.w, r.verdictStyle(v.Verdict).Render("Verdict: "+string(v.Verdict)))
	return r.JSON(v)
}

func (r *Renderer) verdictStyle(v model.VerdictLabel) lipgloss.Style {
	switch v {
	case model.VerdictTrue:
		return r.success
	case model.VerdictFalse:
		return r.danger
	case model.VerdictPartiallyTrue:
		return r.warn
	default:
		return r.muted
	}
}

// Sources lists verdict sources with their authority tier
func (r *Renderer) Sources(ranked []factcheck.RankedSource) {
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintln(r.w, r.label.Render("Sources:"))
	for _, s := range ranked {
		tier := r.tierStyle(s.Tier).Render("(" + s.Tier.String() + ")")
		fmt.Fprintf(r.w, "  • %s %s\n", s.Source, tier)
	}
}

func (r *Renderer) tierStyle(t factcheck.AuthorityTier) lipgloss.Style {
	switch t {
	case factcheck.TierPrimary:
		return r.success
	case factcheck.TierSecondary:
		return r.warn
	default:
		return r.muted
	}
}

// ClaimHistory prints recent checks, numbered from 1, newest first
func (r *Renderer) ClaimHistory(checks []model.ClaimCheck) error {
	if len(checks) == 0 {
		return nil
	}
	r.Header("Recent Checks")
	for i, c := range checks {
		fmt.Fprintln(r.w, r.label.Render(fmt.Sprintf("%d. %s", i+1, ClaimPreview(c.Claim))))
		if err := r.JSON(c.Result); err != nil {
			return err
		}
	}
	return nil
}

// ClaimPreview cuts a claim to its first 50 runes followed by "..."
func ClaimPreview(claim string) string {
	runes := []rune(claim)
	if len(runes) > ClaimPreviewRunes {
		runes = runes[:ClaimPreviewRunes]
	}
	return string(runes) + "..."
}

// Weather prints the raw weather metrics in two columns
func (r *Renderer) Weather(w *model.WeatherReport) {
	left := strings.Join([]string{
		metric("🌡️ Temperature", fmt.Sprintf("%v°C", w.Temperature)),
		metric("🤒 Feels Like", fmt.Sprintf("%v°C", w.FeelsLike)),
		metric("💧 Humidity", fmt.Sprintf("%v%%", w.Humidity)),
	}, "\n")
	right := strings.Join([]string{
		metric("🌡️ Min Temp", fmt.Sprintf("%v°C", w.TempMin)),
		metric("🌡️ Max Temp", fmt.Sprintf("%v°C", w.TempMax)),
		metric("💨 Wind Speed", fmt.Sprintf("%v m/s", w.WindSpeed)),
	}, "\n")

	r.Header("📊 " + w.Location)
	fmt.Fprintln(r.w, r.panel.Render(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right)))
	fmt.Fprintln(r.w, "☁️ Weather: "+cases.Title(language.English).String(w.Description))
}

func metric(name, value string) string {
	return name + ": " + value
}

// IngestReport prints the outcome of building the knowledge base
func (r *Renderer) IngestReport(rep *rag.IngestReport) {
	total := len(rep.Files)
	r.Info("Found %d PDF files in: %s", total, rep.Dir)

	for _, f := range rep.Skipped() {
		r.Warn("skipped %s: %v", f.Filename, f.Err)
	}
	for _, name := range rep.Stale {
		r.Info("%s is stored but no longer in %s", name, rep.Dir)
	}

	unchanged := rep.Count(rag.StatusUnchanged)
	if unchanged > 0 {
		r.Success("Processed %d/%d PDF files (%d already up to date)", rep.Processed(), total, unchanged)
		return
	}
	r.Success("Successfully processed %d/%d PDF files!", rep.Processed(), total)
}
