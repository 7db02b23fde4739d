package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"passos-predictor/internal/batch"
	"passos-predictor/internal/inference"
	"passos-predictor/internal/ingest"
	"passos-predictor/internal/models"
	"passos-predictor/internal/predictor"
)

//go:embed templates
var templateFiles embed.FS

const (
	pageIndividual = "individual.html"
	pageBatch      = "batch.html"
	pageAbout      = "about.html"
)

type legendEntry struct {
	Code        string
	Description string
}

var legend = []legendEntry{
	{"INDE", "Índice de Desenvolvimento Educacional"},
	{"IAA", "Índice de Auto-Avaliação"},
	{"IEG", "Índice de Engajamento"},
	{"IPS", "Índice Psicossocial"},
	{"IDA", "Índice de Desempenho Acadêmico"},
	{"IPV", "Índice do Ponto de Virada"},
	{"IAN", "Índice de Adequação ao Nível"},
	{"Defas", "Defasagem escolar (fase atual − fase ideal)"},
}

type sidebar struct {
	Loaded   bool
	Metadata *models.ModelMetadata
	Legend   []legendEntry
}

type formOptions struct {
	Genders        []string
	Pedras         []string
	Institutions   []string
	ReferenceYears []int
}

var options = formOptions{
	Genders:        models.Genders,
	Pedras:         models.Pedras,
	Institutions:   models.Institutions,
	ReferenceYears: models.ReferenceYears,
}

// page is the data every template renders from. Panels use the fields they
// need and ignore the rest.
type page struct {
	Title   string
	Active  string
	Sidebar sidebar
	Error   string
	Warning string

	Form    models.StudentRecord
	Options formOptions
	Outcome *predictor.Outcome

	Expected []string
	Template *ingest.Table
	Upload   *Upload
	Preview  *ingest.Table
	Result   *batch.Result
}

func newSidebar(s *inference.Snapshot) sidebar {
	sb := sidebar{Loaded: s.Loaded(), Legend: legend}
	if !s.Metadata.Empty() {
		meta := s.Metadata
		sb.Metadata = &meta
	}
	return sb
}

var funcs = template.FuncMap{
	"probScale":  newProbScale,
	"formatProb": batch.FormatProbability,
	"percent":    models.FormatPercent,
	"decimal": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageIndividual, pageBatch, pageAbout} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *renderer) render(w io.Writer, name string, data *page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %s", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// probScale colours a result's probabilities relative to each other: the
// lowest row is red and the highest green. With a single distinct value every
// row takes the low end.
type probScale struct {
	lo, hi float64
}

func newProbScale(rows []batch.Row) probScale {
	if len(rows) == 0 {
		return probScale{}
	}
	s := probScale{lo: rows[0].Probability, hi: rows[0].Probability}
	for _, r := range rows[1:] {
		s.lo = math.Min(s.lo, r.Probability)
		s.hi = math.Max(s.hi, r.Probability)
	}
	return s
}

// Color is the background style of p within the scale.
func (s probScale) Color(p float64) template.CSS {
	if s.hi <= s.lo {
		return probColor(0)
	}
	return probColor((p - s.lo) / (s.hi - s.lo))
}

// probColor maps a fraction in [0, 1] onto the red to green background scale.
func probColor(p float64) template.CSS {
	p = math.Max(0, math.Min(1, p))
	red := [3]float64{0xE7, 0x4C, 0x3C}
	yellow := [3]float64{0xF5, 0xA6, 0x23}
	green := [3]float64{0x27, 0xAE, 0x60}

	from, to, t := red, yellow, p*2
	if p > 0.5 {
		from, to, t = yellow, green, (p-0.5)*2
	}
	var c [3]int
	for i := range c {
		c[i] = int(math.Round(from[i] + (to[i]-from[i])*t))
	}
	return template.CSS(fmt.Sprintf("background-color: #%02X%02X%02X", c[0], c[1], c[2]))
}
