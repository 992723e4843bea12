// Package render shapes classification results for people and API clients.
package render

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"

	"roast-api/internal/classifier"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Percent formats a probability in [0,1] as a percentage with two decimals.
func Percent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

type Bar struct {
	Label       string
	Probability float64
	Percent     string
	Style       template.CSS
}

// View is the data behind the HTML page.
type View struct {
	HasResult    bool
	TopLabel     string
	Confidence   string
	Bars         []Bar
	ImageDataURL template.URL
	Source       string

	Error     string
	Reason    string
	Retryable bool
}

// Bars reduces the result to one bar per label. Labels keep the order they
// first appear in; a repeated label takes the later probability.
func Bars(res *classifier.Result) []Bar {
	probs := res.Probabilities()
	bars := make([]Bar, 0, len(probs))
	seen := make(map[string]bool, len(probs))
	for _, p := range res.Predictions {
		if seen[p.Label] {
			continue
		}
		seen[p.Label] = true
		prob := probs[p.Label]
		bars = append(bars, Bar{
			Label:       p.Label,
			Probability: prob,
			Percent:     Percent(prob),
			Style:       template.CSS(fmt.Sprintf("width: %.2f%%", clamp(prob)*100)),
		})
	}
	return bars
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// NewView builds the result page for a successful prediction. jpeg is the
// payload that was sent and is shown back to the user.
func NewView(res *classifier.Result, jpeg []byte, source string) View {
	return View{
		HasResult:    true,
		TopLabel:     res.Top.Label,
		Confidence:   Percent(res.Top.Probability),
		Bars:         Bars(res),
		ImageDataURL: DataURL(jpeg),
		Source:       source,
	}
}

// DataURL inlines a jpeg so the page can show the image without storing it.
func DataURL(jpeg []byte) template.URL {
	if len(jpeg) == 0 {
		return ""
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg))
}

// APIResponse is the JSON body of a successful classify call.
type APIResponse struct {
	ID            string                  `json:"id,omitempty"`
	Iteration     string                  `json:"iteration,omitempty"`
	Top           classifier.ClassScore   `json:"top"`
	Confidence    string                  `json:"confidence"`
	Predictions   []classifier.ClassScore `json:"predictions"`
	Probabilities map[string]float64      `json:"probabilities"`
}

func NewAPIResponse(res *classifier.Result) APIResponse {
	return APIResponse{
		ID:            res.ID,
		Iteration:     res.Iteration,
		Top:           res.Top,
		Confidence:    Percent(res.Top.Probability),
		Predictions:   res.Predictions,
		Probabilities: res.Probabilities(),
	}
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
