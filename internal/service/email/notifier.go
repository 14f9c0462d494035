package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"

	"EduPulse/internal/domain/models"
	domrepo "EduPulse/internal/domain/repository"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<h2>Your analysis is ready</h2>
<p>Report {{.ID}} generated at {{.GeneratedAt}}.</p>
<p>{{.Analyzed}} series analyzed, {{.Omitted}} omitted. Data quality score: {{printf "%.1f" .Quality}}.</p>
<table>
<tr><th>Series</th><th>Trend</th><th>Total growth</th><th>Forecast</th></tr>
{{range .Rows}}<tr><td>{{.Key}}</td><td>{{.Trend}}</td><td>{{.Growth}}</td><td>{{.Forecast}}</td></tr>
{{end}}</table>
{{if .Warnings}}<p>{{.Warnings}} warning(s) were raised; see the full report for details.</p>{{end}}`))

type summaryRow struct {
	Key      string
	Trend    string
	Growth   string
	Forecast string
}

type summary struct {
	ID          string
	GeneratedAt string
	Analyzed    int
	Omitted     int
	Quality     float64
	Rows        []summaryRow
	Warnings    int
}

// Notifier emails an analysis summary to the caller.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

var _ domrepo.Notifier = (*Notifier)(nil)

func (n *Notifier) NotifyAnalysis(ctx context.Context, who models.Identity, report *models.Report) error {
	if who.Email == "" {
		return nil
	}
	body, err := renderSummary(report)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, Message{
		To:      who.Email,
		Subject: fmt.Sprintf("EduPulse analysis %s: %d series", report.ID, len(report.Series)),
		Body:    body,
	})
}

func renderSummary(r *models.Report) (string, error) {
	s := summary{
		ID:          r.ID,
		GeneratedAt: r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
		Analyzed:    len(r.Series),
		Omitted:     r.Quality.SeriesOmitted,
		Quality:     r.Quality.QualityScore,
		Warnings:    len(r.Warnings),
	}
	keys := make([]string, 0, len(r.Series))
	for k := range r.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		res := r.Series[k]
		row := summaryRow{Key: k, Trend: res.Trend.Direction.String(), Growth: "n/a", Forecast: "n/a"}
		if res.Growth.Total != nil {
			row.Growth = res.Growth.Total.String()
		}
		if res.Forecast != nil && res.Forecast.Available {
			row.Forecast = fmt.Sprintf("%d points", len(res.Forecast.Predictions))
		}
		s.Rows = append(s.Rows, row)
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}
