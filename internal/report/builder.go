// Package report renders a finished run as an HTML page and a plain text
// body for the notification email.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/kolangzi/naver-automation/internal/types"
)

// Builder creates run reports
type Builder struct {
	maxTargets int
	location   *time.Location
	template   *template.Template
}

// New creates a report builder that lists at most maxTargets targets. A
// nil location renders times in local time.
func New(maxTargets int, loc *time.Location) (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	return &Builder{
		maxTargets: maxTargets,
		location:   loc,
		template:   tmpl,
	}, nil
}

// Report is a rendered run report
type Report struct {
	Subject   string
	HTMLBody  string
	PlainBody string
	RunID     string
}

// ReportData is the template data structure
type ReportData struct {
	Title    string
	Date     string
	State    string
	Error    string
	Duration string
	Targets  []TargetData
	Omitted  int
	Stats    StatsData
}

// TargetData is one row of the outcome table
type TargetData struct {
	Label   string
	Kind    string
	Outcome string
	Reason  string
	URL     string
}

// StatsData contains run statistics
type StatsData struct {
	Discovered int
	Attempted  int
	Succeeded  int
	Skipped    int
	Failed     int
	Deferred   int
	Replayed   int
}

// outcomeOrder puts the rows a reader cares about first.
var outcomeOrder = map[types.Outcome]int{
	types.OutcomeFailed:    0,
	types.OutcomeDeferred:  1,
	types.OutcomeSucceeded: 2,
	types.OutcomeSkipped:   3,
	types.OutcomePending:   4,
}

// Build renders sum.
func (b *Builder) Build(sum types.Summary) (*Report, error) {
	targets := append([]types.Target(nil), sum.Targets...)
	sort.SliceStable(targets, func(i, j int) bool {
		return outcomeOrder[targets[i].Outcome] < outcomeOrder[targets[j].Outcome]
	})

	omitted := 0
	if b.maxTargets > 0 && len(targets) > b.maxTargets {
		omitted = len(targets) - b.maxTargets
		targets = targets[:b.maxTargets]
	}

	started := sum.StartedAt.In(b.location)
	data := ReportData{
		Title:    fmt.Sprintf("%s run for %s", capitalize(sum.Campaign), sum.Identity),
		Date:     started.Format("Monday, January 2 15:04"),
		State:    sum.State,
		Error:    sum.Error,
		Duration: sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second).String(),
		Targets:  make([]TargetData, len(targets)),
		Omitted:  omitted,
		Stats: StatsData{
			Discovered: sum.Discovered,
			Attempted:  sum.Attempted,
			Succeeded:  sum.Succeeded,
			Skipped:    sum.Skipped,
			Failed:     sum.Failed,
			Deferred:   sum.Deferred,
			Replayed:   sum.Replayed,
		},
	}
	for i, t := range targets {
		data.Targets[i] = TargetData{
			Label:   t.Label(),
			Kind:    string(t.Kind),
			Outcome: string(t.Outcome),
			Reason:  truncate(t.Reason, 120),
			URL:     targetURL(t),
		}
	}

	var htmlBuf bytes.Buffer
	if err := b.template.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{
		Subject: fmt.Sprintf("[naverbot] %s %s: %d succeeded, %d failed (%s)",
			sum.Campaign, sum.State, sum.Succeeded, sum.Failed, started.Format("Jan 2")),
		HTMLBody:  htmlBuf.String(),
		PlainBody: buildPlainText(data),
		RunID:     sum.RunID,
	}, nil
}

// targetURL links a target to the blog page it was acted on.
func targetURL(t types.Target) string {
	blog := t.BlogID
	if blog == "" {
		blog = t.ID
	}
	if t.LogNo != "" {
		return fmt.Sprintf("https://blog.naver.com/%s/%s", blog, t.LogNo)
	}
	return "https://blog.naver.com/" + blog
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-32) + s[1:]
	}
	return s
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func buildPlainText(data ReportData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s\n%s · %s · %s\n", data.Title, data.Date, data.State, data.Duration))
	if data.Error != "" {
		buf.WriteString(fmt.Sprintf("error: %s\n", data.Error))
	}
	s := data.Stats
	buf.WriteString(fmt.Sprintf("discovered %d, attempted %d, succeeded %d, skipped %d, failed %d, deferred %d\n\n",
		s.Discovered, s.Attempted, s.Succeeded, s.Skipped, s.Failed, s.Deferred))

	for i, t := range data.Targets {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, t.Outcome, t.Label))
		if t.Reason != "" {
			buf.WriteString(" - " + t.Reason)
		}
		buf.WriteString("\n")
	}
	if data.Omitted > 0 {
		buf.WriteString(fmt.Sprintf("... and %d more\n", data.Omitted))
	}

	return buf.String()
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #03c75a; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .error { color: #c0392b; margin-bottom: 15px; }
        .stats span { display: inline-block; margin-right: 12px; color: #333; }
        table { width: 100%; border-collapse: collapse; margin-top: 15px; font-size: 14px; }
        td, th { text-align: left; padding: 6px 4px; border-bottom: 1px solid #eee; }
        .succeeded { color: #03c75a; }
        .failed { color: #c0392b; }
        .deferred { color: #e67e22; }
        .skipped, .pending { color: #999; }
        .link { color: #03c75a; text-decoration: none; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}} · {{.State}} · {{.Duration}}</div>
        {{if .Error}}<div class="error">{{.Error}}</div>{{end}}

        <div class="stats">
            <span>discovered {{.Stats.Discovered}}</span>
            <span>attempted {{.Stats.Attempted}}</span>
            <span class="succeeded">succeeded {{.Stats.Succeeded}}</span>
            <span class="skipped">skipped {{.Stats.Skipped}}</span>
            <span class="failed">failed {{.Stats.Failed}}</span>
            <span class="deferred">deferred {{.Stats.Deferred}}</span>
        </div>

        <table>
            <tr><th>Target</th><th>Outcome</th><th>Reason</th></tr>
            {{range .Targets}}
            <tr>
                <td><a href="{{.URL}}" class="link">{{.Label}}</a></td>
                <td class="{{.Outcome}}">{{.Outcome}}</td>
                <td>{{.Reason}}</td>
            </tr>
            {{end}}
        </table>
        {{if .Omitted}}<p>… and {{.Omitted}} more</p>{{end}}

        <div class="footer">
            Replayed {{.Stats.Replayed}} deferred items · Generated by naverbot
        </div>
    </div>
</body>
</html>`
