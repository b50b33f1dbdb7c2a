package templates

import (
	"bytes"
	"html/template"
	"time"

	"github.com/linesmerrill/lcm-policing/dispatcher"
	"github.com/linesmerrill/lcm-policing/incident"
	"github.com/linesmerrill/lcm-policing/queue"
	"github.com/linesmerrill/lcm-policing/resolution"
)

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"datep": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"title": resolution.Title,
}

// html/template escapes every interpolated value for its context, so report text and
// evidence links never reach the page as markup.
var pages = template.Must(template.New("policing").Funcs(funcs).Parse(`
{{define "queue"}}<div id="verify-queue">
{{- if .Entries}}
{{- range .Entries}}
  <div class="police-row" data-incident="{{.IncidentID}}">
    <div class="police-row-title">Incident #{{.IncidentID}} · {{.Community}}</div>
    <div class="police-row-reason">{{.ReasonPreview}}</div>
    <div class="police-row-meta">Verifiers: {{.VerifiersCount}} · Created: {{date .CreatedAt}}</div>
    <a class="btn btn-secondary" href="/incidents/{{.IncidentID}}">Details</a>
  </div>
{{- end}}
{{- else}}
  <div id="verify-empty">{{.Placeholder}}</div>
{{- end}}
</div>{{end}}

{{define "toast"}}{{if .Toast}}<div id="police-toast" class="{{if .IsError}}toast-error{{else}}toast{{end}}">{{.Toast}}</div>{{end}}
{{- if .Alert}}<pre id="police-alert" role="alert">{{.Alert}}</pre>{{end}}{{end}}

{{define "detail"}}{{$c := .Controls}}<div id="incident-body" data-state="{{.State}}">
{{- template "toast" .}}
{{- with .Detail}}
  <div class="incident-header">Incident #{{.ID}} · {{.Community}}
    {{- if $c.Chip}} <span id="resolution-chip">{{$c.Chip}}</span>{{end}}</div>
  <div class="incident-meta">Status: {{.Status}} · Created: {{date .CreatedAt}} · Verifiers: {{.VerifiersCount}}</div>
  <div class="incident-parties">Reported User: <code>{{.ReportedUserID}}</code>
    {{- if not .TaskID.IsZero}} · Task: <code>{{.TaskID}}</code>{{end}}</div>
  <hr>
  {{- range .Reports}}
  <div class="incident-report">
    <div class="incident-report-title">Report {{.Number}}</div>
    <div class="incident-report-meta">Reporter: <code>{{.ReporterUserID}}</code> · {{date .CreatedAt}}</div>
    <div class="incident-report-reason">{{.Reason}}</div>
    {{- if .EvidenceHref}}
    <div><a href="{{.EvidenceHref}}" target="_blank" rel="noopener noreferrer" class="link">Evidence</a></div>
    {{- else if .EvidenceURL}}
    <div class="incident-report-evidence">Evidence: {{.EvidenceURL}}</div>
    {{- end}}
  </div>
  {{- else}}
  <div class="incident-empty">No reports found.</div>
  {{- end}}
{{- end}}
  <div id="resolution-controls">
  {{- if and $c.CanResolve .Composing}}
    <form method="post" action="/incidents/{{.Detail.ID}}/resolution">
      <label for="resolution-text">Describe how you resolved the issue:</label>
      <textarea id="resolution-text" name="text" rows="4" maxlength="600"></textarea>
      <button class="btn btn-primary" type="submit">Submit Resolution</button>
    </form>
    <form method="post" action="/incidents/{{.Detail.ID}}/compose/cancel"><button class="btn btn-secondary" type="submit">Cancel</button></form>
  {{- else if $c.CanResolve}}
    <form method="post" action="/incidents/{{.Detail.ID}}/compose"><button id="resolve-open" class="btn btn-primary" type="submit">Resolve</button></form>
  {{- end}}
  {{- if $c.CanAcceptWithoutResolution}}
    <form method="post" action="/incidents/{{.Detail.ID}}/accept"><button class="btn btn-secondary" type="submit">Accept without resolution</button></form>
  {{- end}}
  {{- with $c.Resolution}}
    <div class="resolution-box">
      <div class="resolution-title">{{title .}}</div>
      <span class="counter">CONFIRM: {{$c.ConfirmCount}}</span>
      <span class="counter">DECLINE: {{$c.DeclineCount}}</span>
      <span class="pill{{if $c.ThresholdMet}} pill-met{{end}}">Need {{$c.RequiredConfirms}} CONFIRM</span>
      <div class="resolution-text">{{.Text}}</div>
      <div class="resolution-meta">Created: {{date .CreatedAt}}
        {{- with datep .VerifiedAt}} · Verified: {{.}}{{end}}
        {{- with datep .RejectedAt}} · Rejected: {{.}}{{end}}</div>
    </div>
  {{- end}}
  {{- if $c.CanVote}}
    <form method="post" action="/incidents/{{.Detail.ID}}/resolution/vote">
      <button name="vote" value="CONFIRM" type="submit" class="btn{{if eq (print $c.ViewerVote) "CONFIRM"}} selected{{end}}">CONFIRM</button>
      <input name="reason" placeholder="Optional: why decline?">
      <button name="vote" value="DECLINE" type="submit" class="btn{{if eq (print $c.ViewerVote) "DECLINE"}} selected{{end}}">DECLINE</button>
    </form>
  {{- end}}
  </div>
  {{- if $c.ShowVerdicts}}
  <form id="verdict-form" method="post" action="/incidents/{{.Detail.ID}}/verdict">
    <button name="verdict" value="TRUE" type="submit" class="btn btn-primary">TRUE</button>
    <button name="verdict" value="IGNORE" type="submit" class="btn btn-secondary">IGNORE</button>
    <input name="reason" placeholder="Why is this FALSE?">
    <button name="verdict" value="FALSE" type="submit" class="btn btn-danger">Submit FALSE</button>
  </form>
  {{- end}}
</div>{{end}}

{{define "page"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Policing</title></head>
<body>
{{if not .Outcome.Detail}}{{template "toast" .Outcome}}{{end}}
<h2>Verify Queue</h2>
{{template "queue" .Queue}}
{{- if .Outcome.Detail}}
<div id="incident-modal">{{template "detail" .Outcome}}</div>
{{- end}}
</body>
</html>{{end}}
`))

func render(name string, data interface{}) (string, error) {
	var b bytes.Buffer
	if err := pages.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderQueue renders the Verify Queue list or its placeholder.
func RenderQueue(v *queue.View) (string, error) {
	if v == nil {
		v = &queue.View{Placeholder: queue.SignedOutPlaceholder}
	}
	return render("queue", v)
}

// RenderDetail renders the incident view for an outcome, including its toast and
// alert.
func RenderDetail(o *dispatcher.Outcome) (string, error) {
	if o == nil || o.Detail == nil {
		o = &dispatcher.Outcome{Detail: &incident.DetailView{}}
	}
	return render("detail", o)
}

// RenderPage renders the full policing page: the queue and, when the outcome carries an
// open incident, its detail view.
func RenderPage(v *queue.View, o *dispatcher.Outcome) (string, error) {
	if v == nil {
		v = &queue.View{Placeholder: queue.SignedOutPlaceholder}
	}
	if o == nil {
		o = &dispatcher.Outcome{}
	}
	return render("page", struct {
		Queue   *queue.View
		Outcome *dispatcher.Outcome
	}{v, o})
}

// RenderToast renders just the toast and alert of an outcome.
func RenderToast(o *dispatcher.Outcome) (string, error) {
	if o == nil {
		return "", nil
	}
	return render("toast", o)
}
