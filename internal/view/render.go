package view

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/airenas/transcript-workbench/internal/api"
)

// MedicalIcon prefixes sentences with medical terminology
const MedicalIcon = "⚕️"

// TimeFormat is used for job timestamps
const TimeFormat = "2006-01-02 15:04:05"

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"highlight":  Highlight,
	"labelClass": labelClass,
	"lines":      lines,
	"timestamp":  timestamp,
}).Parse(`{{define "jobs"}}` + jobListTmpl + `{{end}}` +
	`{{define "transcript"}}` + transcriptTmpl + `{{end}}` +
	`{{define "sentences"}}` + sentencesTmpl + `{{end}}` +
	`{{define "manuscript"}}` + manuscriptTmpl + `{{end}}` +
	`{{define "error"}}` + errorTmpl + `{{end}}` +
	`{{define "loader"}}` + loaderTmpl + `{{end}}` +
	`{{define "page"}}` + pageTmpl + `{{end}}`))

// JobList renders one selectable item per job
func JobList(jobs []*api.Job, selected string) (template.HTML, error) {
	return execute("jobs", struct {
		Jobs     []*api.Job
		Selected string
	}{Jobs: jobs, Selected: selected})
}

// Transcript renders both raw transcripts side by side
func Transcript(detail *api.TranscriptDetail) (template.HTML, error) {
	if detail == nil {
		return "", nil
	}
	return execute("transcript", detail)
}

// Sentences renders editable improved transcript sentences
func Sentences(sentences []api.Sentence) (template.HTML, error) {
	if len(sentences) == 0 {
		return "", nil
	}
	return execute("sentences", sentences)
}

// Manuscript renders generated manuscript
func Manuscript(m *api.Manuscript) (template.HTML, error) {
	if m == nil {
		return "", nil
	}
	return execute("manuscript", m)
}

// Error renders an inline error message
func Error(msg string) template.HTML {
	res, err := execute("error", msg)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(msg))
	}
	return res
}

// Loader renders a progress indicator with an optional message
func Loader(msg string) template.HTML {
	res, err := execute("loader", msg)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(msg))
	}
	return res
}

func execute(name string, data interface{}) (template.HTML, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(b.String()), nil
}

// Highlight wraps every case insensitive whole word match of words
// into an uncertain-word span, the rest of text is escaped
func Highlight(text string, words []string) template.HTML {
	type span struct{ from, to int }
	var spans []span
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{from: loc[0], to: loc[1]})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].from == spans[j].from {
			return spans[i].to > spans[j].to
		}
		return spans[i].from < spans[j].from
	})
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.from < pos {
			continue
		}
		b.WriteString(template.HTMLEscapeString(text[pos:s.from]))
		b.WriteString(`<span class="uncertain-word">`)
		b.WriteString(template.HTMLEscapeString(text[s.from:s.to]))
		b.WriteString(`</span>`)
		pos = s.to
	}
	b.WriteString(template.HTMLEscapeString(text[pos:]))
	return template.HTML(b.String())
}

var notClassChars = regexp.MustCompile(`[^a-z0-9_-]+`)

func labelClass(value string) string {
	return strings.Trim(notClassChars.ReplaceAllString(strings.ToLower(value), "-"), "-")
}

func lines(s string) template.HTML {
	parts := strings.Split(s, "\n")
	for i := range parts {
		parts[i] = template.HTMLEscapeString(parts[i])
	}
	return template.HTML(strings.Join(parts, "<br>"))
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeFormat)
}
