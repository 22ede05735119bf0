// Package renderer formats backtest results as markdown and charts.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed *.md
var templates embed.FS

// RenderReport renders the report of a run to markdown.
func RenderReport(r *Report) string {
	partials := map[string]string{
		"report_title":   "report_title.md",
		"report_summary": "report_summary.md",
		"report_tickers": "report_tickers.md",
	}
	if !r.HasBenchmark {
		partials["report_benchmark"] = ""
	} else {
		partials["report_benchmark"] = "report_benchmark.md"
	}
	return renderTemplate("report", "report.md", partials, r)
}

// RenderComparison renders a side by side table of runs to markdown.
func RenderComparison(c *Comparison) string {
	return renderTemplate("comparison", "comparison.md", nil, c)
}

// RenderRuns renders the list of saved runs to markdown.
func RenderRuns(l *Runs) string {
	return renderTemplate("runs", "runs.md", nil, l)
}

// renderTemplate renders a main template that depends on several partials.
// An empty partial file name defines an empty template.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
