// Package prompts holds the instruction templates sent to the generative
// model, one markdown file per stage.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.md"))

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return sb.String(), nil
}

// Metadata asks for a JSON title/summary of the uploaded pages.
func Metadata() (string, error) {
	return render("metadata.md", nil)
}

// Transcription asks for a page-demarcated, LaTeX-faithful markdown
// transcription of the notes titled title.
func Transcription(title string) (string, error) {
	return render("transcription.md", struct{ Title string }{Title: title})
}

// Exposition asks for a teaching document expanding the transcription.
func Exposition(transcription string) (string, error) {
	return render("exposition.md", struct{ Transcription string }{Transcription: transcription})
}

// Questions asks for an exam document derived from the exposition.
func Questions(exposition string) (string, error) {
	return render("questions.md", struct{ Exposition string }{Exposition: exposition})
}
