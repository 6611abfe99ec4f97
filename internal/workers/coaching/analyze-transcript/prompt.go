// internal/workers/coaching/analyze-transcript/prompt.go
package analyzetranscript

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// RubricVersion identifies the evaluation rubric embedded in every prompt.
const RubricVersion = "Funnel‑Coach‑Gem v1‑2025‑05‑21 (Rev 7)‑explore‑100pt"

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("funnel-coach").Option("missingkey=error").Parse(promptSource))

type promptData struct {
	SalesRepNames string
	MerchantNames string
	Transcript    string
}

// BuildPrompt renders the rubric around the transcript and speaker labels.
func BuildPrompt(transcript, salesRepNames, merchantNames string) (string, error) {
	var b strings.Builder
	b.Grow(len(promptSource) + len(transcript) + 256)

	err := promptTemplate.Execute(&b, promptData{
		SalesRepNames: salesRepNames,
		MerchantNames: merchantNames,
		Transcript:    transcript,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
