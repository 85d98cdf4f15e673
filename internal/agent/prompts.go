package agent

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/janburzinski/notra/internal/model"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// PromptInput fills the user prompt. Every field is plain text.
type PromptInput struct {
	SourceTargets      string
	TodayUTC           string
	LookbackLabel      string
	LookbackStartISO   string
	LookbackEndISO     string
	CompanyName        string
	CompanyDescription string
	Audience           string
	CustomInstructions string
}

type outputProfile struct {
	template     string
	instructions string
}

var outputProfiles = map[model.OutputType]outputProfile{
	model.OutputTypeChangelog: {
		template: "changelog.tmpl",
		instructions: "You write changelogs from repository activity. Follow the user prompt exactly and use tools only when they improve accuracy. " +
			"Save the finished changelog with the createPost tool. The title is plain text and the markdown must not repeat it as a heading.",
	},
	model.OutputTypeLinkedInPost: {
		template: "linkedin.tmpl",
		instructions: "You write LinkedIn posts from repository activity. Follow the user prompt exactly and use tools only when they improve accuracy. " +
			"Save the finished post with the createPost tool.",
	},
}

var toneGuides = map[model.ToneProfile]string{
	model.ToneConversational: "Conversational tone: warm, direct and specific.\nSound like a thoughtful builder talking to peers, not a marketer.",
	model.ToneProfessional:   "Professional tone: clear, credible and focused on outcomes.\nSound experienced without drifting into corporate language.",
	model.ToneCasual:         "Casual tone: friendly, simple and grounded.\nKeep it human but never sloppy or gimmicky.",
	model.ToneFormal:         "Formal tone: precise, composed and concise.\nSound authoritative while staying readable.",
}

// IsSupportedOutputType reports whether the agent can generate outputType.
func IsSupportedOutputType(outputType model.OutputType) bool {
	_, ok := outputProfiles[outputType]
	return ok
}

func systemPrompt(outputType model.OutputType) string {
	return outputProfiles[outputType].instructions
}

func userPrompt(outputType model.OutputType, tone model.ToneProfile, input PromptInput) (string, error) {
	profile, ok := outputProfiles[outputType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOutputType, outputType)
	}
	guide, ok := toneGuides[tone]
	if !ok {
		guide = toneGuides[model.ToneConversational]
	}

	data := struct {
		PromptInput
		ToneGuide string
	}{input, guide}

	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, profile.template, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", outputType, err)
	}
	return buf.String(), nil
}
