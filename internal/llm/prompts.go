// Package llm provides the single typed entry point to the external
// language model, plus the prompt templates backends render against.
package llm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/playbookhq/engine/internal/models"
)

// TemplateNames lists the five named prompt templates the external
// interface exposes as a tuning surface.
var TemplateNames = []string{"reflection", "injection", "tagger", "task_guidance", "migration"}

const defaultReflectionTemplate = `You are reviewing a coding assistant conversation to update a project's playbook of lessons learned.

## Existing KPTs
{{range .ExistingKPTs}}- [{{.Name}}] (score {{.Score}}) {{.Body}} (tags: {{.Tags}})
{{end}}
## Transcript
{{range .Transcript}}{{.Role}}: {{.Text}}
{{end}}
## Task
1. Propose new KPTs for any distinct, durable lesson in this transcript not already covered.
2. For every existing KPT above, judge it helpful, neutral, harmful, or not_applicable to this transcript.
3. Propose merge groups for any existing KPTs that say the same thing (similarity >= {{.MergeThreshold}}).
4. List pending KPT names that this transcript corroborates and should be promoted to stable.

Respond with ONLY a JSON object:
{
  "new_kpts": [{"when": "...", "do": "...", "tags": ["..."], "effect_rating": 0.0, "risk_level": 0.0, "innovation_level": 0.0}],
  "deltas": [{"name": "kpt_001", "verdict": "helpful", "tag_additions": [], "text_rewrite": ""}],
  "merges": [{"survivor": "kpt_001", "absorbed": ["kpt_002"], "similarity": 0.9}],
  "promotions": ["kpt_003"]
}`

const defaultTaggerTemplate = `You are tagging a coding assistant prompt for retrieval against a playbook of lessons.

## Recent history
{{range .RecentHistory}}{{.Role}}: {{.Text}}
{{end}}
## Prompt
{{.Prompt}}

## Task
Propose up to {{.MaxTags}} normalized lowercase-hyphenated tags for this prompt, a temperature in [0,1] reflecting how much this prompt favors proven knowledge (low) vs exploratory/novel suggestions (high), and a complexity label (simple, moderate, complex).

Respond with ONLY a JSON object:
{"tags": ["..."], "temperature": 0.5, "complexity": "moderate"}`

const defaultMigrationTemplate = `Split this legacy single-statement lesson into a "when" condition and a "do" action.

## Text
{{.Text}}

Respond with ONLY a JSON object:
{"when": "...", "do": "...", "confidence": 0.8}`

const defaultInjectionTemplate = `Relevant prior knowledge:
{{range .KPTs}}- {{.}}
{{end}}
Apply what's relevant; ignore the rest.`

const defaultTaskGuidanceTemplate = `{{if .HasStructuredBody}}When {{.When}}, do {{.Do}}{{else}}{{.Text}}{{end}}`

// Templates holds the five named prompt templates, each overridable by a
// sibling file in the templates directory the host configures. Templates
// are read-only and cached in memory for the life of the process.
type Templates struct {
	reflection   *template.Template
	tagger       *template.Template
	migration    *template.Template
	injection    *template.Template
	taskGuidance *template.Template
}

// LoadTemplates builds a Templates set, starting from the compiled-in
// defaults and overriding any template for which dir/<name>.tmpl exists.
// An empty or missing dir uses defaults for everything.
func LoadTemplates(dir string) (*Templates, error) {
	t := &Templates{}
	var err error

	if t.reflection, err = loadOne(dir, "reflection", defaultReflectionTemplate); err != nil {
		return nil, err
	}
	if t.tagger, err = loadOne(dir, "tagger", defaultTaggerTemplate); err != nil {
		return nil, err
	}
	if t.migration, err = loadOne(dir, "migration", defaultMigrationTemplate); err != nil {
		return nil, err
	}
	if t.injection, err = loadOne(dir, "injection", defaultInjectionTemplate); err != nil {
		return nil, err
	}
	if t.taskGuidance, err = loadOne(dir, "task_guidance", defaultTaskGuidanceTemplate); err != nil {
		return nil, err
	}
	return t, nil
}

func loadOne(dir, name, fallback string) (*template.Template, error) {
	body := fallback
	if dir != "" {
		path := filepath.Join(dir, name+".tmpl")
		if data, err := os.ReadFile(path); err == nil {
			body = string(data)
		}
	}
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template: %w", name, err)
	}
	return tmpl, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// reflectionPromptKPT is the view of an existing KPT exposed to the
// reflection template.
type reflectionPromptKPT struct {
	Name  string
	Score int
	Body  string
	Tags  string
}

// RenderReflection builds the LLMGateway.Reflect prompt for playbook
// against transcript.
func (t *Templates) RenderReflection(transcript []models.TranscriptTurn, playbook *models.Playbook, mergeThreshold float64) (string, error) {
	existing := make([]reflectionPromptKPT, 0, playbook.Len())
	for _, k := range playbook.All() {
		existing = append(existing, reflectionPromptKPT{
			Name:  k.Name,
			Score: k.Score,
			Body:  k.Body(),
			Tags:  strings.Join(k.Tags, ", "),
		})
	}
	return render(t.reflection, struct {
		ExistingKPTs   []reflectionPromptKPT
		Transcript     []models.TranscriptTurn
		MergeThreshold float64
	}{existing, transcript, mergeThreshold})
}

// RenderTagger builds the LLMGateway.InferTags prompt for prompt given
// recentHistory, capped at maxTags.
func (t *Templates) RenderTagger(prompt string, recentHistory []models.TranscriptTurn, maxTags int) (string, error) {
	return render(t.tagger, struct {
		Prompt        string
		RecentHistory []models.TranscriptTurn
		MaxTags       int
	}{prompt, recentHistory, maxTags})
}

// RenderMigration builds the LLMGateway.MigrateToWhenDo prompt for a
// legacy single-text KPT body.
func (t *Templates) RenderMigration(text string) (string, error) {
	return render(t.migration, struct{ Text string }{text})
}

// RenderInjection renders the injection payload's bullet list from the
// selected KPTs' rendered bodies, per the external injection payload
// format (preamble, one bullet per KPT, closing line).
func (t *Templates) RenderInjection(kpts []models.KPT) (string, error) {
	lines := make([]string, 0, len(kpts))
	for _, k := range kpts {
		line, err := t.RenderTaskGuidance(k)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return render(t.injection, struct{ KPTs []string }{lines})
}

// RenderTaskGuidance renders a single KPT's statement, choosing between
// the legacy text shape and the structured when/do shape.
func (t *Templates) RenderTaskGuidance(k models.KPT) (string, error) {
	return render(t.taskGuidance, k)
}

// ExtractJSON extracts JSON content from a model response, handling
// markdown code blocks. It looks for JSON wrapped in ```json...``` or
// ```...``` blocks, or returns the input if it appears to be raw JSON.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	jsonBlockRe := regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\s*```")
	if matches := jsonBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	genericBlockRe := regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\s*```")
	if matches := genericBlockRe.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}
	return ""
}
