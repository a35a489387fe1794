// Package prompts renders the file-backed prompt templates into the
// system and user prompts the reading engines send to the orchestrator.
// Templates ship embedded; a directory of overrides can replace any of
// them at boot.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/invopop/jsonschema"

	"github.com/arcanum-labs/arcanum/pkg/tarot"
)

//go:embed templates
var embeddedTemplates embed.FS

// Template names addressable through Render.
const (
	TemplateSystem              = "system/tarot_expert"
	TemplateOneCard             = "reading/one_card"
	TemplateThreeCardPPF        = "reading/three_card_past_present_future"
	TemplateThreeCardSAO        = "reading/three_card_situation_action_outcome"
	TemplateCelticCard          = "reading/celtic_cross_card"
	TemplateCelticOverall       = "reading/celtic_cross_overall"
	TemplateCelticRelationships = "reading/celtic_cross_relationships"
	TemplateCelticAdvice        = "reading/celtic_cross_advice"
	TemplateStructuredResponse  = "output/structured_response"
)

// ReadingData is the payload every reading template receives.
type ReadingData struct {
	Question       string
	UserContext    string
	Category       string
	Language       string
	Context        string
	Cards          []CardPromptContext
	OverallSummary string
}

// BuildRequest drives BuildFullPrompt. The zero value of the Skip flags
// means both the system prompt and the output-format block are included.
type BuildRequest struct {
	Question    string
	Cards       []tarot.DrawnCard
	SpreadType  tarot.SpreadType
	Category    string
	UserContext string
	Language    string
	Context     string

	SkipSystem       bool
	SkipOutputFormat bool
}

// FullPrompt is the rendered pair the orchestrator consumes.
type FullPrompt struct {
	SystemPrompt string
	UserPrompt   string
}

// Builder holds the parsed template set.
type Builder struct {
	tmpl *template.Template
}

// NewBuilder parses the embedded templates, then applies overrides from
// overrideDir (same relative layout) when it is non-empty.
func NewBuilder(overrideDir string) (*Builder, error) {
	root := template.New("prompts")

	err := fs.WalkDir(embeddedTemplates, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".txt") {
			return err
		}
		content, err := embeddedTemplates.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = root.New(templateName(strings.TrimPrefix(path, "templates/"))).Parse(string(content))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	if overrideDir != "" {
		err := filepath.WalkDir(overrideDir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".txt") {
				return err
			}
			rel, err := filepath.Rel(overrideDir, path)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			// Parsing under an existing name replaces the embedded default.
			_, err = root.New(templateName(filepath.ToSlash(rel))).Parse(string(content))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to parse template overrides from %s: %w", overrideDir, err)
		}
	}

	return &Builder{tmpl: root}, nil
}

func templateName(relPath string) string {
	return strings.TrimSuffix(relPath, ".txt")
}

// Has reports whether a template with the given name is defined.
func (b *Builder) Has(name string) bool {
	return b.tmpl.Lookup(name) != nil
}

// Render executes one named template.
func (b *Builder) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// ReadingTemplate maps a spread to its single-call reading template. The
// Celtic Cross has no single-call template; it is read by the parallel
// engine through the celtic template family.
func ReadingTemplate(t tarot.SpreadType) (string, error) {
	switch t {
	case tarot.SpreadOneCard:
		return TemplateOneCard, nil
	case tarot.SpreadThreeCardPastPresent:
		return TemplateThreeCardPPF, nil
	case tarot.SpreadThreeCardSituationAction:
		return TemplateThreeCardSAO, nil
	default:
		return "", fmt.Errorf("spread %s has no single-call reading template", t)
	}
}

// BuildFullPrompt validates the card count against the spread, translates
// the cards to the bilingual template shape, and renders the system,
// reading, and output-format sections.
func (b *Builder) BuildFullPrompt(req BuildRequest) (*FullPrompt, error) {
	spread, err := tarot.GetSpread(req.SpreadType)
	if err != nil {
		return nil, err
	}
	if len(req.Cards) != spread.CardCount {
		return nil, fmt.Errorf("spread %s requires %d cards, got %d",
			req.SpreadType, spread.CardCount, len(req.Cards))
	}

	readingName, err := ReadingTemplate(req.SpreadType)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = "ko"
	}
	data := ReadingData{
		Question:    req.Question,
		UserContext: req.UserContext,
		Category:    req.Category,
		Language:    language,
		Context:     req.Context,
		Cards:       TranslateCards(req.Cards, spread.Positions),
	}

	out := &FullPrompt{}
	if !req.SkipSystem {
		out.SystemPrompt, err = b.Render(TemplateSystem, data)
		if err != nil {
			return nil, err
		}
	}

	out.UserPrompt, err = b.Render(readingName, data)
	if err != nil {
		return nil, err
	}

	if !req.SkipOutputFormat {
		block, err := b.OutputFormat()
		if err != nil {
			return nil, err
		}
		out.UserPrompt = strings.TrimRight(out.UserPrompt, "\n") + "\n\n" + block
	}
	return out, nil
}

// OutputFormat renders the structured-response block with the reading
// schema embedded.
func (b *Builder) OutputFormat() (string, error) {
	schema, err := readingSchemaJSON()
	if err != nil {
		return "", err
	}
	return b.Render(TemplateStructuredResponse, struct{ Schema string }{Schema: schema})
}

var (
	schemaOnce sync.Once
	schemaJSON string
	schemaErr  error
)

// readingSchemaJSON derives the JSON schema of the structured reading
// output once per process.
func readingSchemaJSON() (string, error) {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			DoNotReference: true,
			Anonymous:      true,
		}
		schema := reflector.Reflect(&tarot.ReadingResponse{})
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			schemaErr = fmt.Errorf("failed to marshal reading schema: %w", err)
			return
		}
		schemaJSON = string(data)
	})
	return schemaJSON, schemaErr
}
