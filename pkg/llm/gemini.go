// pkg/llm/gemini.go

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

// Service drafts marketing content with Gemini. It is the "direct" generator
// used when a content kind should not go through its automation webhook.
type Service struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiService creates a new Gemini AI service instance.
func NewGeminiService(ctx context.Context, apiKey, modelName string) (*Service, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	return &Service{client: client, model: model, modelName: modelName}, nil
}

// kindBriefs describes what each content kind should look like.
var kindBriefs = map[content.Kind]string{
	content.KindArticles:    "a complete long-form blog article in markdown with headings",
	content.KindIdeas:       "a numbered list of 8 to 10 distinct article ideas, one line each with a short angle",
	content.KindOutlines:    "a detailed article outline in markdown: title, introduction, H2 sections with bullet points, conclusion",
	content.KindNewsletters: "an email newsletter outline: subject line, preview text, 3 to 5 sections and a call to action",
	content.KindSocialPosts: "three social media posts (LinkedIn, X, Instagram) each with suggested hashtags",
	content.KindBrochures:   "brochure copy: headline, subheadline, benefit sections and a closing call to action",
}

// Generate drafts one item of kind for prompt.
func (s *Service) Generate(ctx context.Context, kind content.Kind, prompt content.Prompt) (*content.Draft, error) {
	text, err := buildPrompt(kind, prompt)
	if err != nil {
		return nil, err
	}
	log.Debugf("Generate: asking Gemini for %s on %q", kind, prompt.Topic)

	resp, err := s.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		log.Errorf("Generate: Gemini call for %s failed: %v", kind, err)
		return nil, fmt.Errorf("gemini API call failed for %s: %w", kind, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warnf("Generate: Gemini returned no candidates for %s", kind)
		return nil, fmt.Errorf("%w: gemini returned no candidates", content.ErrEmptyGenerate)
	}

	part, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		log.Errorf("Generate: Gemini response part is not text: %v", resp.Candidates[0].Content.Parts[0])
		return nil, fmt.Errorf("gemini API returned non-text content for %s", kind)
	}

	draft, err := parseDraft(string(part), prompt.Topic)
	if err != nil {
		return nil, err
	}
	draft.Metadata = map[string]interface{}{"source": "gemini", "model": s.modelName}
	log.Infof("Generate: drafted %s %q", kind, draft.Title)
	return draft, nil
}

func buildPrompt(kind content.Kind, p content.Prompt) (string, error) {
	brief, ok := kindBriefs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", content.ErrUnknownKind, kind)
	}
	if strings.TrimSpace(p.Topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior B2B marketing copywriter. Write %s.\n\n", brief)
	fmt.Fprintf(&b, "Topic: %s\n", p.Topic)
	if p.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", p.Audience)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", p.Tone)
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords to include: %s\n", strings.Join(p.Keywords, ", "))
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", p.Notes)
	}
	b.WriteString("\nRespond with ONLY a JSON object of the form {\"title\": string, \"content\": string}. ")
	b.WriteString("Put the full text in content. No text outside the JSON object.")
	return b.String(), nil
}

// parseDraft reads the model's JSON answer. Gemini sometimes wraps it in
// markdown fences, and sometimes ignores the format entirely, in which case
// the raw text becomes the content.
func parseDraft(raw, fallbackTitle string) (*content.Draft, error) {
	clean := stripFences(raw)
	if clean == "" {
		return nil, content.ErrEmptyGenerate
	}

	var out struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil || strings.TrimSpace(out.Content) == "" {
		log.Warnf("parseDraft: Gemini answer is not the expected JSON, keeping raw text")
		return &content.Draft{Title: fallbackTitle, Content: clean}, nil
	}
	if out.Title == "" {
		out.Title = fallbackTitle
	}
	return &content.Draft{Title: out.Title, Content: out.Content}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// drop a language tag such as ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[\"") {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// Close releases the underlying Gemini client.
func (s *Service) Close() error {
	log.Info("Closing Gemini AI service client.")
	return s.client.Close()
}
