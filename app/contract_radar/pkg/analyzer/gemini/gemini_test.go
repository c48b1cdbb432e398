package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

type fakeModels struct {
	reply    string
	err      error
	model    string
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.cfg = model, contents, cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.reply}}}},
		},
	}, nil
}

func TestComplete(t *testing.T) {
	fake := &fakeModels{reply: `{"overallScore":42}`}
	c := New(fake, config.LLMConfig{Model: "gemini-2.5-flash", Temperature: 0.2, MaxTokens: 4000})

	out, err := c.Complete(context.Background(), model.Segment{Text: "Indemnity clause.", Index: 2, Total: 3})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != `{"overallScore":42}` {
		t.Errorf("out = %q", out)
	}
	if fake.model != "gemini-2.5-flash" {
		t.Errorf("model = %q", fake.model)
	}
	if fake.cfg.ResponseMIMEType != "application/json" || fake.cfg.ResponseSchema == nil {
		t.Errorf("JSON response mode not requested")
	}
	if fake.cfg.MaxOutputTokens != 4000 {
		t.Errorf("MaxOutputTokens = %d", fake.cfg.MaxOutputTokens)
	}
	if !strings.Contains(fake.cfg.SystemInstruction.Parts[0].Text, "chunk 3 of 3") {
		t.Errorf("system instruction = %q", fake.cfg.SystemInstruction.Parts[0].Text)
	}
	if !strings.Contains(fake.contents[0].Parts[0].Text, "Indemnity clause.") {
		t.Errorf("segment text not sent")
	}
}

func TestComplete_RateLimited(t *testing.T) {
	fake := &fakeModels{err: genai.APIError{Code: 429, Message: "quota exceeded"}}
	c := New(fake, config.LLMConfig{Model: "m"})
	_, err := c.Complete(context.Background(), model.Segment{Text: "x", Total: 1})
	if !errors.Is(err, analyzer.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestResponseSchemaRequiresAllFields(t *testing.T) {
	s := responseSchema()
	if len(s.Required) != 5 {
		t.Errorf("Required = %v", s.Required)
	}
	if s.Properties["criticalPoints"].Items.Required[0] != "title" {
		t.Errorf("criticalPoints items should require title")
	}
	if s.Properties["recommendations"].Items.Required[0] != "text" {
		t.Errorf("recommendations items should require text")
	}
}
