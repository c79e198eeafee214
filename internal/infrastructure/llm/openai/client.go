// Package openai provides a Recognizer and a GenderClassifier backed by an
// OpenAI-compatible chat completion endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
)

const recognitionPrompt = `You are a named-entity recognizer for GDPR pseudonymization.
Find every mention of a person, a location or an organization in the given text.

For each mention return:
- text: the mention exactly as written in the text
- type: PERSON, LOCATION or ORG
- gender: for PERSON only, "male", "female" or "unknown"
- confidence: How confident you are (0.0-1.0)

Return ONLY a valid JSON array, no other text. Return [] if there are none.

Example:
Input: "Marie Dubois a rejoint Nordis à Lyon."
Output: [
  {"text": "Marie Dubois", "type": "PERSON", "gender": "female", "confidence": 0.97},
  {"text": "Nordis", "type": "ORG", "confidence": 0.9},
  {"text": "Lyon", "type": "LOCATION", "confidence": 0.95}
]`

const genderPrompt = `Classify the grammatical gender usually associated with the given first name.
Answer with exactly one word: male, female, neutral or unknown.`

const defaultModel = "gpt-4o-mini"

// Client implements ports.Recognizer and ports.GenderClassifier.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI client. An API key is required unless a
// self-hosted base URL is configured.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	model := defaultModel
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// ModelInfo names the model for audit records.
func (c *Client) ModelInfo() (string, string) {
	return "openai", c.model
}

// rawMention is the JSON structure for recognized mentions.
type rawMention struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Gender     string  `json:"gender,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Recognize detects mentions chunk by chunk and maps each distinct mention
// back to every whole-word occurrence in the full text.
func (c *Client) Recognize(ctx context.Context, _ string, text string) ([]entities.DetectedSpan, error) {
	chunks := services.ChunkText(text, services.DefaultChunkSize, services.DefaultChunkOverlap)

	found := make(map[string]entities.DetectedSpan)
	var order []string
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		//nolint:loopcall // LLM has token limits, must process chunks separately
		mentions, err := c.recognizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("recognizing chunk %d: %w", i, err)
		}
		for _, m := range mentions {
			typ, err := entities.ParseEntityType(m.Type)
			if err != nil {
				continue
			}
			mentionText := strings.TrimSpace(m.Text)
			if mentionText == "" {
				continue
			}
			key := string(typ) + "\x00" + mentionText
			if prev, ok := found[key]; ok {
				if m.Confidence > prev.Confidence {
					prev.Confidence = m.Confidence
					found[key] = prev
				}
				continue
			}
			order = append(order, key)
			found[key] = entities.DetectedSpan{
				Text:       mentionText,
				EntityType: typ,
				Confidence: m.Confidence,
				GenderHint: parseGender(m.Gender),
			}
		}
	}

	var spans []entities.DetectedSpan
	for _, key := range order {
		base := found[key]
		for _, loc := range services.LocateAll(text, base.Text) {
			s := base
			s.Start, s.End = loc[0], loc[1]
			spans = append(spans, s)
		}
	}
	return dropOverlaps(spans), nil
}

func (c *Client) recognizeChunk(ctx context.Context, chunk string) ([]rawMention, error) {
	content, err := c.complete(ctx, recognitionPrompt, chunk)
	if err != nil {
		return nil, err
	}

	var mentions []rawMention
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &mentions); err != nil {
		return nil, fmt.Errorf("parsing mentions JSON: %w", err)
	}
	return mentions, nil
}

// Classify asks the model for the gender of a first name.
func (c *Client) Classify(ctx context.Context, firstName string) (entities.Gender, error) {
	content, err := c.complete(ctx, genderPrompt, firstName)
	if err != nil {
		return "", err
	}
	word := strings.Trim(strings.ToLower(strings.TrimSpace(content)), `."'`)
	g := parseGender(word)
	if g == entities.GenderNone {
		return entities.GenderUnknown, nil
	}
	return g, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func parseGender(s string) entities.Gender {
	switch entities.Gender(strings.ToLower(strings.TrimSpace(s))) {
	case entities.GenderMale:
		return entities.GenderMale
	case entities.GenderFemale:
		return entities.GenderFemale
	case entities.GenderNeutral:
		return entities.GenderNeutral
	case entities.GenderUnknown:
		return entities.GenderUnknown
	default:
		return entities.GenderNone
	}
}

// dropOverlaps keeps the longest span where spans overlap.
func dropOverlaps(spans []entities.DetectedSpan) []entities.DetectedSpan {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	out := spans[:0]
	end := -1
	for _, s := range spans {
		if s.Start < end {
			continue
		}
		out = append(out, s)
		end = s.End
	}
	return out
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
