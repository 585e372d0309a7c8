package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"rust_mentor_bot/internal/domain/catalog"
	"rust_mentor_bot/internal/domain/content"
)

const systemPrompt = "You are a Rust programming expert creating concise, engaging lessons. " +
	"Keep responses focused on Rust programming. Use proper Rust code formatting."

// Client generates lessons through the OpenAI chat completions API.
type Client struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient builds a generator against the given API base URL, e.g.
// "https://api.openai.com/v1". The timeout bounds a single completion call.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		apiURL:      strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		model:       model,
		maxTokens:   1000,
		temperature: 0.7,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Message represents a message in the chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces a lesson for a specific catalog topic.
func (c *Client) Generate(ctx context.Context, topic *catalog.Topic, profile content.Profile) (*content.Lesson, error) {
	prompt := fmt.Sprintf(
		"Create a mini Rust programming lesson about %q with the following considerations:\n%s\n"+
			"The lesson should:\n"+
			"1. Be concise but thorough (250-400 words)\n"+
			"2. Include a practical code example\n"+
			"3. Explain key concepts clearly\n"+
			"4. Reference previously mastered topics when relevant\n"+
			"5. End with a section titled 'Exercise:' containing one small challenge\n",
		topic.Title, profileContext(profile),
	)
	return c.complete(ctx, prompt, topic.Title)
}

// GenerateFreeForm produces a lesson with no fixed topic, steered only by
// the learner's profile.
func (c *Client) GenerateFreeForm(ctx context.Context, profile content.Profile) (*content.Lesson, error) {
	prompt := fmt.Sprintf(
		"Create a short personalized Rust mini-lesson with the following considerations:\n%s\n"+
			"Pick whatever aspect of Rust would help this learner most right now. "+
			"Be concise (under 300 words), include one code example, and end with a "+
			"section titled 'Exercise:' containing one small challenge.\n",
		profileContext(profile),
	)
	return c.complete(ctx, prompt, "Rust Mini-Lesson")
}

func profileContext(profile content.Profile) string {
	strong := "None yet"
	if len(profile.StrongTopics) > 0 {
		strong = strings.Join(profile.StrongTopics, ", ")
	}
	weak := "None yet"
	if len(profile.WeakTopics) > 0 {
		weak = strings.Join(profile.WeakTopics, ", ")
	}
	return fmt.Sprintf(
		"- User's current level: %s\n- Their strong areas are: %s\n- Their weak areas are: %s",
		profile.Level, strong, weak,
	)
}

func (c *Client) complete(ctx context.Context, prompt, fallbackTitle string) (*content.Lesson, error) {
	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures are worth retrying.
		return nil, fmt.Errorf("%w: %v", content.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: upstream returned status %d", content.ErrGeneration, resp.StatusCode)
	}

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", content.ErrGeneration, err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices returned", content.ErrGeneration)
	}

	return parseLesson(strings.TrimSpace(response.Choices[0].Message.Content), fallbackTitle), nil
}

// exerciseMarker is matched on the raw completion. Folding a copy of the
// string would shift byte offsets for characters whose case pair differs
// in length, so the search has to stay on the original bytes.
var exerciseMarker = regexp.MustCompile(`(?i)exercise:`)

// parseLesson splits the raw completion into title, body and exercise. The
// model is asked for a markdown heading and an "Exercise:" section but is
// not guaranteed to comply, so both are best effort.
func parseLesson(raw, fallbackTitle string) *content.Lesson {
	lesson := &content.Lesson{Title: fallbackTitle, Body: raw}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			lesson.Title = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			break
		}
	}

	if locs := exerciseMarker.FindAllStringIndex(raw, -1); len(locs) > 0 {
		loc := locs[len(locs)-1]
		lesson.Body = strings.TrimSpace(raw[:loc[0]])
		lesson.Exercise = strings.TrimSpace(raw[loc[1]:])
	}
	return lesson
}

var _ content.Generator = (*Client)(nil)
