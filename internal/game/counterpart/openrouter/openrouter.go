// Package openrouter implements the counterpart contract against the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/splitpoint/ultimatum/internal/game/counterpart"
	"github.com/splitpoint/ultimatum/internal/game/domain"
)

const (
	defaultURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel = "anthropic/claude-sonnet-4"

	requestTimeout = 30 * time.Second
	maxTokens      = 300
	temperature    = 0.7

	// fallbackProposal is the fair split used when a reply cannot be parsed.
	fallbackProposal = 5
)

// Config configures the OpenRouter endpoint and HTTP behavior.
type Config struct {
	APIKey     string
	Model      string
	URL        string
	HTTPClient *http.Client
}

// Client calls OpenRouter to produce counterpart turns.
type Client struct {
	cfg Config
}

// New builds an OpenRouter-backed counterpart.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{cfg: cfg}, nil
}

// Act produces the counterpart's move for the turn by prompting the model
// and parsing its structured reply.
func (c *Client) Act(ctx context.Context, turn counterpart.TurnContext) (counterpart.Reply, error) {
	var prompt string
	switch turn.ExpectedRole {
	case domain.RoleProposer:
		prompt = proposalPrompt(turn)
	case domain.RoleDecider:
		if turn.PendingProposal == nil {
			return counterpart.Reply{}, fmt.Errorf("decision turn without pending proposal")
		}
		prompt = decisionPrompt(turn)
	default:
		return counterpart.Reply{}, fmt.Errorf("unexpected role %q", turn.ExpectedRole)
	}

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return counterpart.Reply{}, err
	}
	return parseReply(content, turn.ExpectedRole), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, systemPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "system", Content: systemPrompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openrouter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read openrouter response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("openrouter api key is invalid")
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("openrouter rate limit exceeded")
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("openrouter status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

const rulesPreamble = `You are playing an ultimatum game against a human player for %d rounds. Your goal is to maximize your total points across all rounds.

In each round, one player proposes how to split %d points, and the other decides whether to accept or reject. If rejected, both get 0 points for that round.
`

func decisionPrompt(turn counterpart.TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, rulesPreamble, domain.TotalRounds, domain.PotPoints)
	proposal := *turn.PendingProposal
	fmt.Fprintf(&b, `
Current situation:
- Round %d of %d
- Current scores: Human %d, AI %d
- Human proposed: %d points for human, %d points for you
`, turn.Round, domain.TotalRounds, turn.HumanScore, turn.AIScore, proposal, domain.PotPoints-proposal)

	b.WriteString("\nGame history:\n")
	b.WriteString(renderHistory(turn.Ledger))

	fmt.Fprintf(&b, `
You must respond with EXACTLY this format:
DECISION: [ACCEPT or REJECT]
MESSAGE: [your message up to %d characters]

Consider the overall game strategy - you want to maximize your total points over %d rounds, not just this round.`, domain.MaxMessageLength, domain.TotalRounds)
	return b.String()
}

func proposalPrompt(turn counterpart.TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, rulesPreamble, domain.TotalRounds, domain.PotPoints)
	fmt.Fprintf(&b, `
Current situation:
- Round %d of %d
- Current scores: Human %d, AI %d
- It's your turn to propose how to split %d points
`, turn.Round, domain.TotalRounds, turn.HumanScore, turn.AIScore, domain.PotPoints)

	b.WriteString("\nGame history:\n")
	b.WriteString(renderHistory(turn.Ledger))

	fmt.Fprintf(&b, `
You must respond with EXACTLY this format:
PROPOSAL: [number 0-%d representing points for human]
MESSAGE: [your message up to %d characters]

Remember: You want to maximize YOUR total points over all %d rounds. Consider what the human might accept based on the game history.`, domain.PotPoints, domain.MaxMessageLength, domain.TotalRounds)
	return b.String()
}

func renderHistory(ledger domain.Ledger) string {
	var b strings.Builder
	for _, ev := range ledger {
		if ev.Proposal != nil {
			fmt.Fprintf(&b, "Round %d: %s proposed %d points for human, %d for AI. Message: %q\n",
				ev.RoundNum, ev.Actor, *ev.Proposal, domain.PotPoints-*ev.Proposal, ev.Message)
		}
		if ev.Decision != nil {
			action := "rejected"
			if *ev.Decision {
				action = "accepted"
			}
			fmt.Fprintf(&b, "Round %d: %s %s the proposal. Message: %q\n", ev.RoundNum, ev.Actor, action, ev.Message)
		}
	}
	return b.String()
}

// parseReply extracts the structured move from the model's text. Replies that
// miss the expected format fall back to a rejection or a fair split rather
// than failing the turn.
func parseReply(content string, role domain.Role) counterpart.Reply {
	var (
		proposal *int
		decision *bool
		message  string
	)

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "PROPOSAL:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "PROPOSAL:"))
			value, err := strconv.Atoi(raw)
			if err != nil || value < 0 || value > domain.PotPoints {
				value = fallbackProposal
			}
			proposal = &value
		case strings.HasPrefix(line, "DECISION:"):
			raw := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, "DECISION:")))
			accept := raw == "ACCEPT"
			decision = &accept
		case strings.HasPrefix(line, "MESSAGE:"):
			message = clampMessage(strings.TrimSpace(strings.TrimPrefix(line, "MESSAGE:")))
		}
	}

	switch role {
	case domain.RoleProposer:
		if proposal == nil {
			value := fallbackProposal
			proposal = &value
			message = "I propose a fair split."
		}
		return counterpart.Reply{Proposal: proposal, Message: message}
	default:
		if decision == nil {
			reject := false
			decision = &reject
			message = "I need to reject this proposal."
		}
		return counterpart.Reply{Decision: decision, Message: message}
	}
}

func clampMessage(message string) string {
	if len(message) <= domain.MaxMessageLength {
		return message
	}
	clipped := message[:domain.MaxMessageLength]
	// Avoid splitting a multi-byte rune at the cap.
	for len(clipped) > 0 && !utf8.ValidString(clipped) {
		clipped = clipped[:len(clipped)-1]
	}
	return clipped
}
