package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/pkg/llm"
)

// Completer is the chat-completion dependency. Satisfied by the LLM client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// DetectResult is the structured output of the detection pass
type DetectResult struct {
	IsDecision       bool     `json:"is_decision"`
	Confidence       float64  `json:"confidence"`
	Summary          string   `json:"summary"`
	ProblemStatement string   `json:"problem_statement"`
	OptionsDiscussed []string `json:"options_discussed"`
	FinalDecision    string   `json:"final_decision"`
	Rationale        string   `json:"rationale"`
	Participants     []string `json:"participants"`
}

// Brief is the structured decision brief produced by the generation pass
type Brief struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	ProblemStatement string   `json:"problem_statement"`
	OptionsDiscussed []string `json:"options_discussed"`
	FinalDecision    string   `json:"final_decision"`
	Rationale        string   `json:"rationale"`
	ActionItems      []string `json:"action_items"`
	Participants     []string `json:"participants"`
}

// Service runs the two-stage decision analysis: a cheap detection pass over
// every transcript, then a full brief generation only for transcripts above
// the confidence threshold. All model calls share one rate limiter.
type Service struct {
	llm     Completer
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewService creates a new analysis service
func NewService(completer Completer, limiter *rate.Limiter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		llm:     completer,
		limiter: limiter,
		logger:  logger,
	}
}

const detectPrompt = `You are a decision detector. Read the discussion transcript below and determine whether the participants reached a concrete decision.

Rules:
- A decision means the group settled on a specific course of action, not just discussed options.
- If participants changed their minds, report ONLY the latest decision.
- Respond with JSON only, no prose, using exactly this schema:
{
  "is_decision": boolean,
  "confidence": number between 0 and 1,
  "summary": "one-paragraph summary of the discussion",
  "problem_statement": "what problem was being solved",
  "options_discussed": ["option", ...],
  "final_decision": "the decision that was reached",
  "rationale": "why this option won",
  "participants": ["name", ...]
}

Transcript:
%s`

// Detect runs the detection pass. Output the model produced but that cannot
// be parsed is treated as "no decision found", not as a failure: the score is
// zeroed and no error is returned.
func (s *Service) Detect(ctx context.Context, transcript string) (*DetectResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return &DetectResult{IsDecision: false, Confidence: 0}, nil
	}

	content, err := s.complete(ctx, fmt.Sprintf(detectPrompt, transcript))
	if err != nil {
		return nil, errors.ErrAnalysisFailed(err)
	}

	var result DetectResult
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		s.logger.Warn("🤖 detector output not parseable, treating as no decision",
			zap.Error(err))
		return &DetectResult{IsDecision: false, Confidence: 0}, nil
	}

	result.Confidence = clamp(result.Confidence)
	return &result, nil
}

const briefPrompt = `You are a decision historian. Write a complete decision brief for the discussion below.

Context: %s

Respond with JSON only, no prose, using exactly this schema:
{
  "title": "short imperative title of the decision",
  "summary": "one-paragraph summary",
  "problem_statement": "what problem was being solved",
  "options_discussed": ["option", ...],
  "final_decision": "the decision that was reached",
  "rationale": "why this option won",
  "action_items": ["follow-up action", ...],
  "participants": ["name", ...]
}
All fields are required. If participants changed their minds, describe ONLY the latest decision.

Transcript:
%s`

// GenerateBrief runs the generation pass. Unlike Detect, a parse failure here
// is an error: the caller already knows a decision exists and needs the full
// brief or nothing.
func (s *Service) GenerateBrief(ctx context.Context, contextLabel, transcript string) (*Brief, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.ErrInvalidArgument("transcript is empty")
	}

	content, err := s.complete(ctx, fmt.Sprintf(briefPrompt, contextLabel, transcript))
	if err != nil {
		return nil, errors.ErrAnalysisFailed(err)
	}

	var brief Brief
	if err := json.Unmarshal([]byte(extractJSON(content)), &brief); err != nil {
		return nil, errors.ErrModelOutputParse(err)
	}

	if brief.Title == "" || brief.FinalDecision == "" {
		return nil, errors.ErrModelOutputParse(fmt.Errorf("brief missing required fields"))
	}

	return &brief, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return s.llm.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
}
