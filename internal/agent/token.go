package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/agentctl/runtime/pkg/models"
)

// charsPerTokenFallback approximates a BPE encoder when none is available
// for the requested model: ceil(total_chars / 2.5).
const charsPerTokenFallback = 2.5

// RoundSummarizer generates a compact summary of one execution round
// (the assistant/tool traffic between two user turns) for MaybeSummarize.
// Implementations typically call out to an LLMProvider; TokenManager never
// treats a failure here as fatal to the run.
type RoundSummarizer interface {
	SummarizeRound(ctx context.Context, round []models.Message) (string, error)
}

// TokenManager estimates token usage for a message history and, when the
// estimate exceeds a configured limit, compacts the history round by
// round per spec.md 4.2's iterative summarization algorithm.
type TokenManager struct {
	// TokenLimit is the budget MaybeSummarize enforces. A value <= 0
	// disables summarization entirely; a nil Summarizer does not (rounds
	// then get the deterministic placeholder).
	TokenLimit int

	// EnableSummarization gates MaybeSummarize independently of TokenLimit.
	EnableSummarization bool

	// Summarizer generates the per-round summary text. If nil,
	// MaybeSummarize always falls back to the deterministic placeholder.
	Summarizer RoundSummarizer

	Logger *slog.Logger

	encMu sync.Mutex
	enc   *tiktoken.Tiktoken
	encOK bool
}

// NewTokenManager constructs a TokenManager. model selects the BPE
// encoding through tiktoken's model table (e.g. "gpt-4" maps to
// cl100k_base); a model tiktoken does not recognize, such as a Claude
// model, falls back to the char heuristic.
func NewTokenManager(model string, tokenLimit int, summarizer RoundSummarizer, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	tm := &TokenManager{
		TokenLimit:          tokenLimit,
		EnableSummarization: true,
		Summarizer:          summarizer,
		Logger:              logger,
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil && enc != nil {
		tm.enc = enc
		tm.encOK = true
	}
	return tm
}

// EstimateTokens approximates the token count of a message history. It
// prefers a real BPE encoder; on any failure (unknown model, encoder
// error) it falls back to ceil(total_chars / 2.5).
func (tm *TokenManager) EstimateTokens(messages []models.Message) int {
	if tm.encOK {
		if n, ok := tm.estimateWithEncoder(messages); ok {
			return n
		}
	}
	return tm.estimateWithCharFallback(messages)
}

func (tm *TokenManager) estimateWithEncoder(messages []models.Message) (int, bool) {
	tm.encMu.Lock()
	defer tm.encMu.Unlock()

	total := 0
	for _, m := range messages {
		total += len(tm.enc.Encode(m.Content, nil, nil))
		for _, tc := range m.ToolCalls {
			total += len(tm.enc.Encode(string(tc.Input), nil, nil))
		}
		for _, tr := range m.ToolResults {
			total += len(tm.enc.Encode(tr.Content, nil, nil))
		}
	}
	return total, true
}

func (tm *TokenManager) estimateWithCharFallback(messages []models.Message) int {
	totalChars := 0
	for _, m := range messages {
		totalChars += len(m.Content)
		for _, tc := range m.ToolCalls {
			totalChars += len(tc.Input)
		}
		for _, tr := range m.ToolResults {
			totalChars += len(tr.Content)
		}
	}
	return int(math.Ceil(float64(totalChars) / charsPerTokenFallback))
}

// MaybeSummarize returns messages unchanged if EstimateTokens(messages) is
// within TokenLimit (or summarization is disabled). Otherwise it replaces
// each execution round — the assistant/tool traffic between consecutive
// user turns — with a single synthetic user message labelled
// "[Assistant Execution Summary]", preserving message 0 (system) and
// every user message's position and content.
func (tm *TokenManager) MaybeSummarize(ctx context.Context, messages []models.Message) []models.Message {
	if !tm.EnableSummarization || tm.TokenLimit <= 0 {
		return messages
	}
	if tm.EstimateTokens(messages) <= tm.TokenLimit {
		return messages
	}
	if len(messages) == 0 {
		return messages
	}

	out := make([]models.Message, 0, len(messages))
	out = append(out, messages[0]) // system, always retained

	userIdx := make([]int, 0)
	for i := 1; i < len(messages); i++ {
		if messages[i].Role == models.RoleUser {
			userIdx = append(userIdx, i)
		}
	}

	if len(userIdx) == 0 {
		// No user turns to anchor rounds on; nothing safe to compact.
		return messages
	}

	// Anything strictly between index 0 and the first user message is
	// itself a round with no preceding user turn in this slice; fold it
	// into round 0's summary alongside the first user message's own
	// output-producing span.
	roundNum := 0
	for i, uIdx := range userIdx {
		out = append(out, messages[uIdx])

		spanStart := uIdx + 1
		var spanEnd int
		if i+1 < len(userIdx) {
			spanEnd = userIdx[i+1]
		} else {
			spanEnd = len(messages)
		}

		var round []models.Message
		if i == 0 && uIdx > 1 {
			round = append(round, messages[1:uIdx]...)
		}
		if spanStart < spanEnd {
			round = append(round, messages[spanStart:spanEnd]...)
		}
		if len(round) == 0 {
			continue
		}
		roundNum++
		out = append(out, tm.summarizeRound(ctx, roundNum, round))
	}

	return out
}

func (tm *TokenManager) summarizeRound(ctx context.Context, roundNum int, round []models.Message) models.Message {
	content := tm.placeholder(roundNum, len(round))
	if tm.Summarizer != nil {
		summary, err := tm.Summarizer.SummarizeRound(ctx, round)
		if err != nil {
			tm.Logger.Warn("round summarization failed, using placeholder",
				"round", roundNum, "error", err)
		} else if summary != "" {
			content = fmt.Sprintf("[Assistant Execution Summary]\n%s", summary)
		}
	}
	return models.Message{
		Role:    models.RoleUser,
		Content: content,
		Metadata: map[string]any{
			"execution_round_summary": true,
			"round":                   roundNum,
		},
	}
}

func (tm *TokenManager) placeholder(roundNum, steps int) string {
	return fmt.Sprintf("[Assistant Execution Summary]\nRound %d: executed %d steps (summary generation failed)", roundNum, steps)
}
