// Package conversation screens inbound widget chat turns before they reach
// interpretation or booking logic.
package conversation

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

var guardTracer = otel.Tracer("widget.internal.conversation.guard")

const (
	// MaxMessageRunes is the longest message the guard accepts.
	MaxMessageRunes = 250
	// RepeatThreshold counts identical user messages, the latest included.
	RepeatThreshold = 2
	// FloodThreshold counts consecutive user turns without an assistant reply.
	FloodThreshold = 5
	// MaxUnclearAttempts is the unclear verdict that resets the conversation.
	MaxUnclearAttempts = 3

	gibberishMinRun        = 6
	gibberishDistinctRatio = 0.35
	gibberishRepeatRun     = 4
	gibberishKeyboardRun   = 5
)

// Replies returned to the widget. The escalation reply is fixed.
const (
	EscalationReply = "I'll notify the team so someone from the clinic can follow up with you directly."
	ResetReply      = "Let's start over. I can help you book a new appointment or change an existing one. What would you like to do?"
)

var nudgeReplies = [MaxUnclearAttempts - 1]string{
	"Sorry, I didn't quite catch that. Could you tell me what you'd like to book or which day works for you?",
	"I'm still having trouble understanding. Try a short message like \"Book a cleaning next Tuesday\" or share the email you booked with.",
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of the chat.
type Message struct {
	Role Role   `json:"role" validate:"oneof=user assistant"`
	Text string `json:"text" validate:"max=4000"`
}

// Turn is the input to Screen. History holds the turns before Message, oldest
// first. FailedUnclearAttempts is the counter the caller round-trips.
type Turn struct {
	Message               string
	History               []Message
	FailedUnclearAttempts int
}

// Verdict is the guard decision for a turn.
type Verdict string

const (
	VerdictAccept   Verdict = "accept"
	VerdictUnclear  Verdict = "unclear"
	VerdictEscalate Verdict = "escalate"
)

// Reason names the rule that produced a verdict.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonEscalation Reason = "escalation"
	ReasonTooLong    Reason = "too_long"
	ReasonNoContent  Reason = "no_content"
	ReasonRepeated   Reason = "repeated"
	ReasonGibberish  Reason = "gibberish"
	ReasonFlooding   Reason = "flooding"
)

// Result tells the caller whether to forward the message and what to say when
// it does not. FailedUnclearAttempts is the value to resupply next turn.
type Result struct {
	Verdict               Verdict        `json:"verdict"`
	Reason                Reason         `json:"reason,omitempty"`
	Reply                 string         `json:"reply,omitempty"`
	Handoff               bool           `json:"handoff"`
	Reset                 bool           `json:"reset"`
	FailedUnclearAttempts int            `json:"failed_unclear_attempts"`
	Escalation            EscalationType `json:"escalation,omitempty"`
}

// Guard applies the screening rules. It keeps no per-conversation state and
// is safe for concurrent use.
type Guard struct {
	detector *EscalationDetector
	metrics  *metrics.WidgetMetrics
	logger   *logging.Logger
}

// NewGuard builds a guard. metrics may be nil.
func NewGuard(logger *logging.Logger, m *metrics.WidgetMetrics) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{
		detector: NewEscalationDetector(logger),
		metrics:  m,
		logger:   logger,
	}
}

// Screen evaluates the latest message. Rules run in order and the first match
// wins. It never fails: every outcome is a Result.
func (g *Guard) Screen(ctx context.Context, turn Turn) Result {
	ctx, span := guardTracer.Start(ctx, "guard.screen")
	defer span.End()

	attempts := turn.FailedUnclearAttempts
	if attempts < 0 {
		attempts = 0
	}
	text := strings.TrimSpace(turn.Message)

	var res Result
	if esc := g.detector.Detect(ctx, text); esc.Detected {
		res = Result{
			Verdict:               VerdictEscalate,
			Reason:                ReasonEscalation,
			Reply:                 EscalationReply,
			Handoff:               true,
			FailedUnclearAttempts: attempts,
			Escalation:            esc.Type,
		}
	} else if reason := classify(text, turn.History); reason != ReasonNone {
		res = unclear(reason, attempts)
		g.logger.Debug("chat turn unclear",
			"reason", string(reason),
			"attempts", res.FailedUnclearAttempts,
			"reset", res.Reset,
		)
	} else {
		res = Result{Verdict: VerdictAccept, FailedUnclearAttempts: attempts}
	}

	span.SetAttributes(
		attribute.String("guard.verdict", string(res.Verdict)),
		attribute.String("guard.reason", string(res.Reason)),
		attribute.Int("guard.attempts", res.FailedUnclearAttempts),
	)
	reasonLabel := string(res.Reason)
	if reasonLabel == "" {
		reasonLabel = "none"
	}
	g.metrics.ObserveGuardVerdict(string(res.Verdict), reasonLabel)
	return res
}

// unclear climbs the ladder: nudge, nudge, reset.
func unclear(reason Reason, attempts int) Result {
	next := attempts + 1
	if next >= MaxUnclearAttempts {
		return Result{
			Verdict:               VerdictUnclear,
			Reason:                reason,
			Reply:                 ResetReply,
			Reset:                 true,
			FailedUnclearAttempts: 0,
		}
	}
	return Result{
		Verdict:               VerdictUnclear,
		Reason:                reason,
		Reply:                 nudgeReplies[next-1],
		FailedUnclearAttempts: next,
	}
}

// classify runs the non-escalation rules on trimmed text.
func classify(text string, history []Message) Reason {
	switch {
	case utf8.RuneCountInString(text) > MaxMessageRunes:
		return ReasonTooLong
	case !hasContent(text):
		return ReasonNoContent
	case repeats(text, history) >= RepeatThreshold:
		return ReasonRepeated
	case isGibberish(text):
		return ReasonGibberish
	case trailingUserTurns(history)+1 >= FloodThreshold:
		return ReasonFlooding
	}
	return ReasonNone
}

func hasContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// repeats counts user messages equal to text, text itself included.
func repeats(text string, history []Message) int {
	n := 1
	for _, m := range history {
		if m.Role == RoleUser && strings.TrimSpace(m.Text) == text {
			n++
		}
	}
	return n
}

func trailingUserTurns(history []Message) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != RoleUser {
			break
		}
		n++
	}
	return n
}

var wordPattern = regexp.MustCompile(`\p{L}+`)

// isGibberish reports keyboard mashing: no known word, no digit, no date word
// and at least one long letter run with low diversity.
func isGibberish(text string) bool {
	lower := strings.ToLower(text)
	if strings.IndexFunc(lower, unicode.IsDigit) >= 0 {
		return false
	}
	tokens := wordPattern.FindAllString(lower, -1)
	for _, tok := range tokens {
		if _, ok := commonWords[tok]; ok {
			return false
		}
		if _, ok := dateWords[tok]; ok {
			return false
		}
	}
	for _, tok := range tokens {
		if lowDiversity([]rune(tok)) {
			return true
		}
	}
	return false
}

func lowDiversity(run []rune) bool {
	if len(run) < gibberishMinRun {
		return false
	}
	distinct := make(map[rune]struct{}, len(run))
	for _, r := range run {
		distinct[r] = struct{}{}
	}
	if float64(len(distinct))/float64(len(run)) <= gibberishDistinctRatio {
		return true
	}
	return longestRepeat(run) >= gibberishRepeatRun || longestKeyboardRun(run) >= gibberishKeyboardRun
}

func longestRepeat(run []rune) int {
	best, cur := 1, 1
	for i := 1; i < len(run); i++ {
		if run[i] == run[i-1] {
			cur++
		} else {
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}

type keyPos struct{ row, col int }

var keyPositions = func() map[rune]keyPos {
	out := make(map[rune]keyPos)
	for row, keys := range keyboardRows {
		for col, r := range keys {
			out[r] = keyPos{row: row, col: col}
		}
	}
	return out
}()

// longestKeyboardRun is the longest stretch where each letter sits next to
// the previous one on the same keyboard row.
func longestKeyboardRun(run []rune) int {
	best, cur := 1, 1
	for i := 1; i < len(run); i++ {
		prev, okPrev := keyPositions[run[i-1]]
		next, okNext := keyPositions[run[i]]
		if okPrev && okNext && prev.row == next.row && (next.col-prev.col == 1 || prev.col-next.col == 1) {
			cur++
		} else {
			cur = 1
		}
		if cur > best {
			best = cur
		}
	}
	return best
}
