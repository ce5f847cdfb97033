package conversation

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

var escalationTracer = otel.Tracer("widget.internal.conversation.escalation")

// EscalationType classifies why a message needs a human.
type EscalationType string

const (
	EscalationNone      EscalationType = ""
	EscalationComplaint EscalationType = "complaint"
	EscalationRefund    EscalationType = "refund"
	EscalationLegal     EscalationType = "legal"
	EscalationHuman     EscalationType = "human"
)

// EscalationResult is the strongest match found in a message.
type EscalationResult struct {
	Detected       bool
	Type           EscalationType
	Confidence     float64
	MatchedKeyword string
}

type escalationPattern struct {
	regex   *regexp.Regexp
	weight  float64
	keyword string
}

// EscalationDetector flags messages that must be handed to clinic staff.
type EscalationDetector struct {
	logger   *logging.Logger
	patterns map[EscalationType][]*escalationPattern
}

// NewEscalationDetector compiles the keyword patterns.
func NewEscalationDetector(logger *logging.Logger) *EscalationDetector {
	if logger == nil {
		logger = logging.Default()
	}

	d := &EscalationDetector{
		logger:   logger,
		patterns: make(map[EscalationType][]*escalationPattern),
	}

	d.patterns[EscalationComplaint] = []*escalationPattern{
		{regex: regexp.MustCompile(`(?i)\b(complain|complaint|complaining)\b`), weight: 0.9, keyword: "complaint"},
		{regex: regexp.MustCompile(`(?i)\b(terrible|horrible|awful|worst)\s+(service|experience|clinic|visit|staff)\b`), weight: 0.85, keyword: "bad experience"},
		{regex: regexp.MustCompile(`(?i)\b(unacceptable|disgusted|outraged)\b`), weight: 0.8, keyword: "unacceptable"},
		{regex: regexp.MustCompile(`(?i)\b(overcharged?|over\s*charged?|charged?\s+(me\s+)?twice)\b`), weight: 0.85, keyword: "billing dispute"},
		{regex: regexp.MustCompile(`(?i)\b(botched|malpractice)\b`), weight: 0.9, keyword: "malpractice"},
	}

	d.patterns[EscalationRefund] = []*escalationPattern{
		{regex: regexp.MustCompile(`(?i)\b(want|need|get|demand)\s+(a\s+|my\s+)?refund\b`), weight: 0.9, keyword: "want refund"},
		{regex: regexp.MustCompile(`(?i)\brefund\s+(me|my|the)\b`), weight: 0.85, keyword: "refund request"},
		{regex: regexp.MustCompile(`(?i)\b(money|deposit)\s+back\b`), weight: 0.85, keyword: "money back"},
		{regex: regexp.MustCompile(`(?i)\b(chargeback|dispute\s+(the\s+)?charge)\b`), weight: 0.9, keyword: "chargeback"},
	}

	d.patterns[EscalationLegal] = []*escalationPattern{
		{regex: regexp.MustCompile(`(?i)\b(lawyer|attorney|lawsuit|litigation)\b`), weight: 0.95, keyword: "lawyer"},
		{regex: regexp.MustCompile(`(?i)\b(sue|suing)\s+(you|the\s+clinic|your)\b`), weight: 0.95, keyword: "sue"},
		{regex: regexp.MustCompile(`(?i)\b(legal\s+action|take\s+(you\s+)?to\s+court|small\s+claims)\b`), weight: 0.95, keyword: "legal action"},
		{regex: regexp.MustCompile(`(?i)\b(report|reporting)\s+(you|this)\s+to\b`), weight: 0.8, keyword: "report"},
	}

	d.patterns[EscalationHuman] = []*escalationPattern{
		{regex: regexp.MustCompile(`(?i)\b(speak|talk)\s+(to|with)\s+(a\s+)?(human|person|manager|someone|real\s+person)\b`), weight: 0.9, keyword: "speak to a human"},
		{regex: regexp.MustCompile(`(?i)\b(your\s+)?(manager|supervisor)\b.*\b(now|please|immediately)\b`), weight: 0.75, keyword: "manager"},
	}

	return d
}

// Detect returns the highest weighted pattern match in message.
func (d *EscalationDetector) Detect(ctx context.Context, message string) EscalationResult {
	_, span := escalationTracer.Start(ctx, "escalation.detect")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return EscalationResult{}
	}

	var best EscalationResult
	for escalationType, patterns := range d.patterns {
		for _, p := range patterns {
			if !p.regex.MatchString(message) {
				continue
			}
			// Ties resolve by type name so the result is stable across map order.
			if !best.Detected || p.weight > best.Confidence ||
				(p.weight == best.Confidence && escalationType < best.Type) {
				best = EscalationResult{
					Detected:       true,
					Type:           escalationType,
					Confidence:     p.weight,
					MatchedKeyword: p.keyword,
				}
			}
		}
	}
	if !best.Detected {
		return best
	}

	span.SetAttributes(
		attribute.Bool("escalation.detected", true),
		attribute.String("escalation.type", string(best.Type)),
		attribute.String("escalation.keyword", best.MatchedKeyword),
	)
	d.logger.Info("escalation detected",
		"type", best.Type,
		"confidence", best.Confidence,
		"keyword", best.MatchedKeyword,
	)
	return best
}
