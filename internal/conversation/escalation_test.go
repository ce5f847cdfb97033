package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscalationDetectorDetect(t *testing.T) {
	detector := NewEscalationDetector(nil)

	tests := []struct {
		name         string
		message      string
		wantDetected bool
		wantType     EscalationType
	}{
		{name: "complaint", message: "I'd like to make a complaint", wantDetected: true, wantType: EscalationComplaint},
		{name: "bad experience", message: "Worst experience ever at your clinic", wantDetected: true, wantType: EscalationComplaint},
		{name: "overcharged", message: "You overcharged me last week", wantDetected: true, wantType: EscalationComplaint},
		{name: "refund", message: "I want my refund", wantDetected: true, wantType: EscalationRefund},
		{name: "money back", message: "Give me my money back", wantDetected: true, wantType: EscalationRefund},
		{name: "chargeback", message: "I'm filing a chargeback", wantDetected: true, wantType: EscalationRefund},
		{name: "lawyer", message: "I'll have my attorney call", wantDetected: true, wantType: EscalationLegal},
		{name: "sue", message: "I am going to sue the clinic", wantDetected: true, wantType: EscalationLegal},
		{name: "court", message: "I will take you to court", wantDetected: true, wantType: EscalationLegal},
		{name: "human", message: "can I talk with a real person", wantDetected: true, wantType: EscalationHuman},
		{name: "booking", message: "Book me for Friday at 10", wantDetected: false},
		{name: "cancel appointment", message: "Please cancel my appointment", wantDetected: false},
		{name: "empty", message: "  ", wantDetected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.Detect(context.Background(), tt.message)
			assert.Equal(t, tt.wantDetected, got.Detected)
			assert.Equal(t, tt.wantType, got.Type)
			if tt.wantDetected {
				assert.NotEmpty(t, got.MatchedKeyword)
			}
		})
	}
}

func TestEscalationDetectorPrefersStrongestMatch(t *testing.T) {
	detector := NewEscalationDetector(nil)

	// Refund (0.9) and lawyer (0.95) both match.
	got := detector.Detect(context.Background(), "I want a refund or my lawyer gets involved")
	assert.Equal(t, EscalationLegal, got.Type)
	assert.Equal(t, 0.95, got.Confidence)
}
