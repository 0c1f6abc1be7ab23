package pipeline

import (
	"strings"
	"testing"

	"github.com/rulescribe/rulescribe/internal/domain/decision"
)

func TestFormatAnswer(t *testing.T) {
	tests := []struct {
		name     string
		answer   decision.Answer
		contains []string
		excludes []string
	}{
		{
			name:     "confident answer is plain",
			answer:   decision.Answer{Text: "Roll two dice.", Confidence: 0.9},
			contains: []string{"Roll two dice."},
			excludes: []string{"Low confidence"},
		},
		{
			name:     "low confidence is flagged with percentage",
			answer:   decision.Answer{Text: "Maybe three dice.", Confidence: 0.3},
			contains: []string{"Maybe three dice.", "Low confidence", "30%"},
		},
		{
			name: "caveats listed",
			answer: decision.Answer{
				Text:       "Roll two dice.",
				Confidence: 0.8,
				Caveats:    []string{"House rules may differ."},
			},
			contains: []string{"Note:", "House rules may differ."},
		},
		{
			name: "suggestions listed",
			answer: decision.Answer{
				Text:                "Roll two dice.",
				Confidence:          0.8,
				FollowUpSuggestions: []string{"What about rerolls?"},
			},
			contains: []string{"You might also ask:", "What about rerolls?"},
		},
		{
			name:     "exactly at threshold is not flagged",
			answer:   decision.Answer{Text: "ok", Confidence: 0.5},
			excludes: []string{"Low confidence"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatAnswer(&tt.answer, 0.5)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("output must not contain %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestFormatClarificationWithOptions(t *testing.T) {
	c := decision.Clarification{
		Question: "Which edition?",
		Options:  []string{"First", "Second"},
	}
	got := formatClarification(&c)
	if !strings.Contains(got, "Which edition?") {
		t.Errorf("question missing from %q", got)
	}
	if !strings.Contains(got, "• First") || !strings.Contains(got, "• Second") {
		t.Errorf("options missing from %q", got)
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		name     string
		progress decision.Progress
		want     string
	}{
		{
			name:     "no subject yet",
			progress: decision.Progress{},
			want:     progressDefaultText,
		},
		{
			name:     "subject only",
			progress: decision.Progress{SubjectName: "Root"},
			want:     "🔍 Searching the Root rules...",
		},
		{
			name: "subject with terms",
			progress: decision.Progress{
				SubjectName: "Root",
				TermsUsed:   []string{"combat", "ambush"},
			},
			want: "🔍 Searching the Root rules for combat, ambush...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatProgress(&tt.progress); got != tt.want {
				t.Errorf("formatProgress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitText(t *testing.T) {
	got := rateLimitText(40)
	if !strings.Contains(got, "40s") {
		t.Errorf("retry seconds missing from %q", got)
	}
}

func TestCandidateLabel(t *testing.T) {
	c := decision.Candidate{DisplayName: "Rising Sun", DocumentRef: "rising-sun.pdf", Confidence: 0.8}
	if got := candidateLabel(c); got != "Rising Sun (80%)" {
		t.Errorf("candidateLabel() = %q", got)
	}
}
