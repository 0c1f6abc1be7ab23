package decision

import (
	"errors"
	"testing"

	"github.com/rulescribe/rulescribe/internal/domain"
)

func TestParseValidAnswer(t *testing.T) {
	data := []byte(`{
		"action": "answer",
		"answer": {"text": "Draw two cards.", "confidence": 0.9, "caveats": ["house rules vary"]}
	}`)

	d, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionAnswer {
		t.Errorf("expected action answer, got %s", d.Action)
	}
	if d.Answer.Text != "Draw two cards." {
		t.Errorf("unexpected answer text: %q", d.Answer.Text)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
	}{
		{
			name: "no payload",
			d:    Decision{Action: ActionAnswer},
		},
		{
			name: "two payloads",
			d: Decision{
				Action:        ActionAnswer,
				Answer:        &Answer{Text: "x", Confidence: 0.5},
				Clarification: &Clarification{Question: "y"},
			},
		},
		{
			name: "tag payload mismatch",
			d: Decision{
				Action: ActionClarify,
				Answer: &Answer{Text: "x", Confidence: 0.5},
			},
		},
		{
			name: "unknown tag",
			d: Decision{
				Action: Action("teleport"),
				Answer: &Answer{Text: "x", Confidence: 0.5},
			},
		},
		{
			name: "answer confidence above one",
			d: Decision{
				Action: ActionAnswer,
				Answer: &Answer{Text: "x", Confidence: 1.2},
			},
		},
		{
			name: "candidate confidence below zero",
			d: Decision{
				Action: ActionSelect,
				Selection: &Selection{
					Question:   "which?",
					Candidates: []Candidate{{DisplayName: "A", DocumentRef: "a.pdf", Confidence: -0.1}},
				},
			},
		},
		{
			name: "too many options",
			d: Decision{
				Action: ActionClarify,
				Clarification: &Clarification{
					Question: "which?",
					Options:  []string{"a", "b", "c", "d", "e", "f"},
				},
			},
		},
		{
			name: "too many candidates",
			d: Decision{
				Action: ActionSelect,
				Selection: &Selection{
					Question: "which?",
					Candidates: []Candidate{
						{Confidence: 0.1}, {Confidence: 0.2}, {Confidence: 0.3},
						{Confidence: 0.4}, {Confidence: 0.5}, {Confidence: 0.6},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, domain.ErrMalformedDecision) {
				t.Errorf("expected ErrMalformedDecision, got %v", err)
			}
		})
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"action": "answer", "answer":`))
	if !errors.Is(err, domain.ErrMalformedDecision) {
		t.Errorf("expected ErrMalformedDecision, got %v", err)
	}
}

func TestSortedCandidatesDescending(t *testing.T) {
	s := &Selection{
		Candidates: []Candidate{
			{DisplayName: "Low", Confidence: 0.2},
			{DisplayName: "High", Confidence: 0.8},
			{DisplayName: "Mid", Confidence: 0.6},
		},
	}

	got := s.SortedCandidates()

	want := []string{"High", "Mid", "Low"}
	for i, name := range want {
		if got[i].DisplayName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].DisplayName)
		}
	}

	// Original order untouched
	if s.Candidates[0].DisplayName != "Low" {
		t.Error("SortedCandidates mutated the receiver")
	}
}
