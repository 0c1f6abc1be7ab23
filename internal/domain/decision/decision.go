// Package decision defines the structured per-turn output contract of the
// reasoning engine. A Decision is a tagged union: the Action discriminator
// selects exactly one populated payload.
package decision

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rulescribe/rulescribe/internal/domain"
)

// Action discriminates the payload shape of a Decision.
type Action string

const (
	// ActionClarify asks the user a free-text clarification question.
	ActionClarify Action = "clarification_needed"

	// ActionSelect asks the user to pick one of several candidate documents.
	ActionSelect Action = "selection_required"

	// ActionProgress reports an in-flight search, optionally asking for more input.
	ActionProgress Action = "progress_update"

	// ActionAnswer delivers the final answer for the turn.
	ActionAnswer Action = "answer"
)

// MaxOptions bounds clarification options and selection candidates.
// The transport renders them as inline buttons; more than five do not fit.
const MaxOptions = 5

// Clarification asks the user to disambiguate before searching.
type Clarification struct {
	Question  string   `json:"question"`
	Options   []string `json:"options,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// Candidate is one document the user may anchor the conversation to.
type Candidate struct {
	DisplayName string  `json:"display_name"`
	DocumentRef string  `json:"document_ref"`
	Confidence  float64 `json:"confidence"`
}

// Selection asks the user to pick one candidate document.
type Selection struct {
	Candidates []Candidate `json:"candidates"`
	Question   string      `json:"question"`
}

// Progress describes an in-flight search within the current subject.
type Progress struct {
	SubjectName      string   `json:"subject_name"`
	SubjectRef       string   `json:"subject_ref"`
	TermsUsed        []string `json:"terms_used,omitempty"`
	RelevantFound    bool     `json:"relevant_found"`
	NeedsMoreInput   bool     `json:"needs_more_input"`
	FollowUpQuestion string   `json:"follow_up_question,omitempty"`
}

// Answer is the terminal payload for a resolved question.
type Answer struct {
	Text                string   `json:"text"`
	Confidence          float64  `json:"confidence"`
	Caveats             []string `json:"caveats,omitempty"`
	FollowUpSuggestions []string `json:"follow_up_suggestions,omitempty"`
}

// Decision is one turn's structured outcome. Exactly one payload field must
// be populated, and it must match Action.
type Decision struct {
	Action        Action         `json:"action"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Selection     *Selection     `json:"selection,omitempty"`
	Progress      *Progress      `json:"progress,omitempty"`
	Answer        *Answer        `json:"answer,omitempty"`
}

// Parse unmarshals and validates a Decision from engine output.
// Any structural violation is reported as domain.ErrMalformedDecision.
func Parse(data []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDecision, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks the tagged-union invariants. The engine is an external,
// not fully trusted collaborator, so unknown tags and tag/payload mismatches
// fail loudly instead of being silently ignored.
func (d *Decision) Validate() error {
	populated := 0
	if d.Clarification != nil {
		populated++
	}
	if d.Selection != nil {
		populated++
	}
	if d.Progress != nil {
		populated++
	}
	if d.Answer != nil {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("%w: %d payloads populated, want exactly 1", domain.ErrMalformedDecision, populated)
	}

	switch d.Action {
	case ActionClarify:
		if d.Clarification == nil {
			return mismatch(d.Action)
		}
		if len(d.Clarification.Options) > MaxOptions {
			return fmt.Errorf("%w: %d clarification options, max %d",
				domain.ErrMalformedDecision, len(d.Clarification.Options), MaxOptions)
		}
	case ActionSelect:
		if d.Selection == nil {
			return mismatch(d.Action)
		}
		if len(d.Selection.Candidates) > MaxOptions {
			return fmt.Errorf("%w: %d candidates, max %d",
				domain.ErrMalformedDecision, len(d.Selection.Candidates), MaxOptions)
		}
		for i := range d.Selection.Candidates {
			if c := d.Selection.Candidates[i].Confidence; c < 0 || c > 1 {
				return fmt.Errorf("%w: candidate %q confidence %v outside [0,1]",
					domain.ErrMalformedDecision, d.Selection.Candidates[i].DisplayName, c)
			}
		}
	case ActionProgress:
		if d.Progress == nil {
			return mismatch(d.Action)
		}
	case ActionAnswer:
		if d.Answer == nil {
			return mismatch(d.Action)
		}
		if c := d.Answer.Confidence; c < 0 || c > 1 {
			return fmt.Errorf("%w: answer confidence %v outside [0,1]", domain.ErrMalformedDecision, c)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrMalformedDecision, d.Action)
	}

	return nil
}

func mismatch(a Action) error {
	return fmt.Errorf("%w: action %q without matching payload", domain.ErrMalformedDecision, a)
}

// SortedCandidates returns the selection candidates in descending confidence
// order. The engine is not required to sort them; presentation order is a
// router obligation. The receiver's slice is not modified.
func (s *Selection) SortedCandidates() []Candidate {
	out := make([]Candidate, len(s.Candidates))
	copy(out, s.Candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
