package pipeline

import (
	"fmt"
	"strings"

	"github.com/rulescribe/rulescribe/internal/domain/decision"
)

// User-facing fallback strings. Resource-limit denials say how long to wait;
// engine and transport failures collapse into one generic retry message.
const (
	genericFailureText    = "Something went wrong while looking that up. Please try again."
	engineUnavailableText = "The assistant is temporarily unavailable. Please try again in a moment."
	selectionFallbackText = "Which document do you mean? Please name it."
	progressDefaultText   = "Looking through the rules..."
)

func rateLimitText(seconds int) string {
	return fmt.Sprintf("Too many questions at once. Please wait %ds and try again.", seconds)
}

// formatAnswer renders the terminal answer: the text itself, a visible
// low-confidence flag when confidence falls below the threshold, then
// caveats and follow-up suggestions.
func formatAnswer(a *decision.Answer, lowConfidenceThreshold float64) string {
	var sb strings.Builder
	sb.WriteString(a.Text)

	if a.Confidence < lowConfidenceThreshold {
		fmt.Fprintf(&sb, "\n\n⚠️ Low confidence (%.0f%%) — please verify against the rulebook.", a.Confidence*100)
	}

	if len(a.Caveats) > 0 {
		sb.WriteString("\n\nNote:")
		for _, c := range a.Caveats {
			sb.WriteString("\n• ")
			sb.WriteString(c)
		}
	}

	if len(a.FollowUpSuggestions) > 0 {
		sb.WriteString("\n\nYou might also ask:")
		for _, s := range a.FollowUpSuggestions {
			sb.WriteString("\n• ")
			sb.WriteString(s)
		}
	}

	return sb.String()
}

// formatClarification renders a clarification question with its suggested
// options as plain text bullets.
func formatClarification(c *decision.Clarification) string {
	if len(c.Options) == 0 {
		return "❓ " + c.Question
	}
	var sb strings.Builder
	sb.WriteString("❓ ")
	sb.WriteString(c.Question)
	for _, opt := range c.Options {
		sb.WriteString("\n• ")
		sb.WriteString(opt)
	}
	return sb.String()
}

// formatProgress renders the in-flight status line shown in the progress message.
func formatProgress(p *decision.Progress) string {
	name := p.SubjectName
	if name == "" {
		return progressDefaultText
	}
	if len(p.TermsUsed) == 0 {
		return fmt.Sprintf("🔍 Searching the %s rules...", name)
	}
	return fmt.Sprintf("🔍 Searching the %s rules for %s...", name, strings.Join(p.TermsUsed, ", "))
}

// candidateOptions converts sorted candidates into transport options,
// confidence shown on the label.
func candidateLabel(c decision.Candidate) string {
	return fmt.Sprintf("%s (%.0f%%)", c.DisplayName, c.Confidence*100)
}
