package llm

import "strings"

const (
	maxKeyPoints = 3
	maxWarnings  = 2
	minKeyPoint  = 20
)

var (
	warningMarkers   = []string{"warning", "caution", "risk", "careful", "avoid", "concern"}
	reasoningMarkers = []string{"because", "since", "due to"}
)

// ExtractInsights splits model output into sentences and picks out
// cautionary sentences and sentences that give a reason. When nothing
// matches, the first sentence becomes the only key point.
func ExtractInsights(text string) (keyPoints, warnings []string) {
	keyPoints, warnings = []string{}, []string{}
	if strings.TrimSpace(text) == "" {
		return keyPoints, warnings
	}

	var first string
	for _, raw := range strings.Split(text, ". ") {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		if first == "" {
			first = sentence
		}

		lower := strings.ToLower(sentence)
		switch {
		case containsAnyOf(lower, warningMarkers):
			warnings = append(warnings, sentence)
		case len(sentence) > minKeyPoint && containsAnyOf(lower, reasoningMarkers):
			keyPoints = append(keyPoints, sentence)
		}
	}

	if len(keyPoints) == 0 && len(warnings) == 0 && first != "" {
		keyPoints = []string{first}
	}

	if len(keyPoints) > maxKeyPoints {
		keyPoints = keyPoints[:maxKeyPoints]
	}
	if len(warnings) > maxWarnings {
		warnings = warnings[:maxWarnings]
	}
	return keyPoints, warnings
}

func containsAnyOf(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
