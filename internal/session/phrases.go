package session

import "strings"

// Phrase sets the controller matches against transcribed utterances. All
// matching is case-insensitive substring containment; any hit in a set
// triggers the corresponding branch.
var (
	terminationPhrases = []string{
		"end exam",
		"finish exam",
		"stop exam",
		"exit exam",
		"quit exam",
		"terminate exam",
	}

	affirmativePhrases = []string{
		"yes",
		"yeah",
		"sure",
		"okay",
		"please",
		"give me another chance",
	}

	dontKnowPhrases = []string{
		"i don't know",
		"don't know",
		"no idea",
		"not sure",
		"i'm not sure",
		"i am not sure",
		"i have no idea",
	}
)

func containsAny(utterance string, phrases []string) bool {
	lower := strings.ToLower(utterance)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isTermination reports whether the utterance asks to end the exam.
func isTermination(utterance string) bool {
	return containsAny(utterance, terminationPhrases)
}

// isAffirmative reports whether the utterance accepts the chance offer.
func isAffirmative(utterance string) bool {
	return containsAny(utterance, affirmativePhrases)
}

// isDontKnow reports whether the utterance signals the student cannot
// answer the current question.
func isDontKnow(utterance string) bool {
	return containsAny(utterance, dontKnowPhrases)
}
