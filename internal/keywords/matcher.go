package keywords

import "strings"

// Match is one detected keyword occurrence in a transcript.
type Match struct {
	Keyword      string
	TalkingPoint string
}

// MatchText scans text for each keyword by case-insensitive substring
// containment, preserving the order of the given set. There is no word
// boundary check: "cost" matches inside "costume". A keyword matches at
// most once regardless of how often it occurs in the text.
func MatchText(text string, set []Keyword) []Match {
	if text == "" || len(set) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var out []Match
	for _, kw := range set {
		word := strings.ToLower(strings.TrimSpace(kw.Word))
		if word == "" {
			continue
		}
		if strings.Contains(lower, word) {
			out = append(out, Match{Keyword: kw.Word, TalkingPoint: kw.TalkingPoint})
		}
	}
	return out
}
