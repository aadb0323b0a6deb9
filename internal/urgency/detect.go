package urgency

import (
	"sort"
	"strings"
	"unicode"
)

// Detection is the outcome of a keyword scan over free text.
type Detection struct {
	Detected    bool
	Keywords    []string
	Trapped     bool
	Medical     bool
	Desperation bool
}

// DetectKeywords scans text for distress phrases in the given language.
// English is always checked as well; unknown languages fall back to it.
func DetectKeywords(text, language string) Detection {
	var out Detection
	if strings.TrimSpace(text) == "" {
		return out
	}

	normalized := " " + normalize(text) + " "
	seen := map[string]struct{}{}
	match := func(phrases []string) bool {
		hit := false
		for _, phrase := range phrases {
			if !strings.Contains(normalized, " "+phrase+" ") {
				continue
			}
			hit = true
			if _, ok := seen[phrase]; !ok {
				seen[phrase] = struct{}{}
				out.Keywords = append(out.Keywords, phrase)
			}
		}
		return hit
	}

	for _, lang := range languagesFor(language) {
		set := keywordSets[lang]
		match(set.distress)
		if match(set.trapped) {
			out.Trapped = true
		}
		if match(set.medical) {
			out.Medical = true
		}
	}
	sort.Strings(out.Keywords)

	out.Desperation = isDesperate(text)
	out.Detected = len(out.Keywords) > 0 || out.Desperation
	return out
}

func languagesFor(language string) []string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := keywordSets[lang]; !ok || lang == fallbackLanguage {
		return []string{fallbackLanguage}
	}
	return []string{lang, fallbackLanguage}
}

// normalize lower-cases text and turns punctuation into single spaces.
// Apostrophes survive so contractions still match.
func normalize(text string) string {
	lowered := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '\'' {
			return r
		}
		return ' '
	}, lowered)
	return strings.Join(strings.Fields(cleaned), " ")
}

func isDesperate(text string) bool {
	if strings.Count(text, "!") >= 3 {
		return true
	}
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters > 0 && float64(upper)/float64(letters) > 0.5
}
