package patterns

import (
	"regexp"
	"sort"
	"strings"

	"github.com/atlasworkforce/labor-intel/internal/observability"
)

// Matching strategies.
const (
	StrategyVerbObject = "verb_object"
	StrategyVerbOnly   = "verb_only"
	StrategyKeywordAny = "keyword_any"
)

// detectThreshold is the minimum category score for a detection to count.
const detectThreshold = 0.5

// negationWindow is how many characters before a term are scanned for
// negating language.
const negationWindow = 200

// Scoring constants for category detection.
const (
	phraseScore       = 2.0
	verbBaseScore     = 1.0
	keywordBaseScore  = 0.8
	perExtraMatch     = 0.3
	maxExtraMatches   = 3
	excludedPenalty   = 0.3
	phraseOnlyPenalty = 0.1
)

var negationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`don'?t\s+include`),
	regexp.MustCompile(`not\s+include`),
	regexp.MustCompile(`exclude`),
	regexp.MustCompile(`avoid`),
	regexp.MustCompile(`by\s+contrast`),
	regexp.MustCompile(`except\s+for`),
	regexp.MustCompile(`other\s+than`),
	regexp.MustCompile(`rather\s+than`),
	regexp.MustCompile(`instead\s+of`),
	regexp.MustCompile(`don'?t\s+(?:want|need|consider)`),
	regexp.MustCompile(`shouldn'?t`),
	regexp.MustCompile(`won'?t`),
	regexp.MustCompile(`not\s+(?:want|need|looking|interested)`),
}

// Detection is the outcome of scoring a query against all categories.
type Detection struct {
	Category string
	Score    float64
	Scores   map[string]float64
}

// Detected reports whether a category cleared the detection threshold.
func (d Detection) Detected() bool {
	return d.Category != ""
}

// MatchResult describes how one task description matched a category.
type MatchResult struct {
	Matched         bool
	Confidence      float64
	Category        string
	Strategy        string
	MatchedVerbs    []string
	MatchedKeywords []string
}

// Matcher scores queries and task descriptions against a category store.
type Matcher struct {
	store *Store
	log   *observability.Logger
}

// NewMatcher creates a Matcher over the given store.
func NewMatcher(store *Store, log *observability.Logger) *Matcher {
	if log == nil {
		log = observability.DefaultLogger()
	}
	return &Matcher{store: store, log: log}
}

// DetectCategory scores the original user query against every category and
// returns the best match above the detection threshold. Scoring rewards
// verbatim category phrases, action verbs (with simple inflections), and
// object keywords; excluded terms and negated mentions penalize a category.
//
// Only the original query text should be passed here. Queries that have
// been enriched with retrieved task descriptions contain phrases that
// produce false positives.
func (m *Matcher) DetectCategory(query string) Detection {
	queryLower := strings.ToLower(query)
	det := Detection{Scores: make(map[string]float64)}

	for _, cat := range m.store.List() {
		score := m.scoreCategory(queryLower, cat)
		det.Scores[cat.Name] = score
		if score >= detectThreshold && score > det.Score {
			det.Score = score
			det.Category = cat.Name
		}
	}

	if det.Detected() {
		m.log.Info().
			Str("category", det.Category).
			Float64("score", det.Score).
			Msg("detected task category")
	} else {
		m.log.Debug().Float64("best_score", bestScore(det.Scores)).Msg("no task category detected")
	}
	return det
}

func (m *Matcher) scoreCategory(queryLower string, cat *Category) float64 {
	var score float64

	// Verbatim phrase signal, flipped to a penalty when the mention sits
	// in a negating context ("other than customer service work").
	phrase := strings.ReplaceAll(cat.Name, "_", " ")
	display := strings.ToLower(cat.DisplayName)
	phrasePos, phraseLen := -1, 0
	if p := strings.Index(queryLower, phrase); p >= 0 {
		phrasePos, phraseLen = p, len(phrase)
	} else if p := strings.Index(queryLower, display); p >= 0 {
		phrasePos, phraseLen = p, len(display)
	}
	hasPhrase := phrasePos >= 0
	if hasPhrase {
		start := phrasePos - negationWindow
		if start < 0 {
			start = 0
		}
		if isNegated(queryLower[start : phrasePos+phraseLen]) {
			score -= phraseScore
		} else {
			score += phraseScore
		}
	}

	verbMatches := countVerbMatches(queryLower, cat.ActionVerbs.All())
	if verbMatches > 0 {
		score += verbBaseScore + perExtraMatch*float64(minInt(verbMatches-1, maxExtraMatches))
	}

	keywordMatches := 0
	for _, kw := range cat.ObjectKeywords.All() {
		if strings.Contains(queryLower, strings.ToLower(kw)) {
			keywordMatches++
		}
	}
	if keywordMatches > 0 {
		score += keywordBaseScore + perExtraMatch*float64(minInt(keywordMatches-1, maxExtraMatches))
	}

	// Excluded terms only count when at least one occurrence is not itself
	// negated ("don't include reviewing" leaves "review" harmless).
	excluded := append(append([]string{}, cat.ActionVerbs.Exclude...), cat.ObjectKeywords.Exclude...)
	for _, term := range excluded {
		if hasNonNegatedOccurrence(queryLower, strings.ToLower(term)) {
			score *= excludedPenalty
			break
		}
	}

	// A phrase hit with no verb or keyword support is unreliable.
	if hasPhrase && verbMatches == 0 && keywordMatches == 0 {
		score *= phraseOnlyPenalty
	}

	return score
}

// MatchTask matches one task description against a category. Excluded terms
// veto the task outright, and the confidence must clear the category's
// threshold for the task to count as matched.
func (m *Matcher) MatchTask(taskText, categoryName string) MatchResult {
	res := MatchResult{Category: categoryName}

	cat, ok := m.store.Get(categoryName)
	if !ok {
		return res
	}
	res.Strategy = cat.Strategy()

	text := strings.ToLower(taskText)

	excluded := append(append([]string{}, cat.ActionVerbs.Exclude...), cat.ObjectKeywords.Exclude...)
	for _, term := range excluded {
		if wordBoundaryMatch(text, strings.ToLower(term)) {
			return res
		}
	}

	for _, v := range cat.ActionVerbs.All() {
		if strings.Contains(text, strings.ToLower(v)) {
			res.MatchedVerbs = append(res.MatchedVerbs, v)
		}
	}
	for _, kw := range cat.ObjectKeywords.All() {
		if strings.Contains(text, strings.ToLower(kw)) {
			res.MatchedKeywords = append(res.MatchedKeywords, kw)
		}
	}

	switch res.Strategy {
	case StrategyVerbObject:
		if len(res.MatchedVerbs) > 0 && len(res.MatchedKeywords) > 0 {
			res.Matched = true
			vc := minFloat(float64(len(res.MatchedVerbs))/2, 1.0)
			kc := minFloat(float64(len(res.MatchedKeywords))/2, 1.0)
			res.Confidence = (vc + kc) / 2
		}
	case StrategyVerbOnly:
		if len(res.MatchedVerbs) > 0 {
			res.Matched = true
			res.Confidence = minFloat(float64(len(res.MatchedVerbs))/2, 1.0)
		}
	case StrategyKeywordAny:
		if len(res.MatchedKeywords) > 0 {
			res.Matched = true
			res.Confidence = minFloat(float64(len(res.MatchedKeywords))/2, 1.0)
		}
	}

	if res.Confidence < cat.MinConfidence() {
		res.Matched = false
	}

	return res
}

// FilterIndexes returns the indexes of tasks matching the category.
func (m *Matcher) FilterIndexes(tasks []string, categoryName string) []int {
	var out []int
	for i, task := range tasks {
		if m.MatchTask(task, categoryName).Matched {
			out = append(out, i)
		}
	}
	m.log.Info().
		Str("category", categoryName).
		Int("input_rows", len(tasks)).
		Int("matched_rows", len(out)).
		Msg("filtered tasks by category")
	return out
}

// countVerbMatches counts verbs whose base form or a simple inflection
// appears in the query. Verbs ending in "e" drop it before -ing and -ed.
func countVerbMatches(queryLower string, verbs []string) int {
	count := 0
	for _, verb := range verbs {
		v := strings.ToLower(verb)
		stem := v
		if strings.HasSuffix(v, "e") {
			stem = v[:len(v)-1]
		}
		forms := []string{v, v + "s", stem + "ing", stem + "ed"}
		for _, form := range forms {
			if strings.Contains(queryLower, form) {
				count++
				break
			}
		}
	}
	return count
}

func isNegated(context string) bool {
	for _, re := range negationPatterns {
		if re.MatchString(context) {
			return true
		}
	}
	return false
}

// hasNonNegatedOccurrence reports whether term appears as a whole word
// somewhere in text without negating language in the preceding window.
func hasNonNegatedOccurrence(text, term string) bool {
	re, err := wordPattern(term)
	if err != nil {
		return false
	}
	for _, loc := range re.FindAllStringIndex(text, -1) {
		start := loc[0] - negationWindow
		if start < 0 {
			start = 0
		}
		if !isNegated(text[start:loc[0]]) {
			return true
		}
	}
	return false
}

func wordBoundaryMatch(text, term string) bool {
	re, err := wordPattern(term)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func wordPattern(term string) (*regexp.Regexp, error) {
	return regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
}

func bestScore(scores map[string]float64) float64 {
	var best float64
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}

// TopScores returns category names ordered by descending score.
func (d Detection) TopScores() []string {
	names := make([]string, 0, len(d.Scores))
	for name := range d.Scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if d.Scores[names[i]] != d.Scores[names[j]] {
			return d.Scores[names[i]] > d.Scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
