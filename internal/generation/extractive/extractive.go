package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Generator answers by extraction: it splits the retrieved context into
// sentences, scores each against the question's tokens (stopwords
// filtered) and returns the best ones in original order. It needs no
// model, which makes it the default for the offline CLI and tests.
type Generator struct {
	maxSentences    int
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewGenerator creates an extractive answerer returning at most
// maxSentences sentences.
func NewGenerator(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{
		maxSentences:    maxSentences,
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       defaultStopwords(),
	}
}

// Generate extracts the context sentences most relevant to the question.
func (g *Generator) Generate(_ context.Context, question string, contextChunks []string) (string, error) {
	text := strings.Join(contextChunks, " ")
	sentences := g.sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return "I could not find anything relevant in the uploaded document.", nil
		}
		sentences = []string{trimmed}
	}

	qTokens := make(map[string]struct{})
	for _, tok := range g.tokens(question) {
		if _, stop := g.stopwords[tok]; stop {
			continue
		}
		qTokens[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		score := 0.0
		toks := g.tokens(sent)
		seen := make(map[string]struct{}, len(toks))
		for _, tok := range toks {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := qTokens[tok]; ok {
				score++
			}
		}
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	limit := g.maxSentences
	if limit > len(scores) {
		limit = len(scores)
	}
	selected := make([]int, limit)
	for i := 0; i < limit; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	var out []string
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

func (g *Generator) tokens(text string) []string {
	return g.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "what", "which", "who", "how", "when", "where", "why", "do", "does", "did", "not", "no", "yes", "you", "your", "me", "my", "we", "our", "they", "their", "he", "she", "his", "her",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
