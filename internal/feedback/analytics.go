package feedback

import (
	"math"
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
)

// Tokens below this overlap do not belong to the same issue cluster. The
// Ochiai coefficient |A∩B| / sqrt(|A|·|B|) is symmetric and length-tolerant,
// so a short comment can still join a cluster seeded by a longer one.
const issueOverlapThreshold = 0.5

var issueStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "i": {},
	"it": {}, "this": {}, "that": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "and": {}, "or": {}, "not": {}, "my": {}, "you": {}, "your": {},
	"what": {}, "how": {}, "where": {}, "when": {}, "do": {}, "does": {},
}

type issueCluster struct {
	pattern string
	tokens  map[string]struct{}
	count   int
}

// clusterIssues groups bad-feedback texts by token overlap. Entries are
// processed in log order and clusters compared in creation order, so the
// grouping is deterministic for a given log. The cluster's pattern is the
// text that seeded it.
func clusterIssues(entries []models.FeedbackEntry, topN int) []models.IssuePattern {
	var clusters []*issueCluster

	for _, entry := range entries {
		text := strings.TrimSpace(entry.UserComment)
		if text == "" {
			text = strings.TrimSpace(entry.Question)
		}
		if text == "" {
			continue
		}

		tokens := issueTokens(text)
		if len(tokens) == 0 {
			continue
		}

		matched := false
		for _, cluster := range clusters {
			if ochiai(tokens, cluster.tokens) >= issueOverlapThreshold {
				cluster.count++
				matched = true
				break
			}
		}
		if !matched {
			clusters = append(clusters, &issueCluster{
				pattern: truncatePattern(text),
				tokens:  tokens,
				count:   1,
			})
		}
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].count > clusters[b].count
	})

	if topN < len(clusters) {
		clusters = clusters[:topN]
	}

	issues := make([]models.IssuePattern, len(clusters))
	for i, cluster := range clusters {
		issues[i] = models.IssuePattern{Pattern: cluster.pattern, Count: cluster.count}
	}
	return issues
}

func issueTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// Tokenizer failure degrades to whitespace splitting.
		for _, word := range strings.Fields(strings.ToLower(text)) {
			addToken(tokens, word)
		}
		return tokens
	}

	for _, token := range doc.Tokens() {
		addToken(tokens, strings.ToLower(token.Text))
	}
	return tokens
}

func addToken(tokens map[string]struct{}, word string) {
	word = strings.Trim(word, ".,!?\"'()[]{}:;")
	if len(word) < 2 {
		return
	}
	if _, skip := issueStopwords[word]; skip {
		return
	}
	tokens[word] = struct{}{}
}

func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	shared := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for token := range small {
		if _, ok := large[token]; ok {
			shared++
		}
	}

	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}

func truncatePattern(text string) string {
	const maxLen = 80
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}
