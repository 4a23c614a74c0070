// Package segment splits raw document text into chunks that respect the
// scorer's token budget while keeping sentence boundaries intact.
package segment

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
)

// abbreviations suppress sentence breaks after a trailing period. A wrong
// entry only degrades chunk boundaries, never the token-budget invariant.
var abbreviations = map[string]struct{}{
	"Mr.":   {},
	"Mrs.":  {},
	"Ms.":   {},
	"Dr.":   {},
	"Prof.": {},
	"Sen.":  {},
	"Gov.":  {},
	"St.":   {},
	"No.":   {},
	"Fig.":  {},
	"vs.":   {},
	"U.S.":  {},
	"U.K.":  {},
	"E.U.":  {},
	"e.g.":  {},
	"i.e.":  {},
	"etc.":  {},
}

// Segmenter produces ordered, budget-respecting chunks. Identical input and
// budget always yield identical chunks.
type Segmenter struct {
	tokenizer domain.Tokenizer
	maxTokens int
}

func New(tokenizer domain.Tokenizer, maxTokens int) *Segmenter {
	return &Segmenter{tokenizer: tokenizer, maxTokens: maxTokens}
}

// Segment splits text into chunks of at most maxTokens tokens each. The
// concatenation of the chunk texts reproduces the input modulo whitespace.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]domain.Chunk, error) {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil, domain.ErrEmptyDocument
	}

	total, err := s.tokenizer.CountTokens(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	if total <= s.maxTokens {
		return []domain.Chunk{{Index: 0, Text: normalized, TokenCount: total}}, nil
	}

	sentences := SplitSentences(normalized)
	if len(sentences) == 0 {
		return nil, domain.ErrNoChunks
	}

	var texts []string
	var current []string
	for _, sentence := range sentences {
		candidate := strings.Join(append(current, sentence), " ")
		count, err := s.tokenizer.CountTokens(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if count <= s.maxTokens {
			current = append(current, sentence)
			continue
		}

		if len(current) > 0 {
			texts = append(texts, strings.Join(current, " "))
			current = nil
		}

		count, err = s.tokenizer.CountTokens(ctx, sentence)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if count <= s.maxTokens {
			current = []string{sentence}
			continue
		}

		// Single sentence over budget: hard split at word boundaries.
		parts, err := s.hardSplit(ctx, sentence)
		if err != nil {
			return nil, err
		}
		texts = append(texts, parts...)
	}
	if len(current) > 0 {
		texts = append(texts, strings.Join(current, " "))
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, t := range texts {
		count, err := s.tokenizer.CountTokens(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		chunks = append(chunks, domain.Chunk{Index: i, Text: t, TokenCount: count})
	}
	return chunks, nil
}

// hardSplit packs words greedily up to the budget. A single word that alone
// exceeds the budget is split at its rune midpoint until it fits, trading
// the word-boundary guarantee for the budget invariant.
func (s *Segmenter) hardSplit(ctx context.Context, sentence string) ([]string, error) {
	words := strings.Fields(sentence)

	var parts []string
	var current []string
	for i := 0; i < len(words); i++ {
		word := words[i]
		candidate := strings.Join(append(current, word), " ")
		count, err := s.tokenizer.CountTokens(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if count <= s.maxTokens {
			current = append(current, word)
			continue
		}

		if len(current) > 0 {
			parts = append(parts, strings.Join(current, " "))
			current = nil
			i--
			continue
		}

		count, err = s.tokenizer.CountTokens(ctx, word)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if count > s.maxTokens && utf8.RuneCountInString(word) > 1 {
			runes := []rune(word)
			mid := len(runes) / 2
			words = append(words[:i], append([]string{string(runes[:mid]), string(runes[mid:])}, words[i+1:]...)...)
			i--
			continue
		}
		parts = append(parts, word)
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, " "))
	}
	return parts, nil
}

// SplitSentences splits whitespace-normalized text into sentence units. A
// boundary is a run of sentence terminators followed by whitespace and an
// upper-case letter, digit, or opening quote, unless the terminating word is
// a known abbreviation. No characters are dropped or duplicated.
func SplitSentences(text string) []string {
	runes := []rune(text)

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		end := i
		for end+1 < len(runes) && isTerminator(runes[end+1]) {
			end++
		}
		for end+1 < len(runes) && isClosingQuote(runes[end+1]) {
			end++
		}
		if end+1 >= len(runes) {
			break
		}
		if !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}

		next := end + 1
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next >= len(runes) || !startsSentence(runes[next]) {
			i = end
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes, start, i) {
			i = end
			continue
		}

		sentences = append(sentences, strings.TrimSpace(string(runes[start:end+1])))
		start = next
		i = next - 1
	}

	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	return r == '"' || r == '\'' || r == '”' || r == '’'
}

func startsSentence(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '“'
}

// isAbbreviation reports whether the word ending at pos (inclusive of its
// period) is on the exception list or is a bare initial like "J.".
func isAbbreviation(runes []rune, start, pos int) bool {
	wordStart := pos
	for wordStart > start && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}
	word := string(runes[wordStart : pos+1])
	if _, ok := abbreviations[word]; ok {
		return true
	}
	if utf8.RuneCountInString(word) == 2 && unicode.IsUpper([]rune(word)[0]) {
		return true
	}
	return false
}
