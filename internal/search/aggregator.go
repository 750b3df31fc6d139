package search

import (
	"net/url"
	"sort"
	"strings"

	"xhs-scout/internal/normalize"
)

// Веса ранжирования.
const (
	coreWeight      = 10
	extendedWeight  = 5
	goodTitleWeight = 3
	longTitleWeight = 1

	goodTitleMin = 10
	goodTitleMax = 50
)

// Card - карточка заметки из выдачи одного раунда.
type Card struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Author string `json:"author"`
	Round  int    `json:"round"`
	Query  string `json:"query"`
}

type RankedResult struct {
	Card
	Score float64 `json:"score"`
}

// Key - ключ уникальности карточки: url без параметров запроса.
func Key(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Aggregate объединяет раунды: первая карточка с данным url побеждает,
// затем стабильная сортировка по убыванию Score и обрезка до limit.
func Aggregate(rounds [][]Card, intent Intent, limit int) []RankedResult {
	seen := map[string]bool{}
	var out []RankedResult
	for _, round := range rounds {
		for _, card := range round {
			key := Key(card.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, RankedResult{Card: card, Score: Score(card.Title, intent)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Score - релевантность заголовка плану поиска.
func Score(title string, intent Intent) float64 {
	lower := strings.ToLower(title)
	score := 0.0

	for _, kw := range intent.CoreKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += coreWeight
		}
	}
	// Ключевое слово домена, совпавшее с основным, даёт оба веса.
	for _, kw := range intent.ExtendedKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += extendedWeight
		}
	}

	n := normalize.RuneLen(title)
	switch {
	case n >= goodTitleMin && n <= goodTitleMax:
		score += goodTitleWeight
	case n > goodTitleMax:
		score += longTitleWeight
	}
	return score
}
