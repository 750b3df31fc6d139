// Package search планирует многораундовый поиск, выполняет раунды в браузере
// и ранжирует объединённые результаты.
package search

import (
	"strings"

	"xhs-scout/internal/analysis"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"

	maxCore     = 5
	maxExtended = 8
	maxQueries  = 5
	maxExtQuery = 3
	coreInQuery = 3
)

// Intent - неизменяемый план поиска по задаче пользователя.
type Intent struct {
	Task             string   `json:"task"`
	Domain           string   `json:"domain"`
	CoreKeywords     []string `json:"core_keywords"`
	ExtendedKeywords []string `json:"extended_keywords"`
	Queries          []string `json:"queries"`
	Priority         string   `json:"priority"`
}

type Planner struct {
	dict *analysis.Dictionary
}

func NewPlanner(dict *analysis.Dictionary) *Planner {
	if dict == nil {
		dict = analysis.DefaultDictionary()
	}
	return &Planner{dict: dict}
}

// Plan строит Intent без обращения к браузеру.
func (p *Planner) Plan(task string) Intent {
	task = strings.TrimSpace(task)

	domain, matched, ok := p.dict.MatchDomain(task)
	if !ok {
		domain = analysis.GeneralDomain
	}

	core := analysis.NewOrderedSet()
	if ok {
		core.Add(matched)
	}
	for _, tok := range analysis.HanTokens(task) {
		core.Add(tok)
	}
	coreKeywords := core.Head(maxCore)
	if len(coreKeywords) == 0 && task != "" {
		coreKeywords = []string{task}
	}

	var extended []string
	if ok {
		ext := analysis.NewOrderedSet()
		for _, kw := range p.dict.Keywords(domain) {
			ext.Add(kw)
		}
		extended = ext.Head(maxExtended)
	}

	priority := PriorityMedium
	if len(coreKeywords) > 2 {
		priority = PriorityHigh
	}

	return Intent{
		Task:             task,
		Domain:           domain,
		CoreKeywords:     coreKeywords,
		ExtendedKeywords: extended,
		Queries:          buildQueries(domain, coreKeywords, extended),
		Priority:         priority,
	}
}

func buildQueries(domain string, core, extended []string) []string {
	if len(core) == 0 {
		return nil
	}
	queries := analysis.NewOrderedSet()

	head := core
	if len(head) > coreInQuery {
		head = head[:coreInQuery]
	}
	queries.Add(strings.Join(head, " "))

	if domain != analysis.GeneralDomain {
		queries.Add(domain + " " + core[0])
	}

	added := 0
	for _, ext := range extended {
		if added == maxExtQuery {
			break
		}
		if ext == core[0] {
			continue
		}
		if queries.Add(ext + " " + core[0]) {
			added++
		}
	}
	return queries.Head(maxQueries)
}

// RoundQuota - сколько результатов запрашивать в раунде round (с 0).
func RoundQuota(limit, round int) int {
	if round < 0 {
		round = 0
	}
	q := limit / (round + 1)
	if q < 1 {
		return 1
	}
	return q
}
