// Package resolve реализует упорядоченную цепочку стратегий поиска:
// стратегии пробуются по возрастанию приоритета, первая валидная находка побеждает.
package resolve

import (
	"context"
	"sort"
)

// Strategy - одна стратегия поиска кандидата типа C в области S.
type Strategy[S, C any] struct {
	Name     string
	Priority int
	Locate   func(ctx context.Context, scope S) (C, bool)
	// Valid == nil означает, что любая находка валидна.
	Valid func(candidate C) bool
}

// Match - результат успешного разрешения цепочки.
type Match[C any] struct {
	Value    C
	Strategy string
}

// Observer получает исход каждой стратегии (метрики, логи).
type Observer func(chain, strategy string, found bool)

// Chain - именованный упорядоченный набор стратегий.
type Chain[S, C any] struct {
	name       string
	strategies []Strategy[S, C]
	observer   Observer
}

// New строит цепочку; порядок при равных приоритетах сохраняется.
func New[S, C any](name string, strategies ...Strategy[S, C]) *Chain[S, C] {
	sorted := make([]Strategy[S, C], len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return &Chain[S, C]{name: name, strategies: sorted}
}

// WithObserver возвращает копию цепочки с наблюдателем.
func (c *Chain[S, C]) WithObserver(obs Observer) *Chain[S, C] {
	cp := *c
	cp.observer = obs
	return &cp
}

// Name возвращает имя цепочки.
func (c *Chain[S, C]) Name() string {
	return c.name
}

// Strategies возвращает имена стратегий в порядке применения.
func (c *Chain[S, C]) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

// Resolve применяет стратегии по порядку и останавливается на первой валидной.
// Отмена контекста прерывает перебор.
func (c *Chain[S, C]) Resolve(ctx context.Context, scope S) (Match[C], bool) {
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		candidate, ok := s.Locate(ctx, scope)
		if ok && (s.Valid == nil || s.Valid(candidate)) {
			c.notify(s.Name, true)
			return Match[C]{Value: candidate, Strategy: s.Name}, true
		}
		c.notify(s.Name, false)
	}
	return Match[C]{}, false
}

// ResolveOr возвращает найденное значение или fallback.
func (c *Chain[S, C]) ResolveOr(ctx context.Context, scope S, fallback C) C {
	if m, ok := c.Resolve(ctx, scope); ok {
		return m.Value
	}
	return fallback
}

func (c *Chain[S, C]) notify(strategy string, found bool) {
	if c.observer != nil {
		c.observer(c.name, strategy, found)
	}
}
