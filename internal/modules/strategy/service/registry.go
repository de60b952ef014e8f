package service

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — набор зарегистрированных стратегий с флагом активности.
// Всё состояние только под мьютексом, никакого ambient-доступа.
type Registry struct {
	mu         sync.Mutex
	strategies map[string]Strategy
	active     map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		active:     make(map[string]bool),
	}
}

// Register добавляет стратегию, новая стратегия сразу активна.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
	r.active[s.Name()] = true
}

func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names возвращает имена всех стратегий в стабильном порядке.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Active возвращает только активные стратегии, в стабильном порядке.
func (r *Registry) Active() []Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		if r.active[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		out = append(out, r.strategies[name])
	}
	return out
}

func (r *Registry) IsActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[name]
}

// SetActive ставит/снимает паузу одной стратегии.
func (r *Registry) SetActive(name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	r.active[name] = active
	return nil
}

// SetAllActive ставит/снимает паузу всем стратегиям разом.
func (r *Registry) SetAllActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.strategies {
		r.active[name] = active
	}
}

// Reconfigure раздаёт новый уровень агрессивности всем живым инстансам.
func (r *Registry) Reconfigure(aggressiveness int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.strategies {
		s.Reconfigure(aggressiveness)
	}
}
