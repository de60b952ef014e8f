package service

import (
	"sync/atomic"
	"time"
)

// State — снимок живости бота для HTTP-проб: готовность (epic найден,
// буфер прогрет), связь с потоком котировок и время последнего прогона
// планировщика.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	feedConnected atomic.Bool
	lastEvalUnix  atomic.Int64 // unix seconds
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetFeedConnected(v bool) { s.feedConnected.Store(v) }
func (s *State) FeedConnected() bool     { return s.feedConnected.Load() }

func (s *State) TouchEval(t time.Time) { s.lastEvalUnix.Store(t.Unix()) }
func (s *State) LastEval() time.Time {
	u := s.lastEvalUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
