package main

import (
	"sync"
	"time"

	"github.com/chaos-io/bgstrip/pipeline"
	"github.com/chaos-io/bgstrip/pipeline/rembg"
	"github.com/segmentio/ksuid"
)

// sessionStore 每个会话一个处理器，对应单页应用里的一份 ProcessorState
type sessionStore struct {
	mu       sync.Mutex
	previews *pipeline.PreviewManager
	remover  rembg.Remover
	sessions map[string]*pipeline.Processor
}

func newSessionStore(previews *pipeline.PreviewManager, remover rembg.Remover) *sessionStore {
	return &sessionStore{
		previews: previews,
		remover:  remover,
		sessions: make(map[string]*pipeline.Processor),
	}
}

// get 取已有会话；id 为空或未知时新发一个会话
func (s *sessionStore) get(id string) (*pipeline.Processor, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if p, ok := s.sessions[id]; ok {
			return p, id
		}
	}

	id = ksuid.New().String()
	p := pipeline.NewProcessor(s.previews, s.remover)
	s.sessions[id] = p
	return p, id
}

// sweep 回收空闲超过 ttl 的会话并释放其句柄，返回回收个数
func (s *sessionStore) sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := time.Now()
	for id, p := range s.sessions {
		if now.Sub(p.LastActive()) > ttl {
			p.Reset()
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
