package authapi_test

import "sync"

type bodyRecorder struct {
	mu sync.Mutex
	m  map[string]map[string]string
}

func (s *bodyRecorder) store(path string, body map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]map[string]string)
	}
	s.m[path] = body
}

func (s *bodyRecorder) load(path string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[path]
}
