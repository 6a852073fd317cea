package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink writes one JSON document per route into Dir. Writing the same
// route twice replaces the earlier file.
type FileSink struct {
	Dir   string
	RunID string

	mu     sync.Mutex
	claims map[string]string // file name -> route name
}

func NewFileSink(dir, runID string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file sink: output dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create %q: %w", dir, err)
	}
	return &FileSink{Dir: dir, RunID: runID, claims: make(map[string]string)}, nil
}

// FileName maps a route name to a safe file name. Names that had to be
// rewritten get a hash of the original so distinct routes stay distinct.
func FileName(route string) string {
	var b strings.Builder
	for _, r := range route {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		name = "route"
	}
	if name != route {
		h := fnv.New32a()
		h.Write([]byte(route))
		name = fmt.Sprintf("%s-%08x", name, h.Sum32())
	}
	return name + ".json"
}

// Reserve keeps name out of reach of route documents, for files the caller
// writes into Dir itself.
func (s *FileSink) Reserve(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims == nil {
		s.claims = make(map[string]string)
	}
	s.claims[name] = ""
}

// claim reserves name for route for the life of the sink.
func (s *FileSink) claim(name, route string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims == nil {
		s.claims = make(map[string]string)
	}
	owner, ok := s.claims[name]
	switch {
	case ok && owner == "":
		return fmt.Errorf("file sink: route %q maps to reserved file %q", route, name)
	case ok && owner != route:
		return fmt.Errorf("file sink: route %q maps to %q already written for route %q", route, name, owner)
	}
	s.claims[name] = route
	return nil
}

func (s *FileSink) Save(ctx context.Context, plan *domain.RoutePlan) (_ string, err error) {
	defer obs.Time(ctx, "sink.file.Save")(&err)

	name := FileName(plan.RouteName)
	if err := s.claim(name, plan.RouteName); err != nil {
		return "", err
	}

	b, err := json.MarshalIndent(NewPlanDocument(s.RunID, plan), "", "  ")
	if err != nil {
		return "", fmt.Errorf("file sink: encode route %q: %w", plan.RouteName, err)
	}

	path := filepath.Join(s.Dir, name)
	tmp, err := os.CreateTemp(s.Dir, ".route-*")
	if err != nil {
		return "", fmt.Errorf("file sink: route %q: %w", plan.RouteName, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return "", fmt.Errorf("file sink: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("file sink: write %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("file sink: rename %q: %w", path, err)
	}
	return path, nil
}
