package refine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Script is a recorded sequence of refinement proposals
type Script struct {
	Splits      []SplitProposal     `yaml:"splits"`
	Compares    []CompareProposal   `yaml:"compares"`
	Hierarchies []HierarchyProposal `yaml:"hierarchies"`
}

// ParseScript decodes a YAML script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse refinement script: %w", err)
	}
	return &s, nil
}

// LoadScript reads a YAML script from disk
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read refinement script: %w", err)
	}
	return ParseScript(data)
}

// ScriptedRefiner replays the proposals of a Script in order. Once a list
// is used up, further calls get an empty proposal.
type ScriptedRefiner struct {
	mu     sync.Mutex
	script *Script
	calls  map[string]int
}

// NewScriptedRefiner creates a refiner replaying s
func NewScriptedRefiner(s *Script) *ScriptedRefiner {
	if s == nil {
		s = &Script{}
	}
	return &ScriptedRefiner{script: s, calls: make(map[string]int)}
}

// Calls returns how many times op ("split", "compare", "hierarchy") was called
func (s *ScriptedRefiner) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *ScriptedRefiner) next(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[op]
	s.calls[op]++
	return n
}

// Split returns the next recorded split
func (s *ScriptedRefiner) Split(ctx context.Context, req SplitRequest) (*SplitProposal, error) {
	if i := s.next("split"); i < len(s.script.Splits) {
		p := s.script.Splits[i]
		return &p, nil
	}
	return &SplitProposal{}, nil
}

// Compare returns the next recorded comparison
func (s *ScriptedRefiner) Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error) {
	if i := s.next("compare"); i < len(s.script.Compares) {
		p := s.script.Compares[i]
		return &p, nil
	}
	return &CompareProposal{}, nil
}

// ProposeHierarchy returns the next recorded hierarchy
func (s *ScriptedRefiner) ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error) {
	if i := s.next("hierarchy"); i < len(s.script.Hierarchies) {
		p := s.script.Hierarchies[i]
		return &p, nil
	}
	return &HierarchyProposal{}, nil
}

// Provider returns the provider name
func (s *ScriptedRefiner) Provider() string {
	return ProviderScript
}

var _ Refiner = (*ScriptedRefiner)(nil)
