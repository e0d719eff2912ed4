package keys

import (
	"context"
	"sync"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process key store. Reads never block writers.
type Memory struct {
	m sync.Map // core.OrgTagKey -> core.KeyMaterial
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements core.KeyReader.
func (s *Memory) Get(_ context.Context, key core.OrgTagKey) (core.KeyMaterial, bool, error) {
	v, ok := s.m.Load(key)
	if !ok {
		return core.KeyMaterial{}, false, nil
	}
	return v.(core.KeyMaterial), true, nil
}

// Put implements Writer.
func (s *Memory) Put(_ context.Context, key core.OrgTagKey, m core.KeyMaterial) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.m.Store(key, m)
	return nil
}

// PutIfAbsent implements Writer.
func (s *Memory) PutIfAbsent(_ context.Context, key core.OrgTagKey, m core.KeyMaterial) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	_, loaded := s.m.LoadOrStore(key, m)
	return !loaded, nil
}
