package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Memory is the default in-process cursor store. All state is lost when
// the process exits; on restart the cursor resolves to its initial value
// again. Suitable for single-instance use and tests.
type Memory struct {
	values *xsync.MapOf[string, string]
}

func NewMemory() *Memory {
	return &Memory{values: xsync.NewMapOf[string, string]()}
}

func (m *Memory) Get(_ context.Context, name string) (string, bool, error) {
	v, ok := m.values.Load(name)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, name, value string) error {
	m.values.Store(name, value)
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.values.Delete(name)
	return nil
}
