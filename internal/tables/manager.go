package tables

import (
	"fmt"
	"sync"
)

// Manager hands out one open Workspace per record id. Workspaces stay open
// for the process lifetime; the databases themselves are durable files.
type Manager struct {
	mu   sync.Mutex
	dir  string
	open map[string]*Workspace
}

// NewManager creates a manager rooted at the tables directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:  dir,
		open: make(map[string]*Workspace),
	}
}

// Workspace returns the open workspace for a record, opening it on first use.
func (m *Manager) Workspace(recordID string) (*Workspace, error) {
	if recordID == "" {
		return nil, fmt.Errorf("record id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.open[recordID]; ok {
		return ws, nil
	}
	ws, err := Open(m.dir, recordID)
	if err != nil {
		return nil, err
	}
	m.open[recordID] = ws
	return ws, nil
}

// CloseAll closes every open workspace. Called at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ws := range m.open {
		if err := ws.Close(); err != nil {
			fmt.Printf("[Tables] close workspace %s: %v\n", id, err)
		}
		delete(m.open, id)
	}
}
