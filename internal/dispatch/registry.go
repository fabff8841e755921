// Package dispatch selects the executor for a request's network and runs
// the validate, execute, record sequence for every write operation.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/lending-gateway/internal/aave"
	"github.com/atmx/lending-gateway/internal/model"
)

// UnsupportedNetworkError is returned for a chain id with no registered
// executor.
type UnsupportedNetworkError struct {
	ChainID int64
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("Unsupported chainId: %d", e.ChainID)
}

// Executor runs one validated operation to a terminal outcome.
type Executor interface {
	Execute(ctx context.Context, op model.Operation) model.Outcome
}

// Registry maps chain ids to networks and their executors. Registration
// happens at startup; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	networks  map[int64]aave.Network
	executors map[int64]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		networks:  make(map[int64]aave.Network),
		executors: make(map[int64]Executor),
	}
}

// Register binds exec to network.ChainID, replacing any earlier binding.
func (r *Registry) Register(network aave.Network, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks[network.ChainID] = network
	r.executors[network.ChainID] = exec
}

// Executor returns the executor for chainID.
func (r *Registry) Executor(chainID int64) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[chainID]
	if !ok {
		return nil, &UnsupportedNetworkError{ChainID: chainID}
	}
	return exec, nil
}

// Network returns the address book for chainID.
func (r *Registry) Network(chainID int64) (aave.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.networks[chainID]
	if !ok {
		return aave.Network{}, &UnsupportedNetworkError{ChainID: chainID}
	}
	return n, nil
}

// Networks lists registered networks ordered by chain id.
func (r *Registry) Networks() []aave.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]aave.Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
