package asset

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	byCode map[string]*Asset
	mu     sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byCode: make(map[string]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same code is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCode[a.Code()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.Code()))
	}
	r.byCode[a.Code()] = a
}

// Get retrieves an asset by code, case-insensitively.
func (r *Registry) Get(code string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byCode[strings.ToUpper(code)]
	return a, ok
}

// MustGet retrieves an asset by code, panics if not found.
func (r *Registry) MustGet(code string) *Asset {
	a, ok := r.Get(code)
	if !ok {
		panic(fmt.Sprintf("asset: %s not found in registry", code))
	}
	return a
}

// ParsePair resolves "BASE/QUOTE" against the registry.
func (r *Registry) ParsePair(symbol string) (Pair, error) {
	baseCode, quoteCode, err := SplitSymbol(symbol)
	if err != nil {
		return Pair{}, err
	}

	base, ok := r.Get(baseCode)
	if !ok {
		return Pair{}, fmt.Errorf("%w: unknown currency %s", ErrInvalidPair, baseCode)
	}
	quote, ok := r.Get(quoteCode)
	if !ok {
		return Pair{}, fmt.Errorf("%w: unknown currency %s", ErrInvalidPair, quoteCode)
	}
	return Pair{Base: base, Quote: quote}, nil
}

// All returns all registered assets sorted by code.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.byCode))
	for _, a := range r.byCode {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code() < result[j].Code() })
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCode)
}
