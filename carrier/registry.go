package carrier

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Registry picks the adapter for a carrier, once per carrier, by sniffing its
// content first and falling back to the file extension.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
}

func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Adapter(nil), r.adapters...)
}

func (r *Registry) Lookup(filename string, data []byte) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.adapters {
		if a.Sniff(data) {
			return a, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		for _, a := range r.adapters {
			for _, e := range a.Extensions() {
				if e == ext {
					return a, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(filename), Categorize(filename))
}
