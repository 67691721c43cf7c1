package payload

import "github.com/graftwork/graft/pkg/config"

// Registry holds the configured payloads in declaration order.
type Registry struct {
	payloads []*Payload
	byName   map[string]*Payload
}

// NewRegistry constructs every payload declared in cfg, in file order.
// Construction is all-or-nothing: one misconfigured payload fails the
// whole registry, so configuration errors surface before any
// acquisition starts.
func NewRegistry(cfg *config.Config, payloadsDir string) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Payload)}
	for _, name := range cfg.PayloadNames() {
		p, err := NewPayload(cfg, name, payloadsDir)
		if err != nil {
			return nil, err
		}
		r.payloads = append(r.payloads, p)
		r.byName[name] = p
	}
	return r, nil
}

// All returns the payloads in declaration order.
func (r *Registry) All() []*Payload {
	return r.payloads
}

// Get returns the named payload, or nil when not configured.
func (r *Registry) Get(name string) *Payload {
	return r.byName[name]
}

// Len returns the number of configured payloads.
func (r *Registry) Len() int {
	return len(r.payloads)
}
