package selector

import "sort"

// Well-known chain names consumed by the extractor. Title and
// description each have an application-specific tier tried before the
// generic structural tier.
const (
	ChainCards          = "cards"
	ChainTitleApp       = "title_app"
	ChainTitle          = "title"
	ChainDescriptionApp = "description_app"
	ChainDescription    = "description"
)

// Registry stores chains by name and version. Lookup returns the highest
// registered version of a name, so a new site heuristic ships as a new
// version without touching existing entries.
type Registry struct {
	chains map[string][]Chain
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[string][]Chain)}
}

// Register adds a chain. Re-registering the same (name, version)
// replaces the earlier entry.
func (r *Registry) Register(c Chain) {
	list := r.chains[c.Name]
	for i := range list {
		if list[i].Version == c.Version {
			list[i] = c
			return
		}
	}
	list = append(list, c)
	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
	r.chains[c.Name] = list
}

// Lookup returns the highest version of the named chain.
func (r *Registry) Lookup(name string) (Chain, bool) {
	list := r.chains[name]
	if len(list) == 0 {
		return Chain{}, false
	}
	return list[len(list)-1], true
}

// DefaultRegistry seeds the chains for board-style applications.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Chain{
		Name:    ChainCards,
		Version: 1,
		Candidates: []string{
			".card",
			".taskcard",
			"[data-card]",
			".board-card",
			".tc-card",
		},
		Fallback: &FallbackScan{
			Tag:      "div",
			Keywords: []string{"card", "task", "item"},
		},
	})

	// Editable header region rendered by the board framework.
	r.Register(Chain{
		Name:    ChainTitleApp,
		Version: 1,
		Candidates: []string{
			".card-header [contenteditable]",
			"[contenteditable][data-placeholder*='itel']",
		},
	})

	r.Register(Chain{
		Name:       ChainTitle,
		Version:    1,
		Candidates: []string{"h1", "h2", "h3", ".title", ".card-title", ".header"},
	})

	// Editable content region rendered by the board framework.
	r.Register(Chain{
		Name:    ChainDescriptionApp,
		Version: 1,
		Candidates: []string{
			".card-body [contenteditable]",
			"[contenteditable].content",
		},
	})

	r.Register(Chain{
		Name:       ChainDescription,
		Version:    1,
		Candidates: []string{"p", ".description", ".content", ".card-content", ".body"},
	})

	return r
}
