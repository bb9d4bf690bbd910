package taxonomy

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Lookup resolves element metadata by name.
type Lookup interface {
	Element(name string) (Element, bool)
}

// snapshot is one immutable load result. Readers share it without locking.
type snapshot struct {
	elements []Element
	byName   map[string]Element
	sections []Section
	err      error
}

// Registry holds the parsed taxonomy. It is constructed explicitly at startup and injected
// where needed; several registries (one per taxonomy version) may coexist.
type Registry struct {
	files   Files
	version string
	logger  *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// Option configures a Registry.
type Option func(*Registry)

// WithVersion records the taxonomy version the files belong to.
func WithVersion(version string) Option {
	return func(r *Registry) {
		r.version = version
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an unloaded registry for the given files.
func NewRegistry(files Files, opts ...Option) *Registry {
	r := &Registry{
		files:  files,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load parses the taxonomy exactly once. Concurrent first callers block on the same load
// and all observe its result; later calls return immediately. A failed load leaves the
// registry empty and keeps returning the same error until Reload.
func (r *Registry) Load() error {
	if s := r.current.Load(); s != nil {
		return s.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.current.Load(); s != nil {
		return s.err
	}

	s := r.build()
	r.current.Store(s)
	return s.err
}

// Reload forces a re-parse. When the new parse fails the previously loaded elements stay
// in service and the error is returned.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.build()
	if s.err != nil {
		if prev := r.current.Load(); prev != nil && prev.err == nil {
			r.logger.Warn("taxonomy reload failed, keeping previous load", "error", s.err)
			return s.err
		}
	}
	r.current.Store(s)
	return s.err
}

// LoadAtStartup applies the startup policy: a load failure is returned (and should be
// fatal) in production, and only logged otherwise.
func (r *Registry) LoadAtStartup(production bool) error {
	err := r.Load()
	if err == nil {
		r.logger.Info("taxonomy loaded", "version", r.version, "elements", r.Len())
		return nil
	}
	if production {
		return err
	}
	r.logger.Warn("taxonomy failed to load, continuing with an empty registry", "version", r.version, "error", err)
	return nil
}

func (r *Registry) build() *snapshot {
	var overrides *Overrides
	if r.files.Overrides != "" {
		o, err := LoadOverrides(r.files.Overrides)
		if err != nil {
			return &snapshot{byName: map[string]Element{}, err: err}
		}
		overrides = o
	}

	elements, err := parse(r.files, overrides)
	if err != nil {
		return &snapshot{byName: map[string]Element{}, err: err}
	}

	byName := make(map[string]Element, len(elements))
	for _, el := range elements {
		byName[el.Name] = el
	}

	return &snapshot{
		elements: elements,
		byName:   byName,
		sections: groupSections(elements),
	}
}

func (r *Registry) snapshot() *snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	_ = r.Load()
	return r.current.Load()
}

// Version returns the taxonomy version string.
func (r *Registry) Version() string {
	return r.version
}

// Element returns the element with the given name. Unknown names are reported as absent.
func (r *Registry) Element(name string) (Element, bool) {
	el, ok := r.snapshot().byName[name]
	return el, ok
}

// Elements returns all elements sorted by presentation order.
func (r *Registry) Elements() []Element {
	elements := r.snapshot().elements
	out := make([]Element, len(elements))
	copy(out, elements)
	return out
}

// ElementsBySection groups elements by presentation section, sections in the order their
// first element appears.
func (r *Registry) ElementsBySection() []Section {
	sections := r.snapshot().sections
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = Section{Name: s.Name, Elements: append([]Element(nil), s.Elements...)}
	}
	return out
}

// Len returns the number of loaded elements.
func (r *Registry) Len() int {
	return len(r.snapshot().elements)
}

func groupSections(elements []Element) []Section {
	var sections []Section
	index := make(map[string]int)
	for _, el := range elements {
		i, ok := index[el.Section]
		if !ok {
			i = len(sections)
			index[el.Section] = i
			sections = append(sections, Section{Name: el.Section})
		}
		sections[i].Elements = append(sections[i].Elements, el)
	}
	return sections
}
