package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/casualjim/aviary/catalog"
	"github.com/casualjim/aviary/catalog/definitions"
	"github.com/casualjim/aviary/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Severity tells whether a diagnostic caused a definition to be dropped.
type Severity string

const (
	// SeverityError means the definition was dropped.
	SeverityError Severity = "error"
	// SeverityWarning means the definition was loaded but has a data quality problem.
	SeverityWarning Severity = "warning"
)

// Diagnostic describes a problem found while loading one provider definition.
type Diagnostic struct {
	Definition string          `json:"definition"`
	Severity   Severity        `json:"severity"`
	Reason     string          `json:"reason"`
	At         strfmt.DateTime `json:"at"`
}

// Dropped reports whether the definition was excluded from the catalog.
func (d Diagnostic) Dropped() bool {
	return d.Severity == SeverityError
}

type snapshot struct {
	providers *orderedmap.OrderedMap[string, catalog.Provider]
	models    int
}

var emptySnapshot = &snapshot{providers: orderedmap.New[string, catalog.Provider]()}

// Registry is the in-memory holder of the provider catalog.
type Registry struct {
	current     atomic.Pointer[snapshot]
	diagnostics []Diagnostic
	logger      *slog.Logger
	now         func() time.Time
}

var (
	// WithLogger sets the logger used to report load diagnostics.
	WithLogger = opts.ForName[Registry, *slog.Logger]("logger")
)

// WithClock overrides the clock used to timestamp diagnostics.
func WithClock(now func() time.Time) opts.Option[Registry] {
	return opts.Type[Registry](func(r *Registry) error {
		if now == nil {
			return errors.New("registry: clock must not be nil")
		}
		r.now = now
		return nil
	})
}

// LoadEmbedded builds a registry from the provider definitions compiled into the binary.
func LoadEmbedded(options ...opts.Option[Registry]) *Registry {
	return Load(definitions.All(), options...)
}

// Load builds a registry from the given definitions, in order.
//
// Each definition is validated and decoded on its own. Definitions that fail
// are dropped with a diagnostic; Load itself never fails.
func Load(defs []definitions.Definition, options ...opts.Option[Registry]) *Registry {
	r := &Registry{
		logger: slog.Default(),
		now:    time.Now,
	}
	if err := opts.Apply(r, options); err != nil {
		panic(err)
	}

	snap := &snapshot{providers: orderedmap.New[string, catalog.Provider]()}
	for _, def := range defs {
		provider, err := decodeDefinition(def.Raw)
		if err != nil {
			r.report(def.Name, SeverityError, err)
			continue
		}

		if _, exists := snap.providers.Get(provider.ID); exists {
			r.report(def.Name, SeverityError, fmt.Errorf("duplicate provider id %q", provider.ID))
			continue
		}

		r.checkQuality(def.Name, provider)
		snap.providers.Set(provider.ID, provider)
		snap.models += len(provider.Models)
	}

	r.current.Store(snap)
	r.logger.Debug("provider catalog loaded",
		slog.Int("providers", snap.providers.Len()),
		slog.Int("models", snap.models),
		slog.Int("diagnostics", len(r.diagnostics)),
	)
	return r
}

func decodeDefinition(raw []byte) (catalog.Provider, error) {
	if err := validateDefinition(raw); err != nil {
		return catalog.Provider{}, err
	}

	var provider catalog.Provider
	if err := json.Unmarshal(raw, &provider); err != nil {
		return catalog.Provider{}, fmt.Errorf("%w: %w", ErrMalformedDefinition, err)
	}
	if provider.Models == nil {
		provider.Models = []catalog.Model{}
	}
	return provider, nil
}

// checkQuality records warnings for problems that do not prevent loading.
func (r *Registry) checkQuality(name string, p catalog.Provider) {
	if !slugPattern.MatchString(p.ID) {
		r.report(name, SeverityWarning, fmt.Errorf("provider id %q is not a lowercase slug", p.ID))
	}

	seen := make(map[string]struct{}, len(p.Models))
	for _, m := range p.Models {
		if _, dup := seen[m.ID]; dup {
			r.report(name, SeverityWarning, fmt.Errorf("duplicate model id %q", m.ID))
		}
		seen[m.ID] = struct{}{}
	}

	defaults := []struct {
		label string
		id    *string
	}{
		{"default_large_model_id", p.DefaultLargeModelID},
		{"default_small_model_id", p.DefaultSmallModelID},
	}
	for _, d := range defaults {
		if d.id == nil {
			continue
		}
		if _, ok := seen[*d.id]; !ok {
			r.report(name, SeverityWarning, fmt.Errorf("%s %q does not match any model", d.label, *d.id))
		}
	}
}

func (r *Registry) report(name string, severity Severity, reason error) {
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Definition: name,
		Severity:   severity,
		Reason:     reason.Error(),
		At:         strfmt.DateTime(r.now().UTC()),
	})

	attrs := []any{slog.String("definition", name), slogx.Error(reason)}
	if severity == SeverityError {
		r.logger.Warn("dropping provider definition", attrs...)
		return
	}
	r.logger.Warn("provider definition has data quality issues", attrs...)
}

func (r *Registry) snapshot() *snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// All returns a deep copy of every provider in declaration order.
func (r *Registry) All() []catalog.Provider {
	snap := r.snapshot()
	out := make([]catalog.Provider, 0, snap.providers.Len())
	for pair := snap.providers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}
	return out
}

// ByID returns a copy of the provider with the given id. The match is exact
// and case-sensitive.
func (r *Registry) ByID(id string) (catalog.Provider, bool) {
	p, ok := r.snapshot().providers.Get(id)
	if !ok {
		return catalog.Provider{}, false
	}
	return p.Clone(), true
}

// Model returns a copy of a model of a provider. It reports false when either
// the provider or the model is unknown.
func (r *Registry) Model(providerID, modelID string) (catalog.Model, bool) {
	p, ok := r.snapshot().providers.Get(providerID)
	if !ok {
		return catalog.Model{}, false
	}
	return p.Model(modelID)
}

// IDs returns the provider ids in declaration order.
func (r *Registry) IDs() []string {
	snap := r.snapshot()
	ids := make([]string, 0, snap.providers.Len())
	for pair := snap.providers.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Count returns the number of providers.
func (r *Registry) Count() int {
	return r.snapshot().providers.Len()
}

// ModelCount returns the number of models across all providers.
func (r *Registry) ModelCount() int {
	return r.snapshot().models
}

// Diagnostics returns the problems recorded while loading.
func (r *Registry) Diagnostics() []Diagnostic {
	return slices.Clone(r.diagnostics)
}

// Dropped returns the number of definitions that were excluded from the catalog.
func (r *Registry) Dropped() int {
	n := 0
	for _, d := range r.diagnostics {
		if d.Dropped() {
			n++
		}
	}
	return n
}

// LogValue summarizes the registry for structured logging.
func (r *Registry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("providers", r.Count()),
		slog.Int("models", r.ModelCount()),
		slog.Int("dropped", r.Dropped()),
	)
}

var _ slog.LogValuer = (*Registry)(nil)
