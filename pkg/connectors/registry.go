package connectors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/sources"
)

var ErrUnsupportedSourceType = errors.New("unsupported source type")

// Deps carries the shared collaborators a connector constructor needs.
type Deps struct {
	Client *http.Client
	Limits *LimitsConfig
}

// Constructor builds a connector bound to one source.
type Constructor func(src *sources.Source, deps Deps) (Connector, error)

// Registration declares one source type: its field schema and constructor.
type Registration struct {
	SourceType  string
	Credentials []models.FieldSpec
	Config      []models.FieldSpec
	New         Constructor
}

// Registry maps source-type tags to connector constructors. It is built once
// at startup and immutable afterwards; inject it rather than reading a global.
type Registry struct {
	entries map[string]Registration
}

// NewRegistry builds the registry with all built-in connector types.
func NewRegistry() (*Registry, error) {
	return NewRegistryWith(builtin()...)
}

// NewRegistryWith builds a registry from an explicit registration list. Tests
// use this to stand up fake connectors.
func NewRegistryWith(regs ...Registration) (*Registry, error) {
	entries := make(map[string]Registration, len(regs))
	for _, reg := range regs {
		tag := strings.ToLower(strings.TrimSpace(reg.SourceType))
		if tag == "" {
			return nil, errors.New("registration with empty source type")
		}
		if reg.New == nil {
			return nil, fmt.Errorf("registration %q has no constructor", tag)
		}
		if _, dup := entries[tag]; dup {
			return nil, fmt.Errorf("duplicate registration for source type %q", tag)
		}
		reg.SourceType = tag
		entries[tag] = reg
	}
	return &Registry{entries: entries}, nil
}

// Supports reports whether a source type tag is registered. Lookup is
// case-insensitive.
func (r *Registry) Supports(sourceType string) bool {
	_, ok := r.entries[strings.ToLower(strings.TrimSpace(sourceType))]
	return ok
}

// Connector resolves the source's type tag and constructs its connector.
func (r *Registry) Connector(src *sources.Source, deps Deps) (Connector, error) {
	reg, ok := r.entries[strings.ToLower(strings.TrimSpace(src.SourceType))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSourceType, src.SourceType)
	}
	return reg.New(src, deps)
}

// Types enumerates every registered source type with its credential and
// config field schema, sorted by tag. Upstream CRUD collaborators derive
// credential-entry forms from this without per-type logic of their own.
func (r *Registry) Types() []models.SourceTypeSchema {
	out := make([]models.SourceTypeSchema, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, models.SourceTypeSchema{
			Type:             reg.SourceType,
			CredentialFields: reg.Credentials,
			ConfigFields:     reg.Config,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func builtin() []Registration {
	return []Registration{
		rssRegistration(),
		youtubeRegistration(),
		twitterRegistration(),
		githubRegistration(),
		redditRegistration(),
		mediumRegistration(),
		substackRegistration(),
		linkedinRegistration(),
	}
}
