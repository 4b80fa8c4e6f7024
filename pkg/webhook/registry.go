// Package webhook talks to the automation scenarios (Make.com webhooks) that
// do the actual lead generation, enrichment and content drafting.
package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry names of the automation endpoints.
const (
	EndpointLeadsBroad      = "leads-broad"
	EndpointLeadsSniper     = "leads-sniper"
	EndpointLeadsStatus     = "leads-status"
	EndpointImportLeads     = "import-leads"
	EndpointEnrichContacts  = "enrich-contacts"
	EndpointEnrichCompanies = "enrich-companies"
	EndpointEnrichSocials   = "enrich-socials"
	EndpointArticleThemes   = "article-themes"
	EndpointArticleOutline  = "article-outline"
	EndpointNewsletter      = "newsletter"
	EndpointSocialPost      = "social-post"
	EndpointBrochureContent = "brochure-content"
	EndpointScriptVoiceover = "script-voiceover"
)

var ErrUnknownEndpoint = errors.New("unknown webhook endpoint")

// Endpoint is one configured third-party URL.
type Endpoint struct {
	Name    string
	URL     string
	Methods []string
	// Repair lets the proxy substitute a leniently decoded body for invalid JSON.
	Repair  bool
	// Proxy exposes the endpoint on the unauthenticated browser passthrough.
	Proxy   bool
	Timeout time.Duration
}

// Allows reports whether method may be forwarded to the endpoint.
func (e Endpoint) Allows(method string) bool {
	for _, m := range e.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

type endpointFile struct {
	URL     string   `yaml:"url"`
	Methods []string `yaml:"methods"`
	Repair  bool     `yaml:"repair"`
	Proxy   bool     `yaml:"proxy"`
	Timeout string   `yaml:"timeout"`
}

type registryFile struct {
	Endpoints map[string]endpointFile `yaml:"endpoints"`
}

// Registry maps feature names to their webhook endpoints.
type Registry struct {
	endpoints map[string]Endpoint
}

// LoadRegistry reads a YAML registry file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook registry %s: %w", path, err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses a registry document:
//
//	endpoints:
//	  leads-broad:
//	    url: https://hook.eu2.make.com/...
//	    methods: [POST]
//	    timeout: 30s
//	  import-leads:
//	    url: https://hook.eu2.make.com/...
//	    repair: true
//	    proxy: true
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse webhook registry: %w", err)
	}

	reg := &Registry{endpoints: make(map[string]Endpoint, len(file.Endpoints))}
	for name, ef := range file.Endpoints {
		if ef.URL == "" {
			return nil, fmt.Errorf("webhook endpoint %q has no url", name)
		}
		ep := Endpoint{
			Name:    name,
			URL:     ef.URL,
			Methods: ef.Methods,
			Repair:  ef.Repair,
			Proxy:   ef.Proxy,
		}
		if len(ep.Methods) == 0 {
			ep.Methods = []string{http.MethodPost}
		}
		if ef.Timeout != "" {
			d, err := time.ParseDuration(ef.Timeout)
			if err != nil {
				return nil, fmt.Errorf("webhook endpoint %q has invalid timeout %q: %w", name, ef.Timeout, err)
			}
			ep.Timeout = d
		}
		reg.endpoints[name] = ep
	}
	return reg, nil
}

// NewRegistry builds a registry in code, mostly for tests.
func NewRegistry(endpoints ...Endpoint) *Registry {
	reg := &Registry{endpoints: make(map[string]Endpoint, len(endpoints))}
	for _, ep := range endpoints {
		if len(ep.Methods) == 0 {
			ep.Methods = []string{http.MethodPost}
		}
		reg.endpoints[ep.Name] = ep
	}
	return reg
}

// Lookup returns ErrUnknownEndpoint for names not in the registry.
func (r *Registry) Lookup(name string) (Endpoint, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return ep, nil
}

// Names lists the configured endpoints in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
