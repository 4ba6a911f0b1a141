// Package project describes the indexed repository a conversation runs
// against. Authentication and project management live elsewhere; this is the
// minimal shape the pipeline needs.
package project

import (
	"sort"
	"strings"
)

// Project identifies one indexed repository.
type Project struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Root        string            `json:"root"`        // working-copy root on disk
	TechStack   []string          `json:"techStack"`   // detected frameworks/languages
	DomainPaths map[string]string `json:"domainPaths"` // domain -> path prefix
	ScanDBPath  string            `json:"scanDbPath"`
}

// DomainPath returns the path prefix mapped to a domain, falling back to a
// case-insensitive lookup.
func (p *Project) DomainPath(domain string) string {
	if p.DomainPaths == nil {
		return ""
	}
	if path, ok := p.DomainPaths[domain]; ok {
		return path
	}
	lowered := strings.ToLower(domain)
	for d, path := range p.DomainPaths {
		if strings.ToLower(d) == lowered {
			return path
		}
	}
	return ""
}

// Domains returns the mapped domain names, sorted.
func (p *Project) Domains() []string {
	domains := make([]string, 0, len(p.DomainPaths))
	for d := range p.DomainPaths {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// UsesFramework reports whether the detected tech stack contains the named
// framework, case-insensitively.
func (p *Project) UsesFramework(name string) bool {
	lowered := strings.ToLower(name)
	for _, t := range p.TechStack {
		if strings.ToLower(t) == lowered {
			return true
		}
	}
	return false
}

// DefaultDomainPaths is the conventional domain layout for full-stack web
// projects; used when a project carries no explicit mapping.
func DefaultDomainPaths() map[string]string {
	return map[string]string{
		"auth":     "app/Http/Controllers/Auth",
		"users":    "app/Models",
		"api":      "app/Http/Controllers/Api",
		"ui":       "resources/js",
		"routing":  "routes",
		"database": "database",
		"billing":  "app/Services/Billing",
	}
}
