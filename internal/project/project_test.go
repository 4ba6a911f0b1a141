package project

import "testing"

func TestDomainPath(t *testing.T) {
	p := &Project{DomainPaths: map[string]string{
		"Users":   "app/Models",
		"billing": "app/Services/Billing",
	}}

	if got := p.DomainPath("Users"); got != "app/Models" {
		t.Errorf("exact lookup = %q", got)
	}
	if got := p.DomainPath("users"); got != "app/Models" {
		t.Errorf("case-insensitive lookup = %q", got)
	}
	if got := p.DomainPath("shipping"); got != "" {
		t.Errorf("unknown domain = %q", got)
	}

	empty := &Project{}
	if got := empty.DomainPath("users"); got != "" {
		t.Errorf("nil map lookup = %q", got)
	}
}

func TestDomainsSorted(t *testing.T) {
	p := &Project{DomainPaths: map[string]string{
		"users": "a", "api": "b", "billing": "c",
	}}
	got := p.Domains()
	want := []string{"api", "billing", "users"}
	if len(got) != len(want) {
		t.Fatalf("domains = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("domains = %v, want %v", got, want)
		}
	}
}

func TestUsesFramework(t *testing.T) {
	p := &Project{TechStack: []string{"Laravel", "vue"}}
	if !p.UsesFramework("laravel") || !p.UsesFramework("Vue") {
		t.Error("case-insensitive framework match failed")
	}
	if p.UsesFramework("rails") {
		t.Error("absent framework matched")
	}
}

func TestDefaultDomainPaths(t *testing.T) {
	paths := DefaultDomainPaths()
	if paths["users"] != "app/Models" {
		t.Errorf("users path = %q", paths["users"])
	}
	if paths["routing"] != "routes" {
		t.Errorf("routing path = %q", paths["routing"])
	}
}
