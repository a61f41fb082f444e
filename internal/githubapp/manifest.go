package githubapp

// Manifest is a decoded evaluation_manifest.json. The two manifest layouts
// differ (one carries status and scope at the top level, the other nests a
// summary and keys criteria by ID), so the app reads them generically
// instead of binding to one schema.
type Manifest map[string]any

func (m Manifest) str(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m Manifest) sub(key string) Manifest {
	v, _ := m[key].(map[string]any)
	return v
}

// Status returns the overall verdict, preferring summary.status when a
// summary block exists.
func (m Manifest) Status() string {
	if summary := m.sub("summary"); summary != nil {
		if s := Manifest(summary).str("status"); s != "" {
			return s
		}
	}
	if s := m.str("status"); s != "" {
		return s
	}
	return "UNKNOWN"
}

// Scope returns the scope block, synthesizing one from top-level fields for
// layouts that keep repository and commit at the root.
func (m Manifest) Scope() Manifest {
	if scope := m.sub("scope"); scope != nil {
		return scope
	}
	return Manifest{
		"repository":             m.str("repository"),
		"commit_sha":             m.str("commit_sha"),
		"configuration_surfaces": []any{"TERRAFORM"},
	}
}

// Process returns the process block, synthesizing a minimal one when absent.
func (m Manifest) Process() Manifest {
	if process := m.sub("process"); process != nil {
		return process
	}
	return Manifest{"trigger_event": m.str("trigger_event")}
}

// Reasons returns the top-level reasons list, when present.
func (m Manifest) Reasons() []string {
	raw, _ := m["reasons"].([]any)
	var out []string
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CriteriaList returns criteria in a uniform slice whether the manifest
// stores them as a list or keyed by criterion ID.
func (m Manifest) CriteriaList() []Manifest {
	var out []Manifest
	switch criteria := m["criteria"].(type) {
	case []any:
		for _, c := range criteria {
			if cm, ok := c.(map[string]any); ok {
				out = append(out, cm)
			}
		}
	case map[string]any:
		for id, c := range criteria {
			cm, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if Manifest(cm).str("id") == "" {
				cm["id"] = id
			}
			out = append(out, cm)
		}
	}
	return out
}

func stringList(v any) []string {
	raw, _ := v.([]any)
	var out []string
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
