// Package ksi defines the evaluator contract shared by all Key Security
// Indicator implementations and an ordered registry to dispatch them.
package ksi

import (
	"fmt"

	"github.com/complykit/ksi-evidence/internal/models"
	"github.com/complykit/ksi-evidence/internal/tfexec"
)

// Input carries everything an evaluator may need for one run. Evaluators
// read only the fields relevant to them; nil fields mean that stage did not
// run.
type Input struct {
	Network       *models.NetworkInventory
	Detection     *models.TerraformDetection
	TerraformEval *tfexec.EvalResult

	// TriggerEvent is the CI event name that started the run. Scheduled
	// runs report "schedule".
	TriggerEvent string

	// EvidenceGenerated is true once the pack builder has committed the
	// artifact files for this run.
	EvidenceGenerated bool
}

// Outcome is the full result of one KSI evaluation.
type Outcome struct {
	Status   models.Status
	Reasons  []string
	Criteria []models.CriterionResult

	// Summary is set only by evaluators that roll up per-resource
	// compliance counts.
	Summary *models.EvaluationSummary
}

// CriteriaByID returns the criteria keyed by criterion ID, for manifest
// layouts that use a mapping instead of a list.
func (o *Outcome) CriteriaByID() map[string]models.CriterionResult {
	out := make(map[string]models.CriterionResult, len(o.Criteria))
	for _, c := range o.Criteria {
		out[c.ID] = c
	}
	return out
}

// Evaluator is one KSI evaluation. Implementations are stateless; all run
// state comes in through Input.
type Evaluator interface {
	// ID returns the KSI identifier, e.g. "KSI-CNA-01".
	ID() string

	// Name returns the human-readable KSI name.
	Name() string

	// Evaluate runs every criterion and returns the rolled-up outcome.
	Evaluate(in *Input) *Outcome
}

// Registry is a simple, ordered, in-memory evaluator registry. Evaluators
// run in registration order. Register panics on duplicate IDs to catch
// wiring mistakes at startup.
type Registry struct {
	evaluators []Evaluator
	index      map[string]Evaluator
}

// NewRegistry returns an empty registry ready for registration.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]Evaluator),
	}
}

// Register adds e to the registry. Panics if the same ID is registered twice.
func (r *Registry) Register(e Evaluator) {
	if _, exists := r.index[e.ID()]; exists {
		panic(fmt.Sprintf("duplicate KSI ID: %q", e.ID()))
	}
	r.evaluators = append(r.evaluators, e)
	r.index[e.ID()] = e
}

// Get returns the evaluator registered under id, or nil.
func (r *Registry) Get(id string) Evaluator {
	return r.index[id]
}

// All returns all registered evaluators in registration order.
func (r *Registry) All() []Evaluator {
	return r.evaluators
}
