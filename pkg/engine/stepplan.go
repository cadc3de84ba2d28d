package engine

import (
	"github.com/recipekit/recipekit/pkg/recipe"
)

// Step is one resumable unit of work: the set of asset types executed
// together at one position of the manifest's step sequence.
type Step struct {
	// Index is the zero-based step position.
	Index int

	// Assets are the asset types executed in this step.
	Assets []recipe.AssetType
}

// StepPlan is the ordered step list derived from the manifest.
type StepPlan struct {
	steps []Step
}

// NewStepPlan derives the step plan from a manifest.
func NewStepPlan(m *recipe.Manifest) *StepPlan {
	steps := make([]Step, len(m.Steps))
	for i, assets := range m.Steps {
		copied := make([]recipe.AssetType, len(assets))
		copy(copied, assets)
		steps[i] = Step{Index: i, Assets: copied}
	}
	return &StepPlan{steps: steps}
}

// MaxStep returns the number of steps.
func (p *StepPlan) MaxStep() int {
	return len(p.steps)
}

// Step returns the step at the given index.
func (p *StepPlan) Step(index int) (Step, bool) {
	if index < 0 || index >= len(p.steps) {
		return Step{}, false
	}
	return p.steps[index], true
}

// Steps returns all steps in order.
func (p *StepPlan) Steps() []Step {
	return p.steps
}
