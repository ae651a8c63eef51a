package vrpm

import (
	"context"
	"fmt"

	"github.com/gammazero/toposort"
	"github.com/rs/zerolog"
)

// Step is a named unit of work in a Plan.
type Step struct {
	// ID identifies the step within its plan.
	ID string

	// Needs lists the IDs of steps that must run before this one.
	Needs []string

	// Run performs the step.
	Run func(ctx context.Context) error
}

// Plan is a small set of steps with declared dependencies. Steps are
// ordered by topological sort before execution and run sequentially;
// the first failure aborts the remainder.
type Plan struct {
	steps []Step
	log   zerolog.Logger
}

// NewPlan creates an empty plan logging through log.
func NewPlan(log zerolog.Logger) *Plan {
	return &Plan{log: log}
}

// Add appends steps to the plan. Duplicate IDs and missing references
// are reported by Resolve.
func (p *Plan) Add(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Steps returns the current step order.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Resolve validates the step graph and reorders the steps so every step
// follows the steps it needs. Returns an error on duplicate IDs,
// references to unknown steps, or cycles.
func (p *Plan) Resolve() error {
	index := make(map[string]int, len(p.steps))
	for i, step := range p.steps {
		if step.ID == "" {
			return fmt.Errorf("step %d has no ID", i)
		}
		if step.Run == nil {
			return fmt.Errorf("step %s has no Run function", step.ID)
		}
		if _, exists := index[step.ID]; exists {
			return fmt.Errorf("duplicate step %s", step.ID)
		}
		index[step.ID] = i
	}

	edges := make([]toposort.Edge, 0, len(p.steps))
	for _, step := range p.steps {
		for _, need := range step.Needs {
			if _, exists := index[need]; !exists {
				return fmt.Errorf("step %s needs unknown step %s", step.ID, need)
			}
			// Edge element 0 sorts before element 1.
			edges = append(edges, toposort.Edge{need, step.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return fmt.Errorf("step cycle detected: %w", err)
	}

	ordered := make([]Step, 0, len(p.steps))
	placed := make(map[string]bool, len(p.steps))
	for _, idValue := range sorted {
		id, ok := idValue.(string)
		if !ok {
			return fmt.Errorf("unexpected type in topological sort result: %T", idValue)
		}
		if i, exists := index[id]; exists && !placed[id] {
			ordered = append(ordered, p.steps[i])
			placed[id] = true
		}
	}
	// Steps outside the dependency graph keep their insertion order.
	for _, step := range p.steps {
		if !placed[step.ID] {
			ordered = append(ordered, step)
			placed[step.ID] = true
		}
	}

	p.steps = ordered
	return nil
}

// Run resolves the plan and executes each step in order, stopping at
// the first failure, which is returned as a *StepError.
func (p *Plan) Run(ctx context.Context) error {
	if err := p.Resolve(); err != nil {
		return err
	}
	for _, step := range p.steps {
		p.log.Debug().Str("step", step.ID).Msg("running step")
		if err := step.Run(ctx); err != nil {
			p.log.Debug().Str("step", step.ID).Err(err).Msg("step failed")
			return &StepError{Step: step.ID, Err: err}
		}
	}
	return nil
}
