package optimize

// TrackerState is one entity's solver diagnostics for a single run.
type TrackerState struct {
	// Iterations is the number of gradient steps taken.
	Iterations int
	// Converged reports whether the gradient-norm tolerance was reached
	// before MaxIterations.
	Converged bool
	// FinalLoss is the objective value at the returned solution.
	FinalLoss float32
	// Objective is the objective's diagnostic name.
	Objective string
}

// Tracker aggregates per-entity solver diagnostics for one training
// round. Entities passed through untouched (warm-start passthrough)
// contribute no entry. Aggregation is order-independent by entity id.
type Tracker[E comparable] struct {
	states map[E]TrackerState
}

// NewTracker creates an empty tracker.
func NewTracker[E comparable]() *Tracker[E] {
	return &Tracker[E]{states: make(map[E]TrackerState)}
}

// Add records state for an entity, replacing any previous entry.
func (t *Tracker[E]) Add(id E, state TrackerState) {
	t.states[id] = state
}

// Get returns the state for an entity.
func (t *Tracker[E]) Get(id E) (TrackerState, bool) {
	state, ok := t.states[id]
	return state, ok
}

// Len returns the number of tracked entities.
func (t *Tracker[E]) Len() int {
	return len(t.states)
}

// States returns the underlying state map. Callers must not mutate it.
func (t *Tracker[E]) States() map[E]TrackerState {
	return t.states
}
