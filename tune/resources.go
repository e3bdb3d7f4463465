package tune

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// Resources is the compute budget of a search. Units are handed out one
// per trial: a trial holds a single GPU, or a single CPU when no GPU is
// configured, rather than the whole device set, so up to Slots trials run
// side by side.
type Resources struct {
	CPUs int
	GPUs int
}

// DetectResources returns every logical CPU of this machine and no GPUs.
func DetectResources() Resources {
	return Resources{CPUs: runtime.NumCPU()}
}

// Validate rejects a budget with no usable units.
func (r Resources) Validate() error {
	if r.CPUs < 0 || r.GPUs < 0 {
		return errors.Errorf("tune: negative resources %+v", r)
	}
	if r.Slots() == 0 {
		return errors.New("tune: resources allow no concurrent trial")
	}
	return nil
}

// Slots is the number of trials that may run at once. Each trial holds one
// GPU when GPUs are configured, else one CPU.
func (r Resources) Slots() int {
	if r.GPUs > 0 {
		return r.GPUs
	}
	return r.CPUs
}

// Device kinds.
const (
	CPU = "cpu"
	GPU = "gpu"
)

// Allocation is the device unit held by a running trial.
type Allocation struct {
	Kind  string
	Index int
}

func (a Allocation) String() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.Index)
}

// pool hands out device units. A unit is never held by two trials.
type pool struct {
	units chan Allocation
}

func newPool(r Resources) *pool {
	kind := CPU
	if r.GPUs > 0 {
		kind = GPU
	}
	p := &pool{units: make(chan Allocation, r.Slots())}
	for i := 0; i < r.Slots(); i++ {
		p.units <- Allocation{Kind: kind, Index: i}
	}
	return p
}

func (p *pool) acquire(ctx context.Context) (Allocation, error) {
	if err := ctx.Err(); err != nil {
		return Allocation{}, err
	}
	select {
	case a := <-p.units:
		return a, nil
	case <-ctx.Done():
		return Allocation{}, ctx.Err()
	}
}

func (p *pool) release(a Allocation) {
	p.units <- a
}

type allocationKey struct{}

// WithAllocation returns a context carrying the device unit of a trial.
func WithAllocation(ctx context.Context, a Allocation) context.Context {
	return context.WithValue(ctx, allocationKey{}, a)
}

// AllocationFromContext returns the device unit a trial runs on.
func AllocationFromContext(ctx context.Context) (Allocation, bool) {
	a, ok := ctx.Value(allocationKey{}).(Allocation)
	return a, ok
}
