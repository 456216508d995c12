package dispatch

import (
	"context"
	"errors"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrNoSchedule is returned whenever the LP has no feasible or bounded
// solution, or the solver did not return within ctx's deadline. Per §4.F
// and §7, this is never a crash: callers fall back to "no schedule" and
// retry next tick.
var ErrNoSchedule = errors.New("dispatch: no schedule (infeasible, unbounded, or solver did not converge in time)")

// SlotResult is one slot's decoded physical quantities from a solved LP.
type SlotResult struct {
	GridImportWh       float64
	GridExportWh       float64
	BatteryChargeWh    float64
	BatteryDischargeWh float64
	BatterySOCWh       float64
	SOCDeficitWh       float64
	EVEnergyWh         *float64
	EVChargeWh         *float64
}

// Solution is a fully decoded LP solve: one SlotResult per input slot.
type Solution struct {
	Objective float64
	Slots     []SlotResult
}

// Solve runs the simplex method on p and decodes the result. ctx's
// deadline is the solver wall-time budget (§5: 10s); a deadline exceeded
// while the solve is in flight is treated identically to infeasibility.
func Solve(ctx context.Context, p *Problem) (*Solution, error) {
	type result struct {
		obj float64
		x   []float64
		err error
	}
	done := make(chan result, 1)

	go func() {
		obj, x, err := lp.Simplex(p.c, p.a, p.b, 0, nil)
		done <- result{obj: obj, x: x, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrNoSchedule
	case r := <-done:
		if r.err != nil {
			return nil, ErrNoSchedule
		}
		sol := p.decode(r.x)
		sol.Objective = r.obj
		return sol, nil
	}
}

// SolveWithTimeout is a convenience wrapper for callers that just want a
// fixed wall-clock budget rather than threading a context through.
func SolveWithTimeout(p *Problem, timeout time.Duration) (*Solution, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return Solve(ctx, p)
}

// decode reads the raw simplex solution vector back into per-slot
// physical quantities, undoing the eprime = E - elo shift applied at
// build time.
func (p *Problem) decode(x []float64) *Solution {
	sol := &Solution{Slots: make([]SlotResult, len(p.cols))}
	for i, c := range p.cols {
		r := SlotResult{
			GridImportWh:       x[c.gimp],
			GridExportWh:       x[c.gexp],
			BatteryChargeWh:    x[c.bchg],
			BatteryDischargeWh: x[c.bdis],
			BatterySOCWh:       x[c.eprime] + p.elo,
			SOCDeficitWh:       x[c.sdef],
		}
		if c.eevPrime >= 0 {
			ev := x[c.eevPrime]
			pev := x[c.pev]
			r.EVEnergyWh = &ev
			r.EVChargeWh = &pev
		}
		sol.Slots[i] = r
	}
	return sol
}
