package dispatch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// builder assembles a standard-form LP (minimize c^T x subject to A x = b,
// x >= 0) one named variable and one equality row at a time. gonum's
// lp.Simplex only accepts this form, so every box bound in the problem
// (x <= U, or lo <= x <= hi) is turned into an equality row with its own
// slack variable rather than expressed directly.
type builder struct {
	names []string
	cost  []float64
	rows  []row
}

// row is a sparse equality constraint: sum(coeffs[i]*x[cols[i]]) = rhs.
type row struct {
	cols   []int
	coeffs []float64
	rhs    float64
}

func newBuilder() *builder {
	return &builder{}
}

// addVar allocates a new nonnegative variable with the given objective
// coefficient and returns its column index.
func (b *builder) addVar(name string, objCoeff float64) int {
	b.names = append(b.names, name)
	b.cost = append(b.cost, objCoeff)
	return len(b.names) - 1
}

// addBoundedVar allocates a variable constrained to [0, upper] by pairing it
// with a slack variable in a new equality row: x + slack = upper. Returns
// the variable's column index; the slack column is not needed by callers.
func (b *builder) addBoundedVar(name string, objCoeff, upper float64) int {
	x := b.addVar(name, objCoeff)
	if upper < 0 {
		upper = 0
	}
	slack := b.addVar(name+"_slack", 0)
	b.addRow(row{cols: []int{x, slack}, coeffs: []float64{1, 1}, rhs: upper})
	return x
}

// addRow appends an equality constraint.
func (b *builder) addRow(r row) {
	b.rows = append(b.rows, r)
}

// namedRow is a convenience constructor for a row from column/coefficient
// pairs; name exists purely to make call sites self-documenting.
func namedRow(name string, rhs float64, terms ...term) row {
	r := row{rhs: rhs}
	for _, tm := range terms {
		r.cols = append(r.cols, tm.col)
		r.coeffs = append(r.coeffs, tm.coeff)
	}
	return r
}

type term struct {
	col   int
	coeff float64
}

func t(col int, coeff float64) term { return term{col: col, coeff: coeff} }

// numVars reports how many columns have been allocated so far.
func (b *builder) numVars() int { return len(b.names) }

// addInequalityLE encodes sum(terms) <= rhs as sum(terms) + slack = rhs,
// slack >= 0.
func (b *builder) addInequalityLE(name string, rhs float64, terms ...term) {
	slack := b.addVar(name+"_slack", 0)
	all := append(append([]term(nil), terms...), t(slack, 1))
	b.addRow(namedRow(name, rhs, all...))
}

// addInequalityGE encodes sum(terms) >= rhs as sum(terms) - surplus = rhs,
// surplus >= 0.
func (b *builder) addInequalityGE(name string, rhs float64, terms ...term) {
	surplus := b.addVar(name+"_surplus", 0)
	all := append(append([]term(nil), terms...), t(surplus, -1))
	b.addRow(namedRow(name, rhs, all...))
}

// addToCost accumulates an additional objective coefficient onto an
// already-allocated column, for terms (like the terminal SOC valuation)
// that apply on top of a variable's per-slot cost.
func (b *builder) addToCost(col int, delta float64) {
	b.cost[col] += delta
}

// build assembles the dense A matrix, b vector, and c vector gonum's
// lp.Simplex expects.
func (b *builder) build() (a *mat.Dense, rhs []float64, cost []float64, err error) {
	n := b.numVars()
	m := len(b.rows)
	if n == 0 || m == 0 {
		return nil, nil, nil, fmt.Errorf("dispatch: empty LP (vars=%d rows=%d)", n, m)
	}
	a = mat.NewDense(m, n, nil)
	rhs = make([]float64, m)
	for i, r := range b.rows {
		for k, col := range r.cols {
			if col < 0 || col >= n {
				return nil, nil, nil, fmt.Errorf("dispatch: row %d references out-of-range column %d", i, col)
			}
			a.Set(i, col, a.At(i, col)+r.coeffs[k])
		}
		rhs[i] = r.rhs
	}
	return a, rhs, append([]float64(nil), b.cost...), nil
}
