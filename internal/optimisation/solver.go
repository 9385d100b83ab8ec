package optimisation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNonFiniteInput indicates NaN or Inf values in the mean vector or covariance matrix,
	// typically caused by too few observations.
	ErrNonFiniteInput = errors.New("mean vector or covariance matrix contains non-finite values")

	// ErrNotPositiveSemiDefinite indicates the covariance matrix has a negative eigenvalue,
	// so the problem is not convex.
	ErrNotPositiveSemiDefinite = errors.New("covariance matrix is not positive semi-definite")

	// ErrDegenerateCovariance indicates the eigen decomposition of the covariance failed.
	ErrDegenerateCovariance = errors.New("covariance matrix could not be factorised")

	// ErrNotConverged indicates the solver reached its iteration limit.
	ErrNotConverged = errors.New("solver did not converge")
)

// meanVarianceProblem is the long-only, fully invested mean-variance problem
//
//	maximise  wᵀμ − γ·wᵀΣw   subject to  Σw = 1, w ≥ 0
//
// built once per sweep. It is read-only after construction, so samples may be solved
// concurrently.
type meanVarianceProblem struct {
	n        int
	mu       *mat.VecDense
	sigma    *mat.SymDense
	maxEigen float64

	// defect is reported by every solve; it makes a bad covariance a per-sample failure.
	defect error
}

func newMeanVarianceProblem(mu []float64, sigma *mat.SymDense) (*meanVarianceProblem, error) {
	n := len(mu)
	if n == 0 {
		return nil, errors.New("problem has no assets")
	}
	if r := sigma.SymmetricDim(); r != n {
		return nil, fmt.Errorf("covariance dimension %d does not match %d assets", r, n)
	}

	p := &meanVarianceProblem{
		n:     n,
		mu:    mat.NewVecDense(n, append([]float64(nil), mu...)),
		sigma: mat.NewSymDense(n, nil),
	}
	p.sigma.CopySym(sigma)

	if !finite(mu) || !finiteSym(sigma) {
		p.defect = ErrNonFiniteInput
		return p, nil
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(p.sigma, false); !ok {
		p.defect = ErrDegenerateCovariance
		return p, nil
	}
	values := eig.Values(nil)
	minEigen, maxEigen := floats.Min(values), floats.Max(values)
	if minEigen < -1e-9*math.Max(1, math.Abs(maxEigen)) {
		p.defect = fmt.Errorf("%w: smallest eigenvalue %g", ErrNotPositiveSemiDefinite, minEigen)
		return p, nil
	}
	p.maxEigen = math.Max(maxEigen, 0)
	return p, nil
}

// solve finds the optimal weights for one risk-aversion value using accelerated projected
// gradient descent (FISTA with adaptive restart) on the probability simplex.
// gonum/optimize is unconstrained and would only approximate the simplex through penalties,
// so every iterate is projected onto it exactly instead.
func (p *meanVarianceProblem) solve(ctx context.Context, gamma float64, maxIterations int, tolerance float64) ([]float64, error) {
	if p.defect != nil {
		return nil, p.defect
	}
	if gamma < 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("invalid risk aversion %g", gamma)
	}

	// Gradient of γ·wᵀΣw − wᵀμ is 2γΣw − μ, Lipschitz with constant 2γ·λmax(Σ).
	lipschitz := 2 * gamma * p.maxEigen
	if lipschitz <= 0 {
		return p.bestReturnCorner(), nil
	}
	step := 1 / lipschitz

	n := p.n
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	y := append([]float64(nil), w...)
	next := make([]float64, n)
	yVec := mat.NewVecDense(n, y)
	grad := mat.NewVecDense(n, nil)
	t := 1.0

	for k := 0; k < maxIterations; k++ {
		if k%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		grad.MulVec(p.sigma, yVec)
		grad.ScaleVec(2*gamma, grad)
		grad.SubVec(grad, p.mu)

		for i := range next {
			next[i] = y[i] - step*grad.AtVec(i)
		}
		projectOntoSimplex(next)

		// Distance of the projected gradient step from y; zero exactly at the optimum.
		residual := maxAbsDiff(next, y)
		if residual < tolerance {
			return append([]float64(nil), next...), nil
		}

		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		momentum := (t - 1) / tNext
		restart := 0.0
		for i := range next {
			restart += (y[i] - next[i]) * (next[i] - w[i])
		}
		for i := range y {
			if restart > 0 {
				y[i] = next[i]
			} else {
				y[i] = next[i] + momentum*(next[i]-w[i])
			}
		}
		if restart > 0 {
			tNext = 1
		}
		copy(w, next)
		t = tNext
	}

	return nil, fmt.Errorf("%w after %d iterations (gamma %g)", ErrNotConverged, maxIterations, gamma)
}

// bestReturnCorner puts all weight on the highest mean; the optimum when Σ is zero.
func (p *meanVarianceProblem) bestReturnCorner() []float64 {
	w := make([]float64, p.n)
	w[floats.MaxIdx(p.mu.RawVector().Data)] = 1
	return w
}

// variance returns wᵀΣw.
func (p *meanVarianceProblem) variance(w []float64) float64 {
	v := mat.NewVecDense(p.n, w)
	return mat.Inner(v, p.sigma, v)
}

// expectedReturn returns wᵀμ.
func (p *meanVarianceProblem) expectedReturn(w []float64) float64 {
	return floats.Dot(w, p.mu.RawVector().Data)
}

// projectOntoSimplex projects v in place onto {x : x ≥ 0, Σx = 1} with the sort based
// algorithm of Duchi et al. (2008).
func projectOntoSimplex(v []float64) {
	n := len(v)
	if n == 0 {
		return
	}
	u := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(u)))

	var cumSum, theta float64
	for j := 0; j < n; j++ {
		cumSum += u[j]
		if candidate := (cumSum - 1) / float64(j+1); u[j]-candidate > 0 {
			theta = candidate
		}
	}
	for i := range v {
		v[i] = math.Max(v[i]-theta, 0)
	}
}

func maxAbsDiff(a, b []float64) float64 {
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finiteSym(m *mat.SymDense) bool {
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
