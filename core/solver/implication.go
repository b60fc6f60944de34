package solver

// AddImplication links a continuous column to a binary one so that x may be
// positive only when b is 1: x - bigM*b <= 0.
func AddImplication(s Solver, x, b Index, bigM float64) error {
	return s.AddLeqWeightedSumConstraint(map[Index]float64{x: 1, b: -bigM}, 0)
}

// AddSumImplication allows the columns in xs to carry a positive total only
// when b is 1: sum(xs) - bigM*b <= 0.
func AddSumImplication(s Solver, xs []Index, b Index, bigM float64) error {
	w := make(map[Index]float64, len(xs)+1)
	for _, x := range xs {
		w[x] += 1
	}
	w[b] -= bigM
	return s.AddLeqWeightedSumConstraint(w, 0)
}

// Range returns the n consecutive indices starting at first.
func Range(first Index, n int) []Index {
	out := make([]Index, n)
	for i := range out {
		out[i] = first + Index(i)
	}
	return out
}
