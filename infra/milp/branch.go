package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/pvopt/core/solver"
)

type node struct {
	lb, ub []float64
	bound  float64 // objective of the parent relaxation
	depth  int
}

type search struct {
	c        []float64
	incumb   []float64
	incObj   float64
	pruned   float64 // lowest relaxation bound discarded against the incumbent
	target   float64
	intTol   float64
	deadline time.Time
	round    *rounder
}

// Solve runs branch and bound. The context and the timeout are checked
// between nodes; a solve interrupted with an incumbent reports Suboptimal.
func (e *Engine) Solve(ctx context.Context) (solver.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.freed {
		return solver.Error, solver.ErrFreed
	}
	start := time.Now()
	e.invalidate()

	s := &search{
		c:      make([]float64, e.ncols),
		incObj: math.Inf(1),
		pruned: math.Inf(1),
		target: e.gap,
		intTol: e.cfg.IntegralityTolerance,
		round:  newRounder(e.rows, e.binary, e.cfg.IntegralityTolerance),
	}
	sign := 1.0
	if e.direction == solver.Max {
		sign = -1
	}
	for j, v := range e.obj {
		s.c[j] = sign * v
	}
	if e.timeout > 0 {
		s.deadline = start.Add(time.Duration(e.timeout) * time.Second)
	}

	status, err := e.branch(ctx, s)
	e.elapsed = time.Since(start).Seconds()
	e.status = status
	e.solved = true
	if err != nil {
		e.status = solver.Error
		return solver.Error, err
	}
	if status.HasSolution() {
		e.solution = s.incumb
		e.value = sign * s.incObj
	}
	return status, nil
}

// next removes the node to explore: the deepest one while no incumbent
// exists, the one with the lowest bound afterwards.
func (s *search) next(open []node) (node, []node) {
	at := len(open) - 1
	if s.incumb != nil {
		for i, nd := range open {
			best := open[at]
			if nd.bound < best.bound || (nd.bound == best.bound && nd.depth > best.depth) {
				at = i
			}
		}
	}
	nd := open[at]
	open[at] = open[len(open)-1]
	return nd, open[:len(open)-1]
}

func (s *search) offer(x []float64, obj float64) {
	if obj < s.incObj {
		s.incumb, s.incObj = x, obj
	}
}

func (e *Engine) branch(ctx context.Context, s *search) (solver.Status, error) {
	root := node{
		lb:    append([]float64(nil), e.lb...),
		ub:    append([]float64(nil), e.ub...),
		bound: math.Inf(-1),
	}
	open := []node{root}
	e.nodes = 0
	interrupted := false
	for len(open) > 0 {
		if e.nodes >= e.cfg.MaxNodes || ctx.Err() != nil ||
			(!s.deadline.IsZero() && time.Now().After(s.deadline)) {
			interrupted = true
			break
		}
		var nd node
		nd, open = s.next(open)
		e.nodes++

		if s.incumb != nil && nd.bound >= s.incObj-s.tolerance() {
			s.pruned = math.Min(s.pruned, nd.bound)
			continue
		}
		x, obj, err := e.solveNode(s.c, nd)
		switch {
		case errors.Is(err, errInfeasible):
			continue
		case errors.Is(err, errUnbounded):
			return solver.Unbounded, nil
		case err != nil:
			return solver.Error, err
		}
		if s.incumb != nil && obj >= s.incObj-s.tolerance() {
			s.pruned = math.Min(s.pruned, obj)
			continue
		}

		j := e.mostFractional(x, s.intTol)
		if j < 0 {
			e.snap(x)
			s.offer(x, obj)
			continue
		}
		if hx, hobj, ok := e.dive(s, nd, x); ok {
			s.offer(hx, hobj)
			if hobj <= obj+s.tolerance() {
				// The rounded point meets the node bound: nothing below
				// this node can do better.
				s.pruned = math.Min(s.pruned, obj)
				continue
			}
		}

		down := node{lb: nd.lb, ub: append([]float64(nil), nd.ub...), bound: obj, depth: nd.depth + 1}
		down.ub[j] = 0
		up := node{lb: append([]float64(nil), nd.lb...), ub: nd.ub, bound: obj, depth: nd.depth + 1}
		up.lb[j] = 1
		open = append(open, down, up)
	}

	if s.incumb == nil {
		if interrupted {
			return solver.Timeout, nil
		}
		return solver.Infeasible, nil
	}
	bound := math.Min(s.incObj, s.pruned)
	for _, nd := range open {
		bound = math.Min(bound, nd.bound)
	}
	e.achieved = s.relativeGap(bound)
	if interrupted && e.achieved > s.target {
		return solver.Suboptimal, nil
	}
	return solver.Optimal, nil
}

// dive rounds the binaries of the node relaxation x, fixes them and solves
// the remaining LP. It reports false when the rounded point is infeasible.
func (e *Engine) dive(s *search, nd node, x []float64) ([]float64, float64, bool) {
	r := s.round.round(x)
	lb := append([]float64(nil), nd.lb...)
	ub := append([]float64(nil), nd.ub...)
	for j, bin := range e.binary {
		if !bin {
			continue
		}
		v := math.Max(nd.lb[j], math.Min(nd.ub[j], r[j]))
		lb[j], ub[j] = v, v
	}
	hx, hobj, err := e.solveNode(s.c, node{lb: lb, ub: ub})
	if err != nil {
		return nil, 0, false
	}
	e.snap(hx)
	return hx, hobj, true
}

// snap rounds binary columns that are integral within tolerance.
func (e *Engine) snap(x []float64) {
	for k, bin := range e.binary {
		if bin {
			x[k] = math.Round(x[k])
		}
	}
}

func (e *Engine) solveNode(c []float64, nd node) ([]float64, float64, error) {
	rel, err := e.relax(c, nd.lb, nd.ub)
	if err != nil {
		return nil, 0, err
	}
	obj, y, err := solveStandard(rel.lp, e.cfg.Tolerance)
	if err != nil {
		if errors.Is(err, errIterations) {
			return nil, 0, fmt.Errorf("%w after %d columns", err, len(rel.lp.c))
		}
		return nil, 0, err
	}
	return rel.expand(y), obj + rel.objConst, nil
}

// mostFractional returns the binary column farthest from integrality, or -1.
func (e *Engine) mostFractional(x []float64, tol float64) int {
	best, at := tol, -1
	for j, bin := range e.binary {
		if !bin {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > best {
			best, at = d, j
		}
	}
	return at
}

// tolerance is the absolute improvement a node must promise over the incumbent.
func (s *search) tolerance() float64 {
	return math.Max(1e-9, s.target*math.Max(1, math.Abs(s.incObj)))
}

// relativeGap is the distance between the incumbent and bound, relative to
// the incumbent magnitude.
func (s *search) relativeGap(bound float64) float64 {
	if math.IsInf(bound, -1) {
		return math.Inf(1)
	}
	return math.Max(0, s.incObj-bound) / math.Max(1, math.Abs(s.incObj))
}
