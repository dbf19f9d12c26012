// Copyright 2025 go-kernelgen Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cppgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

// LoopLevel is one loop of a nest. Levels live in the nest's arena and
// refer to each other by index, so splitting a level clones its subtree
// without aliasing surprises.
type LoopLevel struct {
	Var    expr.Symbol
	Size   int64
	Offset int64
	Steps  int64

	// Parallel is the number of levels the omp-for at this level covers;
	// values above 1 emit a collapse clause.
	Parallel int
	// SimdVec marks a level whose body is a vector kernel; it carries no
	// pragma because the vector objects are explicit in the body.
	SimdVec bool
	// Collapsed levels are covered by an enclosing collapse clause and
	// emit no pragma of their own.
	Collapsed bool

	// Reductions maps accumulator names to their kind for levels inside
	// the reduction part of the iteration space.
	Reductions map[ir.Value]ir.ReductionKind

	parent int
	inner  []int
	kernel loopKernel
}

func (l *LoopLevel) isReduction() bool { return len(l.Reductions) > 0 }

// LoopNest is the loop structure of one kernel group: an arena of levels,
// the root level indices, and the kernel whose extents built it. A nest
// with no levels renders the kernel body bare.
type LoopNest struct {
	session *Session
	levels  []LoopLevel
	roots   []int
	kernel  loopKernel
}

// BuildLoopNest builds the canonical one-loop-per-extent nest for a bound
// kernel. Levels at or past the reduction depth carry the kernel's
// reduction accumulators.
func BuildLoopNest(k loopKernel) (*LoopNest, error) {
	itervars := k.itervarsOf()
	ranges := k.callRangesOf()
	if len(itervars) != len(ranges) {
		return nil, fmt.Errorf("%w: kernel not bound", ErrKernelState)
	}
	n := &LoopNest{session: sessionOf(k), kernel: k}
	parent := -1
	for i, v := range itervars {
		lv := LoopLevel{Var: v, Size: ranges[i], Steps: 1, parent: parent}
		if i >= k.reductionDepthOf() {
			lv.Reductions = copyReductions(k.reductionVars())
		}
		n.levels = append(n.levels, lv)
		if parent >= 0 {
			n.levels[parent].inner = append(n.levels[parent].inner, i)
		} else {
			n.roots = append(n.roots, i)
		}
		parent = i
	}
	if parent >= 0 {
		n.levels[parent].kernel = k
	}
	return n, nil
}

func sessionOf(k loopKernel) *Session {
	switch kk := k.(type) {
	case *CppKernel:
		return kk.session
	case *CppVecKernel:
		return kk.session
	}
	return nil
}

func copyReductions(m map[ir.Value]ir.ReductionKind) map[ir.Value]ir.ReductionKind {
	c := make(map[ir.Value]ir.ReductionKind, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// GetLoopsAt returns the level indices at the given depth.
func (n *LoopNest) GetLoopsAt(depth int) ([]int, error) {
	loops := n.roots
	for d := 0; d < depth; d++ {
		if len(loops) == 0 {
			return nil, fmt.Errorf("%w: depth %d", ErrSplitDepth, depth)
		}
		loops = n.levels[loops[0]].inner
	}
	if len(loops) == 0 {
		return nil, fmt.Errorf("%w: depth %d", ErrSplitDepth, depth)
	}
	return loops, nil
}

// MaxParallelDepth is the length of the leading single-child chain whose
// levels agree on being reduction or non-reduction. An omp-for collapse
// clause may cover at most this many levels.
func (n *LoopNest) MaxParallelDepth() int {
	depth := 0
	loops := n.roots
	if len(loops) == 0 {
		return 0
	}
	isRed := n.levels[loops[0]].isReduction()
	for len(loops) == 1 && n.levels[loops[0]].isReduction() == isRed {
		depth++
		loops = n.levels[loops[0]].inner
	}
	return depth
}

// IsReductionOnly reports whether the outermost level already reduces,
// which changes where the parallel region opens.
func (n *LoopNest) IsReductionOnly() bool {
	return len(n.roots) > 0 && n.levels[n.roots[0]].isReduction()
}

// MarkParallel puts an omp-for covering parDepth levels on the outermost
// loop and marks the covered inner levels collapsed.
func (n *LoopNest) MarkParallel(parDepth int) error {
	if parDepth > n.MaxParallelDepth() {
		return fmt.Errorf("%w: parallel depth %d > %d", ErrSplitDepth, parDepth, n.MaxParallelDepth())
	}
	if parDepth == 0 || len(n.roots) == 0 {
		return nil
	}
	n.levels[n.roots[0]].Parallel = parDepth
	loops := n.roots
	for i := 1; i < parDepth; i++ {
		loops = n.levels[loops[0]].inner
		n.levels[loops[0]].Collapsed = true
	}
	return nil
}

// SplitWithTiling splits the loop at depth into a main loop covering the
// factor-aligned head of the range and a tail loop covering the remainder.
// The main loop's body sees one iteration per factor-wide tile; index
// transformation inside the vector kernel accounts for the scaling. Both
// halves inherit parallelism and reduction metadata and clone the subtree
// below the split.
func (n *LoopNest) SplitWithTiling(depth int, factor int64) (int, int, error) {
	loops, err := n.GetLoopsAt(depth)
	if err != nil {
		return 0, 0, err
	}
	src := loops[0]
	orig := n.levels[src]

	mainSize := orig.Size / factor
	tailOffset := mainSize * factor

	main := n.appendLevel(LoopLevel{
		Var:        orig.Var,
		Size:       mainSize,
		Steps:      1,
		Parallel:   orig.Parallel,
		SimdVec:    orig.SimdVec,
		Reductions: copyReductions(orig.Reductions),
		parent:     orig.parent,
		kernel:     orig.kernel,
	})
	for _, child := range orig.inner {
		n.cloneSubtree(child, main)
	}
	tail := n.appendLevel(LoopLevel{
		Var:        orig.Var,
		Size:       orig.Size,
		Offset:     tailOffset,
		Steps:      1,
		Parallel:   orig.Parallel,
		Reductions: copyReductions(orig.Reductions),
		parent:     orig.parent,
		kernel:     orig.kernel,
	})
	for _, child := range orig.inner {
		n.cloneSubtree(child, tail)
	}

	if orig.parent >= 0 {
		n.levels[orig.parent].inner = []int{main, tail}
	} else {
		n.roots = []int{main, tail}
	}
	return main, tail, nil
}

func (n *LoopNest) appendLevel(lv LoopLevel) int {
	n.levels = append(n.levels, lv)
	return len(n.levels) - 1
}

func (n *LoopNest) cloneSubtree(src, parent int) int {
	orig := n.levels[src]
	idx := n.appendLevel(LoopLevel{
		Var:        orig.Var,
		Size:       orig.Size,
		Offset:     orig.Offset,
		Steps:      orig.Steps,
		Parallel:   orig.Parallel,
		SimdVec:    orig.SimdVec,
		Collapsed:  orig.Collapsed,
		Reductions: copyReductions(orig.Reductions),
		parent:     parent,
		kernel:     orig.kernel,
	})
	n.levels[parent].inner = append(n.levels[parent].inner, idx)
	for _, child := range orig.inner {
		n.cloneSubtree(child, idx)
	}
	return idx
}

// SetKernelAt walks from the level at idx down its single-child chain and
// installs k as the leaf's body. Reduction levels on the path back to the
// root merge in k's accumulator map; an ancestor shared by a split main and
// tail loop ends up naming both kernels' variables in its pragma.
func (n *LoopNest) SetKernelAt(idx int, k loopKernel) error {
	for len(n.levels[idx].inner) > 0 {
		if len(n.levels[idx].inner) != 1 {
			return fmt.Errorf("%w: kernel below a multi-loop level", ErrSplitDepth)
		}
		idx = n.levels[idx].inner[0]
	}
	n.levels[idx].kernel = k
	if !n.levels[idx].isReduction() {
		return nil
	}
	for at := idx; at >= 0 && n.levels[at].isReduction(); at = n.levels[at].parent {
		for v, kind := range k.reductionVars() {
			n.levels[at].Reductions[v] = kind
		}
	}
	return nil
}

// kernelAt returns the body of the leaf under idx.
func (n *LoopNest) kernelAt(idx int) loopKernel {
	for len(n.levels[idx].inner) > 0 {
		idx = n.levels[idx].inner[0]
	}
	return n.levels[idx].kernel
}

// kernelsAt returns the distinct leaf kernels under the given levels, in
// first-appearance order.
func (n *LoopNest) kernelsAt(idxs []int) []loopKernel {
	var out []loopKernel
	var walk func(idx int)
	walk = func(idx int) {
		lv := &n.levels[idx]
		if len(lv.inner) == 0 {
			for _, k := range out {
				if k == lv.kernel {
					return
				}
			}
			out = append(out, lv.kernel)
			return
		}
		for _, c := range lv.inner {
			walk(c)
		}
	}
	for _, i := range idxs {
		walk(i)
	}
	return out
}

// lines renders the pragma (if any) and for-header of one level.
func (n *LoopNest) lines(idx int) []string {
	lv := &n.levels[idx]
	var reduction string
	if lv.isReduction() {
		vars := make([]string, 0, len(lv.Reductions))
		for v := range lv.Reductions {
			vars = append(vars, string(v))
		}
		sort.Strings(vars)
		parts := make([]string, 0, len(vars))
		for _, v := range vars {
			parts = append(parts, fmt.Sprintf("reduction(%s:%s)", rtypeToOmp[lv.Reductions[ir.Value(v)]], v))
		}
		reduction = " " + strings.Join(parts, " ")
	}
	var pragma string
	switch {
	case lv.Parallel > 0:
		pragma = "#pragma omp for" + reduction
		if lv.Parallel > 1 {
			pragma += fmt.Sprintf(" collapse(%d)", lv.Parallel)
		}
	case lv.SimdVec:
		// Vector objects are explicit in the body; no pragma needed.
	case !lv.isReduction() && n.session.Cfg.GCCVectorizeHint:
		pragma = "#pragma GCC ivdep"
	}
	header := fmt.Sprintf("for(%s %s=%d; %s<%d; %s+=%d)",
		IndexType, lv.Var, lv.Offset, lv.Var, lv.Size, lv.Var, lv.Steps)
	if lv.Collapsed || pragma == "" {
		return []string{header}
	}
	return []string{pragma, header}
}
