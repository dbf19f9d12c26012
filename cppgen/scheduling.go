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
	"errors"
	"fmt"

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

// nodeKernel is what node replay needs from a handler: the ops vocabulary
// plus iteration-space binding and the reduction-epilogue redirect.
type nodeKernel interface {
	ir.OpsHandler
	SetRanges(lengths, reductionLengths []int64) ([]expr.Symbol, []expr.Symbol, error)
	WithSuffix(f func() error) error
}

// Scheduling drives codegen for fused node groups: it replays each group
// into a scalar kernel, consults the legality checker for a vector twin,
// and finalizes the result into the current kernel group. Flush closes the
// generated function and starts the next one.
type Scheduling struct {
	session *Session
	group   *KernelGroup
}

// NewScheduling builds a scheduler over a fresh kernel group.
func NewScheduling(s *Session) *Scheduling {
	return &Scheduling{session: s, group: NewKernelGroup(s)}
}

// Group exposes the open kernel group.
func (s *Scheduling) Group() *KernelGroup { return s.group }

// runNodes binds k to the widest group among nodes and replays every node.
// Nodes over the full space run in the loop body; pointwise nodes over the
// flattened space run with all induction variables; pointwise nodes over
// only the outer space run in the reduction epilogue.
func runNodes(k nodeKernel, nodes []ir.Node, g ir.Group) error {
	vars, rvars, err := k.SetRanges(g.Pointwise, g.Reduction)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		ng := n.Group()
		switch {
		case ng.Equal(g):
			err = n.Run(k, vars, rvars)
		case len(ng.Reduction) == 0 && eqInt64(ng.Pointwise, g.Flatten()):
			all := make([]expr.Symbol, 0, len(vars)+len(rvars))
			all = append(all, vars...)
			all = append(all, rvars...)
			err = n.Run(k, all, nil)
		case len(ng.Reduction) == 0 && eqInt64(ng.Pointwise, g.Pointwise):
			err = k.WithSuffix(func() error { return n.Run(k, vars, nil) })
		default:
			err = fmt.Errorf("%w: node group %v under %v", ErrBindingMismatch, ng, g)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// CanVec replays nodes against the legality checker and reports whether
// every operation has a vector lowering with legal addressing. Without a
// vector unit the answer is always no.
func (s *Scheduling) CanVec(nodes []ir.Node) bool {
	if s.session.ISA == nil {
		return false
	}
	checker := NewVecChecker(s.session, s.group.Args.Clone())
	if err := runNodes(checker, nodes, ir.MaxGroup(nodes)); err != nil {
		return false
	}
	return checker.Simd()
}

// CodegenNodes renders one fused node group into the open kernel group.
// When the checker approves, a vector kernel is built alongside the scalar
// one and the pair is finalized as a split nest; if vector emission still
// trips over an unsupported form, the scalar kernel alone is kept.
func (s *Scheduling) CodegenNodes(nodes []ir.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	g := ir.MaxGroup(nodes)
	scalar := s.group.NewKernel()
	if err := runNodes(scalar, nodes, g); err != nil {
		return err
	}
	if s.CanVec(nodes) {
		vec := s.group.NewVecKernel(int64(s.session.ISA.Nelements()))
		err := runNodes(vec, nodes, g)
		if err == nil {
			return s.group.FinalizeKernel(NewCppKernelProxy(scalar, vec))
		}
		if !errors.Is(err, ErrUnsupportedOp) && !errors.Is(err, ErrIllegalAccess) {
			return err
		}
	}
	return s.group.FinalizeKernel(scalar)
}

// Flush closes the generated function, hands it to the wrapper and opens a
// fresh kernel group.
func (s *Scheduling) Flush(w Wrapper) {
	s.group.CodegenDefineAndCall(w)
	s.group = NewKernelGroup(s.session)
}
