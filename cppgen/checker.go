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
	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

// VecChecker replays a node group without emitting code and decides
// whether the vector kernel can lower every operation. The verdict is
// monotonic: once any operation falls outside the vector tables or the
// addressing rules, the group stays scalar. Run it against a clone of the
// group's argument registry so a rejected dry run leaves no trace.
type VecChecker struct {
	*CppKernel
	simdVec bool
}

var _ ir.OpsHandler = (*VecChecker)(nil)

// NewVecChecker builds a checker. args should be a clone.
func NewVecChecker(s *Session, args *KernelArgs) *VecChecker {
	return &VecChecker{CppKernel: NewCppKernel(s, args), simdVec: true}
}

// Simd returns the verdict after replay.
func (c *VecChecker) Simd() bool { return c.simdVec }

func (c *VecChecker) disable() { c.simdVec = false }

// legalAccess reports whether an index is vectorizable against the
// innermost induction variable: lane-invariant or contiguous unit stride.
func (c *VecChecker) legalAccess(index expr.Expr) bool {
	if len(c.itervars) == 0 {
		return false
	}
	iv := c.itervars[len(c.itervars)-1]
	return expr.IsInvariant(iv, index) || expr.IsSingleStep(iv, index)
}

func (c *VecChecker) Load(name string, index expr.Expr) (ir.Value, error) {
	dtype := c.session.DTypeOf(name)
	if dtype != ir.Float32 && dtype != ir.Bool && dtype != ir.Uint8 {
		c.disable()
	}
	if !c.legalAccess(index) {
		c.disable()
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Store(name string, index expr.Expr, value ir.Value, mode ir.StoreMode) error {
	if c.session.DTypeOf(name) != ir.Float32 {
		c.disable()
	}
	if mode != ir.StorePlain {
		c.disable()
	}
	if !c.legalAccess(index) {
		c.disable()
	}
	return nil
}

func (c *VecChecker) Reduction(name string, dtype, srcDtype ir.DType, kind ir.ReductionKind, index expr.Expr, value ir.Value) error {
	if dtype != ir.Float32 || srcDtype != ir.Float32 {
		c.disable()
	}
	switch kind {
	case ir.ReduceSum, ir.ReduceMin, ir.ReduceMax:
	default:
		c.disable()
	}
	return nil
}

func (c *VecChecker) Constant(val float64, dtype ir.DType) (ir.Value, error) {
	if dtype != ir.Float32 && dtype != ir.Int32 {
		c.disable()
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) IndexExpr(e expr.Expr, dtype ir.DType) (ir.Value, error) {
	c.disable()
	return c.cse.Newvar(), nil
}

func (c *VecChecker) IndirectIndexing(index ir.Value) (expr.Expr, error) {
	c.disable()
	return expr.Symbol(index), nil
}

// Masked itself has a vector rendering through blendv, so the mask form
// does not disqualify the group; the body is replayed so the operations
// inside it are judged individually.
func (c *VecChecker) Masked(mask ir.Value, body func() (ir.Value, error), other float64) (ir.Value, error) {
	if _, err := body(); err != nil {
		return "", err
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) ToDtype(x ir.Value, dtype ir.DType) (ir.Value, error) {
	if dtype != ir.Bool {
		c.disable()
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Rand(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	c.disable()
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Randn(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	c.disable()
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Unary(op ir.OpKind, x ir.Value) (ir.Value, error) {
	// sign has a multi-statement lowering outside the table.
	if _, ok := vecRules.unary[op]; !ok && op != ir.OpSign {
		c.disable()
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Binary(op ir.OpKind, a, b ir.Value) (ir.Value, error) {
	if _, ok := vecRules.binary[op]; !ok {
		c.disable()
	}
	return c.cse.Newvar(), nil
}

func (c *VecChecker) Where(cond, a, b ir.Value) (ir.Value, error) {
	return c.cse.Newvar(), nil
}
