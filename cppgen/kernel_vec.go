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

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

// CppVecKernel emits the vector-object loop body for the factor-aligned
// main loop of a split nest. One iteration of its innermost loop covers
// nelements lanes; indices are rescaled accordingly. Operations outside
// the vector tables fail with ErrUnsupportedOp so callers can fall back
// to the scalar kernel.
type CppVecKernel struct {
	*CppKernel
	nelements       int64
	reductionOmpDec map[ir.ReductionKind]bool
	varVecBufMap    map[string]string
}

var _ ir.OpsHandler = (*CppVecKernel)(nil)

// NewCppVecKernel builds an unbound vector kernel over nelements lanes.
func NewCppVecKernel(s *Session, args *KernelArgs, nelements int64) *CppVecKernel {
	k := &CppVecKernel{
		CppKernel:       NewCppKernel(s, args),
		nelements:       nelements,
		reductionOmpDec: map[ir.ReductionKind]bool{},
		varVecBufMap:    map[string]string{},
	}
	k.rules = vecRules
	return k
}

// TransformIndex rescales the innermost induction variable to lane units:
// one main-loop iteration advances nelements elements.
func (k *CppVecKernel) TransformIndex(index expr.Expr) expr.Expr {
	expanded := expr.Expand(index)
	if len(k.itervars) == 0 {
		return expanded
	}
	iv := k.itervars[len(k.itervars)-1]
	return expr.Expand(expr.Subs(expanded, map[expr.Symbol]expr.Expr{
		iv: expr.Prod(iv, expr.Integer(k.nelements)),
	}))
}

func (k *CppVecKernel) Load(name string, index expr.Expr) (ir.Value, error) {
	if err := k.opState("load"); err != nil {
		return "", err
	}
	if v, ok := k.cse.GetStore(name); ok {
		return v, nil
	}
	dtype := k.session.DTypeOf(name)
	v := k.args.Input(name)
	var line string
	switch {
	case dtype == ir.Bool || dtype == ir.Uint8:
		// Flags widen to float lanes through a per-source scratch array.
		buf, ok := k.varVecBufMap[v]
		if !ok {
			buf = fmt.Sprintf("g_tmp_buffer_%s", v)
			k.varVecBufMap[v] = buf
			k.loads.Writeline(fmt.Sprintf("float %s[%d] = {0};", buf, k.nelements))
		}
		idx := k.TransformIndex(index)
		k.loads.Writeline(fmt.Sprintf("flag_to_float(%s + %s, %s, %d);", v, CExpr(idx), buf, k.nelements))
		line = fmt.Sprintf("%s::loadu(%s)", vecType(ir.Float32), buf)
	case dtype != ir.Float32:
		return "", fmt.Errorf("%w: vector load of %s", ErrUnsupportedOp, dtype)
	case expr.IsInvariant(k.itervars[len(k.itervars)-1], index):
		line = fmt.Sprintf("%s(%s[%s])", vecType(ir.Float32), v, CExpr(index))
	default:
		idx := k.TransformIndex(index)
		line = fmt.Sprintf("%s::loadu(%s + %s)", vecType(ir.Float32), v, CExpr(idx))
	}
	return k.cse.Generate(k.loads, line, true), nil
}

func (k *CppVecKernel) Store(name string, index expr.Expr, value ir.Value, mode ir.StoreMode) error {
	if err := k.opState("store"); err != nil {
		return err
	}
	if !k.session.KnownBuffer(name) {
		return fmt.Errorf("%w: store to undeclared buffer %q", ErrKernelState, name)
	}
	if mode != ir.StorePlain {
		return fmt.Errorf("%w: vector store mode %d", ErrUnsupportedOp, mode)
	}
	out := k.args.Output(name)
	transformed := k.TransformIndex(index)
	if expr.Equal(transformed, expr.Expand(index)) {
		return fmt.Errorf("%w: store index %s invariant in vector lane", ErrIllegalAccess, CExpr(index))
	}
	k.stores.Writeline(name, fmt.Sprintf("%s.store(%s + %s);", value, out, CExpr(transformed)))
	k.cse.PutStore(name, value)
	return nil
}

func (k *CppVecKernel) Reduction(name string, dtype, srcDtype ir.DType, kind ir.ReductionKind, index expr.Expr, value ir.Value) error {
	if err := k.opState("reduction"); err != nil {
		return err
	}
	if dtype != ir.Float32 || srcDtype != ir.Float32 {
		return fmt.Errorf("%w: vector reduction over %s", ErrUnsupportedOp, dtype)
	}
	if kind != ir.ReduceSum && kind != ir.ReduceMin && kind != ir.ReduceMax {
		return fmt.Errorf("%w: vector reduction %q", ErrUnsupportedOp, kind)
	}

	vec := vecType(dtype)
	combineFn := "kvec::minimum"
	if kind == ir.ReduceMax {
		combineFn = "kvec::maximum"
	}
	tmpvar := k.cse.Generate(k.loads, fmt.Sprintf("reduction %s %s", name, CExpr(index)), false)
	tmpvarVec := ir.Value(fmt.Sprintf("%s_vec", tmpvar))
	if _, seen := k.reductionVarMap[tmpvarVec]; seen {
		return nil
	}
	k.reductionVarMap[tmpvarVec] = kind

	// The scalar shadow is the value the tail loop and the epilogue agree
	// on; the vector accumulator folds into it after the main loop.
	k.reductionPrefix.Writeline(fmt.Sprintf("%s %s = %s;", CppType(dtype), tmpvar, reductionInit(kind, dtype)))
	k.reductionPrefix.Writeline(fmt.Sprintf("%s %s = %s(%s);", vec, tmpvarVec, vec, tmpvar))
	if !k.reductionOmpDec[kind] {
		k.reductionOmpDec[kind] = true
		combine := "omp_out += omp_in"
		if kind != ir.ReduceSum {
			combine = fmt.Sprintf("omp_out = %s(omp_out, omp_in)", combineFn)
		}
		k.reductionPrefix.Writeline(fmt.Sprintf(
			"#pragma omp declare reduction(%s:%s:%s) initializer(omp_priv={%s})",
			rtypeToOmp[kind], vec, combine, reductionInit(kind, dtype)))
	}

	combineVec, err := reductionCombineVec(kind, string(tmpvarVec), string(value))
	if err != nil {
		return err
	}
	k.stores.Writeline("", combineVec+";")

	fold := fmt.Sprintf("kvec::vec_reduce_all<float>([](%s& x, %s& y) {return x + y;}, %s)", vec, vec, tmpvarVec)
	if kind != ir.ReduceSum {
		fold = fmt.Sprintf("kvec::vec_reduce_all<float>([](%s& x, %s& y) {return %s(x, y);}, %s)", vec, vec, combineFn, tmpvarVec)
	}
	// The final output store stays with the scalar tail kernel.
	k.reductionSuffix.Writeline(name,
		fmt.Sprintf("%s;", reductionCombine(kind, string(tmpvar), fold)))
	k.cse.PutStore(name, tmpvar)
	return nil
}

func (k *CppVecKernel) IndexExpr(e expr.Expr, dtype ir.DType) (ir.Value, error) {
	return "", fmt.Errorf("%w: vector index_expr", ErrUnsupportedOp)
}

func (k *CppVecKernel) IndirectIndexing(index ir.Value) (expr.Expr, error) {
	return nil, fmt.Errorf("%w: vector indirect indexing", ErrUnsupportedOp)
}

func (k *CppVecKernel) Masked(mask ir.Value, body func() (ir.Value, error), other float64) (ir.Value, error) {
	return "", fmt.Errorf("%w: vector masked", ErrUnsupportedOp)
}

func (k *CppVecKernel) ToDtype(x ir.Value, dtype ir.DType) (ir.Value, error) {
	// A mask of float lanes is already the vector-side representation of
	// a bool; every other conversion stays scalar.
	if dtype == ir.Bool {
		return x, nil
	}
	return "", fmt.Errorf("%w: vector conversion to %s", ErrUnsupportedOp, dtype)
}

func (k *CppVecKernel) Unary(op ir.OpKind, x ir.Value) (ir.Value, error) {
	if op == ir.OpSign {
		return k.lowerSignVec(x), nil
	}
	return k.CppKernel.Unary(op, x)
}

// lowerSignVec is the vector twin of the scalar three-statement sign
// lowering: blendv builds the positive and negative indicator vectors and
// their difference is the result.
func (k *CppVecKernel) lowerSignVec(x ir.Value) ir.Value {
	code := &IndentedBuffer{}
	left := k.cse.Newvar()
	right := k.cse.Newvar()
	result := k.cse.Newvar()
	t := fmt.Sprintf("decltype(%s)", x)
	zero := fmt.Sprintf("%s(0)", t)
	one := fmt.Sprintf("%s(1)", t)
	code.Writeline(fmt.Sprintf("auto %s = %s::blendv(%s, %s, %s < %s);", left, t, zero, one, zero, x))
	code.Writeline(fmt.Sprintf("auto %s = %s::blendv(%s, %s, %s < %s);", right, t, zero, one, x, zero))
	code.Writeline(fmt.Sprintf("auto %s = %s - %s;", result, left, right))
	k.compute.Splice(code)
	return result
}

func (k *CppVecKernel) Rand(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	return "", fmt.Errorf("%w: vector rand", ErrUnsupportedOp)
}

func (k *CppVecKernel) Randn(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	return "", fmt.Errorf("%w: vector randn", ErrUnsupportedOp)
}
