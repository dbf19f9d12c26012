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
	"strings"
	"testing"

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

func newVecKernel(t *testing.T, s *Session, lengths, rlengths []int64) (*CppVecKernel, []expr.Symbol, []expr.Symbol) {
	t.Helper()
	k := NewCppVecKernel(s, NewKernelArgs(), 8)
	vars, rvars, err := k.SetRanges(lengths, rlengths)
	if err != nil {
		t.Fatal(err)
	}
	return k, vars, rvars
}

func TestVecKernelTransformIndex(t *testing.T) {
	s := newTestSession(1)
	k, vars, rvars := newVecKernel(t, s, []int64{4}, []int64{16})
	idx := expr.Sum(expr.Prod(expr.Integer(16), vars[0]), rvars[0])
	if got, want := CExpr(k.TransformIndex(idx)), "16*i0 + 8*i1"; got != want {
		t.Errorf("TransformIndex = %q, want %q", got, want)
	}
}

func TestVecKernelLoadContiguous(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("x", ir.Float32)
	k, vars, _ := newVecKernel(t, s, []int64{64}, nil)
	if _, err := k.Load("x", vars[0]); err != nil {
		t.Fatal(err)
	}
	if got := k.loads.String(); !strings.Contains(got, "kvec::Vec<float>::loadu(in_ptr0 + 8*i0)") {
		t.Errorf("contiguous load wrong:\n%s", got)
	}
}

func TestVecKernelLoadBroadcast(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("bias", ir.Float32)
	k, vars, _ := newVecKernel(t, s, []int64{4, 64}, nil)
	if _, err := k.Load("bias", vars[0]); err != nil {
		t.Fatal(err)
	}
	if got := k.loads.String(); !strings.Contains(got, "kvec::Vec<float>(in_ptr0[i0])") {
		t.Errorf("lane-invariant load must broadcast:\n%s", got)
	}
}

func TestVecKernelLoadFlagScratch(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("mask", ir.Bool)
	k, vars, _ := newVecKernel(t, s, []int64{64}, nil)
	if _, err := k.Load("mask", vars[0]); err != nil {
		t.Fatal(err)
	}
	got := k.loads.String()
	if !strings.Contains(got, "float g_tmp_buffer_in_ptr0[8] = {0};") {
		t.Errorf("scratch declaration missing:\n%s", got)
	}
	if !strings.Contains(got, "flag_to_float(in_ptr0 + 8*i0, g_tmp_buffer_in_ptr0, 8);") {
		t.Errorf("flag widening missing:\n%s", got)
	}
	if !strings.Contains(got, "kvec::Vec<float>::loadu(g_tmp_buffer_in_ptr0)") {
		t.Errorf("scratch load missing:\n%s", got)
	}
}

func TestVecKernelLoadUnsupportedDtype(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("d", ir.Float64)
	k, vars, _ := newVecKernel(t, s, []int64{64}, nil)
	if _, err := k.Load("d", vars[0]); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("got %v, want ErrUnsupportedOp", err)
	}
}

func TestVecKernelStore(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("out", ir.Float32)
	k, vars, _ := newVecKernel(t, s, []int64{64}, nil)
	if err := k.Store("out", vars[0], "tmp0", ir.StorePlain); err != nil {
		t.Fatal(err)
	}
	if got := k.stores.Inner().String(); !strings.Contains(got, "tmp0.store(out_ptr0 + 8*i0);") {
		t.Errorf("vector store wrong:\n%s", got)
	}
}

func TestVecKernelStoreLaneInvariantIndexFails(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("out", ir.Float32)
	k, vars, _ := newVecKernel(t, s, []int64{4, 64}, nil)
	err := k.Store("out", vars[0], "tmp0", ir.StoreAtomicAdd)
	if !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("atomic store: got %v, want ErrUnsupportedOp", err)
	}
	err = k.Store("out", vars[0], "tmp0", ir.StorePlain)
	if !errors.Is(err, ErrIllegalAccess) {
		t.Errorf("lane-invariant store: got %v, want ErrIllegalAccess", err)
	}
}

func TestVecKernelReduction(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("out", ir.Float32)
	k, vars, rvars := newVecKernel(t, s, []int64{4}, []int64{64})
	v, err := k.Load("in", expr.Sum(expr.Prod(expr.Integer(64), vars[0]), rvars[0]))
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Reduction("out", ir.Float32, ir.Float32, ir.ReduceMax, vars[0], v); err != nil {
		t.Fatal(err)
	}
	prefix := k.reductionPrefix.String()
	if !strings.Contains(prefix, "float tmp1 = -std::numeric_limits<float>::infinity();") {
		t.Errorf("scalar shadow missing:\n%s", prefix)
	}
	if !strings.Contains(prefix, "kvec::Vec<float> tmp1_vec = kvec::Vec<float>(tmp1);") {
		t.Errorf("vector accumulator missing:\n%s", prefix)
	}
	if !strings.Contains(prefix, "#pragma omp declare reduction(max:kvec::Vec<float>:omp_out = kvec::maximum(omp_out, omp_in))") {
		t.Errorf("omp declaration missing:\n%s", prefix)
	}
	if got := k.stores.Inner().String(); !strings.Contains(got, "tmp1_vec = kvec::maximum(tmp1_vec, tmp0);") {
		t.Errorf("vector combine missing:\n%s", got)
	}
	suffix := k.reductionSuffix.Inner().String()
	if !strings.Contains(suffix, "kvec::vec_reduce_all<float>") {
		t.Errorf("horizontal fold missing:\n%s", suffix)
	}
	if strings.Contains(suffix, "out_ptr0") {
		t.Errorf("vector kernel must not store the output, the tail does:\n%s", suffix)
	}
	if _, ok := k.reductionVarMap["tmp1_vec"]; !ok {
		t.Error("reduction pragma must name the vector accumulator")
	}
}

func TestVecKernelReductionRestrictions(t *testing.T) {
	s := newTestSession(1)
	s.DeclareBuffer("out", ir.Float32)
	k, vars, _ := newVecKernel(t, s, []int64{4}, []int64{64})
	if err := k.Reduction("out", ir.Float32, ir.Float32, ir.ReduceAny, vars[0], "tmp0"); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("any: got %v, want ErrUnsupportedOp", err)
	}
	if err := k.Reduction("out", ir.Float64, ir.Float64, ir.ReduceSum, vars[0], "tmp0"); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("float64: got %v, want ErrUnsupportedOp", err)
	}
}

func TestVecKernelSignLowering(t *testing.T) {
	s := newTestSession(1)
	k, _, _ := newVecKernel(t, s, []int64{64}, nil)
	v, err := k.Unary(ir.OpSign, "val")
	if err != nil {
		t.Fatal(err)
	}
	got := k.compute.String()
	for _, want := range []string{
		"auto tmp0 = decltype(val)::blendv(decltype(val)(0), decltype(val)(1), decltype(val)(0) < val);",
		"auto tmp1 = decltype(val)::blendv(decltype(val)(0), decltype(val)(1), val < decltype(val)(0));",
		"auto tmp2 = tmp0 - tmp1;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q:\n%s", want, got)
		}
	}
	if v != "tmp2" {
		t.Errorf("result = %s, want tmp2", v)
	}
}

func TestVecKernelScalarOnlyOpsFail(t *testing.T) {
	s := newTestSession(1)
	k, _, _ := newVecKernel(t, s, []int64{64}, nil)
	if _, err := k.Masked("tmp0", func() (ir.Value, error) { return "tmp1", nil }, 0); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("masked: got %v, want ErrUnsupportedOp", err)
	}
	if _, err := k.IndexExpr(expr.Symbol("i0"), ir.Int64); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("index_expr: got %v, want ErrUnsupportedOp", err)
	}
	if _, err := k.Rand(expr.Integer(1), expr.Symbol("i0"), ir.Float32); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("rand: got %v, want ErrUnsupportedOp", err)
	}
	if _, err := k.Unary(ir.OpSignbit, "tmp0"); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("signbit: got %v, want ErrUnsupportedOp", err)
	}
	if _, err := k.Binary(ir.OpLt, "tmp0", "tmp1"); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("lt: got %v, want ErrUnsupportedOp", err)
	}
	if v, err := k.ToDtype("tmp0", ir.Bool); err != nil || v != "tmp0" {
		t.Errorf("bool conversion must pass through, got (%s, %v)", v, err)
	}
	if _, err := k.ToDtype("tmp0", ir.Int64); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("int64 conversion: got %v, want ErrUnsupportedOp", err)
	}
}
