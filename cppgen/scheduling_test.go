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
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
	"github.com/ajroetker/go-kernelgen/vecisa"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

// saxpyNode computes out = 2*x + y over n elements.
func saxpyNode(n int64) ir.Node {
	return &ir.FuncNode{
		Ranges: ir.Group{Pointwise: []int64{n}},
		Body: func(h ir.OpsHandler, vars, _ []expr.Symbol) error {
			a, err := h.Load("x", vars[0])
			if err != nil {
				return err
			}
			two, err := h.Constant(2, ir.Float32)
			if err != nil {
				return err
			}
			prod, err := h.Binary(ir.OpMul, two, a)
			if err != nil {
				return err
			}
			b, err := h.Load("y", vars[0])
			if err != nil {
				return err
			}
			sum, err := h.Binary(ir.OpAdd, prod, b)
			if err != nil {
				return err
			}
			return h.Store("out", vars[0], sum, ir.StorePlain)
		},
	}
}

func declareSaxpyBuffers(s *Session) {
	s.DeclareBuffer("x", ir.Float32)
	s.DeclareBuffer("y", ir.Float32)
	s.DeclareBuffer("out", ir.Float32)
}

func TestSchedulingScalarSaxpyGolden(t *testing.T) {
	s := newTestSession(1)
	declareSaxpyBuffers(s)
	sched := NewScheduling(s)
	if err := sched.CodegenNodes([]ir.Node{saxpyNode(8)}); err != nil {
		t.Fatal(err)
	}
	w := NewSourceWrapper()
	sched.Flush(w)

	ar, err := txtar.ParseFile(filepath.Join("testdata", "saxpy_scalar.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ar.Files) != 1 {
		t.Fatalf("golden archive has %d files, want 1", len(ar.Files))
	}
	if diff := cmp.Diff(string(ar.Files[0].Data), w.Source()); diff != "" {
		t.Errorf("generated source mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulingVectorizesSaxpy(t *testing.T) {
	s := NewSession(Config{Threads: 1, MinChunkSize: 4096, GCCVectorizeHint: true}, vecisa.AVX2)
	declareSaxpyBuffers(s)
	sched := NewScheduling(s)
	if err := sched.CodegenNodes([]ir.Node{saxpyNode(64)}); err != nil {
		t.Fatal(err)
	}
	w := NewSourceWrapper()
	sched.Flush(w)
	got := w.Source()

	if !strings.Contains(got, "kvec::Vec<float>::loadu(in_ptr0 + 8*i0)") {
		t.Errorf("main loop must load vector objects:\n%s", got)
	}
	if !strings.Contains(got, ".store(out_ptr0 + 8*i0);") {
		t.Errorf("main loop must store vector objects:\n%s", got)
	}
	if !strings.Contains(got, "for(int64_t i0=0; i0<8; i0+=1)") {
		t.Errorf("main loop must cover 8 tiles of 8 lanes:\n%s", got)
	}
	if !strings.Contains(got, "for(int64_t i0=64; i0<64; i0+=1)") {
		t.Errorf("tail loop must start where the tiles end:\n%s", got)
	}
}

func TestSchedulingMaskedGroupStaysScalar(t *testing.T) {
	s := NewSession(Config{Threads: 1, MinChunkSize: 4096, GCCVectorizeHint: true}, vecisa.AVX2)
	s.DeclareBuffer("mask", ir.Bool)
	s.DeclareBuffer("x", ir.Float32)
	s.DeclareBuffer("out", ir.Float32)
	node := &ir.FuncNode{
		Ranges: ir.Group{Pointwise: []int64{64}},
		Body: func(h ir.OpsHandler, vars, _ []expr.Symbol) error {
			m, err := h.Load("mask", vars[0])
			if err != nil {
				return err
			}
			v, err := h.Masked(m, func() (ir.Value, error) {
				return h.Load("x", vars[0])
			}, 0)
			if err != nil {
				return err
			}
			return h.Store("out", vars[0], v, ir.StorePlain)
		},
	}
	sched := NewScheduling(s)
	if err := sched.CodegenNodes([]ir.Node{node}); err != nil {
		t.Fatal(err)
	}
	w := NewSourceWrapper()
	sched.Flush(w)
	got := w.Source()

	if strings.Contains(got, "kvec::") {
		t.Errorf("masked group must fall back to the scalar kernel:\n%s", got)
	}
	if !strings.Contains(got, "if(tmp0)") {
		t.Errorf("scalar mask lowering missing:\n%s", got)
	}
}

func TestSchedulingReductionOnlyGroupNamesBothAccumulators(t *testing.T) {
	s := NewSession(Config{Threads: 8, MinChunkSize: 1, GCCVectorizeHint: true}, vecisa.AVX2)
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("acc", ir.Float32)
	node := &ir.FuncNode{
		Ranges:    ir.Group{Reduction: []int64{64, 64}},
		Reduction: true,
		Body: func(h ir.OpsHandler, _, rvars []expr.Symbol) error {
			v, err := h.Load("in", expr.Sum(expr.Prod(expr.Integer(64), rvars[0]), rvars[1]))
			if err != nil {
				return err
			}
			return h.Reduction("acc", ir.Float32, ir.Float32, ir.ReduceSum, expr.Integer(0), v)
		},
	}
	sched := NewScheduling(s)
	if err := sched.CodegenNodes([]ir.Node{node}); err != nil {
		t.Fatal(err)
	}
	w := NewSourceWrapper()
	sched.Flush(w)
	got := w.Source()

	// The split main loop combines into tmp1_vec inside the parallel
	// region, so the work-sharing pragma must name it alongside the
	// scalar accumulator.
	if !strings.Contains(got, "#pragma omp for reduction(+:tmp1) reduction(+:tmp1_vec)") {
		t.Errorf("parallel reduction pragma must name both accumulators:\n%s", got)
	}
	if !strings.Contains(got, "#pragma omp parallel num_threads(8)") {
		t.Errorf("reduction-only nest must open its own parallel region:\n%s", got)
	}
	if !strings.Contains(got, "tmp1_vec += tmp0;") {
		t.Errorf("vector combine missing from the main loop:\n%s", got)
	}
}

func TestSchedulingReductionWithEpilogue(t *testing.T) {
	s := NewSession(Config{Threads: 8, MinChunkSize: 1, GCCVectorizeHint: true}, nil)
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("acc", ir.Float32)
	s.DeclareBuffer("norm", ir.Float32)

	rowsum := &ir.FuncNode{
		Ranges:    ir.Group{Pointwise: []int64{4}, Reduction: []int64{64}},
		Reduction: true,
		Body: func(h ir.OpsHandler, vars, rvars []expr.Symbol) error {
			v, err := h.Load("in", expr.Sum(expr.Prod(expr.Integer(64), vars[0]), rvars[0]))
			if err != nil {
				return err
			}
			return h.Reduction("acc", ir.Float32, ir.Float32, ir.ReduceSum, vars[0], v)
		},
	}
	epilogue := &ir.FuncNode{
		Ranges: ir.Group{Pointwise: []int64{4}},
		Body: func(h ir.OpsHandler, vars, _ []expr.Symbol) error {
			v, err := h.Load("acc", vars[0])
			if err != nil {
				return err
			}
			r, err := h.Unary(ir.OpReciprocal, v)
			if err != nil {
				return err
			}
			return h.Store("norm", vars[0], r, ir.StorePlain)
		},
	}

	sched := NewScheduling(s)
	if err := sched.CodegenNodes([]ir.Node{rowsum, epilogue}); err != nil {
		t.Fatal(err)
	}
	w := NewSourceWrapper()
	sched.Flush(w)
	got := w.Source()

	for _, want := range []string{
		"#pragma omp parallel num_threads(8)",
		"#pragma omp for",
		"float tmp1 = 0;",
		"auto tmp0 = in_ptr0[64*i0 + i1];",
		"tmp1 += tmp0;",
		"out_ptr0[i0] = tmp1;",
		"auto tmp2 = 1 / tmp1;",
		"out_ptr1[i0] = tmp2;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q:\n%s", want, got)
		}
	}
	// The finished accumulator is consumed after the reduction loop, not
	// inside it.
	inner := got[strings.Index(got, "i1=0"):]
	closing := strings.Index(inner, "}")
	if strings.Contains(inner[:closing], "tmp2") {
		t.Errorf("epilogue leaked into the reduction loop:\n%s", got)
	}
}
