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

	"github.com/ajroetker/go-kernelgen/ir"
)

func TestReductionInit(t *testing.T) {
	tests := []struct {
		kind  ir.ReductionKind
		dtype ir.DType
		want  string
	}{
		{ir.ReduceSum, ir.Float32, "0"},
		{ir.ReduceAny, ir.Bool, "0"},
		{ir.ReduceMax, ir.Float32, "-std::numeric_limits<float>::infinity()"},
		{ir.ReduceArgmax, ir.Float32, "-std::numeric_limits<float>::infinity()"},
		{ir.ReduceMax, ir.Int64, "std::numeric_limits<int64_t>::min()"},
		{ir.ReduceMin, ir.Float32, "std::numeric_limits<float>::infinity()"},
		{ir.ReduceArgmin, ir.Int32, "std::numeric_limits<int32_t>::max()"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.dtype.String(), func(t *testing.T) {
			if got := reductionInit(tt.kind, tt.dtype); got != tt.want {
				t.Errorf("reductionInit = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReductionCombine(t *testing.T) {
	tests := []struct {
		kind ir.ReductionKind
		want string
	}{
		{ir.ReduceSum, "acc += x"},
		{ir.ReduceAny, "acc = acc || x"},
		{ir.ReduceMax, "acc = std::max(acc, x)"},
		{ir.ReduceMin, "acc = std::min(acc, x)"},
	}
	for _, tt := range tests {
		if got := reductionCombine(tt.kind, "acc", "x"); got != tt.want {
			t.Errorf("reductionCombine(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestReductionCombineVec(t *testing.T) {
	got, err := reductionCombineVec(ir.ReduceMax, "acc", "x")
	if err != nil {
		t.Fatal(err)
	}
	if want := "acc = kvec::maximum(acc, x)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, err := reductionCombineVec(ir.ReduceArgmin, "acc", "x"); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("argmin vector combine: got %v, want ErrUnsupportedOp", err)
	}
}

func TestArgmaxArgminPrefix(t *testing.T) {
	lines := argmaxArgminPrefix(ir.ReduceArgmax, ir.Float32, "tmp0", "IndexValue_1")
	text := strings.Join(lines, "\n")
	if want := "struct IndexValue_1 {int64_t index; float value;};"; lines[0] != want {
		t.Errorf("struct line = %q, want %q", lines[0], want)
	}
	if want := "IndexValue_1 tmp0{0, -std::numeric_limits<float>::infinity()};"; lines[1] != want {
		t.Errorf("init line = %q, want %q", lines[1], want)
	}
	// The combine keeps omp_out on ties: first-seen index wins.
	if !strings.Contains(text, "omp_in.value < omp_out.value ? omp_out.index : omp_in.index") {
		t.Errorf("argmax combine missing first-seen tie break:\n%s", text)
	}

	lines = argmaxArgminPrefix(ir.ReduceArgmin, ir.Float32, "tmp0", "IndexValue_2")
	text = strings.Join(lines, "\n")
	if !strings.Contains(text, "omp_in.value > omp_out.value ? omp_out.index : omp_in.index") {
		t.Errorf("argmin combine direction wrong:\n%s", text)
	}
}

func TestNarrowFloatReductionPrefix(t *testing.T) {
	lines, err := narrowFloatReductionPrefix(ir.ReduceSum, ir.Float16)
	if err != nil {
		t.Fatal(err)
	}
	if want := "#pragma omp declare reduction(+:half:omp_out = omp_out + omp_in)"; lines[0] != want {
		t.Errorf("got %q, want %q", lines[0], want)
	}
	if _, err := narrowFloatReductionPrefix(ir.ReduceMax, ir.BFloat16); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("narrow max: got %v, want ErrUnsupportedOp", err)
	}
}
