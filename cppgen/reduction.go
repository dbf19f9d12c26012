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

	"github.com/ajroetker/go-kernelgen/ir"
)

// rtypeToOmp maps a reduction kind to its OpenMP reduction identifier.
// sum and any use builtin operators; the rest are declared per kernel.
var rtypeToOmp = map[ir.ReductionKind]string{
	ir.ReduceSum:    "+",
	ir.ReduceMin:    "min",
	ir.ReduceMax:    "max",
	ir.ReduceArgmin: "argmin",
	ir.ReduceArgmax: "argmax",
	ir.ReduceAny:    "||",
}

// reductionInit returns the identity value for a reduction kind over the
// given element type: reduce(identity, x) == x for every x.
func reductionInit(kind ir.ReductionKind, dtype ir.DType) string {
	t := CppType(dtype)
	switch kind {
	case ir.ReduceSum, ir.ReduceAny:
		return "0"
	case ir.ReduceMax, ir.ReduceArgmax:
		if dtype.IsFloat() {
			return fmt.Sprintf("-std::numeric_limits<%s>::infinity()", t)
		}
		return fmt.Sprintf("std::numeric_limits<%s>::min()", t)
	case ir.ReduceMin, ir.ReduceArgmin:
		if dtype.IsFloat() {
			return fmt.Sprintf("std::numeric_limits<%s>::infinity()", t)
		}
		return fmt.Sprintf("std::numeric_limits<%s>::max()", t)
	}
	panic(fmt.Sprintf("cppgen: unknown reduction kind %q", kind))
}

// reductionCombine returns the scalar statement merging next into acc.
func reductionCombine(kind ir.ReductionKind, acc, next string) string {
	switch kind {
	case ir.ReduceSum:
		return fmt.Sprintf("%s += %s", acc, next)
	case ir.ReduceAny:
		return fmt.Sprintf("%s = %s || %s", acc, acc, next)
	default:
		return fmt.Sprintf("%s = std::%s(%s, %s)", acc, kind, acc, next)
	}
}

// reductionCombineVec returns the vector statement merging next into acc.
// Only sum, min and max have a vector combine.
func reductionCombineVec(kind ir.ReductionKind, acc, next string) (string, error) {
	switch kind {
	case ir.ReduceSum:
		return fmt.Sprintf("%s += %s", acc, next), nil
	case ir.ReduceMax:
		return fmt.Sprintf("%s = kvec::maximum(%s, %s)", acc, acc, next), nil
	case ir.ReduceMin:
		return fmt.Sprintf("%s = kvec::minimum(%s, %s)", acc, acc, next), nil
	}
	return "", fmt.Errorf("%w: vector reduction %q", ErrUnsupportedOp, kind)
}

// argmaxArgminPrefix declares the paired (index, value) accumulator struct
// for an index-carrying reduction, seeds it with the identity value at
// index 0, and declares the matching OpenMP combine operator. The combine
// keeps the accumulator on ties, so the first-seen extreme index wins under
// both serial and parallel execution.
func argmaxArgminPrefix(kind ir.ReductionKind, srcDtype ir.DType, tmpvar ir.Value, structName string) []string {
	init := reductionInit(kind, srcDtype)
	prefix := []string{
		fmt.Sprintf("struct %s {%s index; %s value;};", structName, IndexType, CppType(srcDtype)),
		fmt.Sprintf("%s %s{0, %s};", structName, tmpvar, init),
	}
	cmp := "<"
	if kind == ir.ReduceArgmin {
		cmp = ">"
	}
	prefix = append(prefix,
		fmt.Sprintf("#pragma omp declare reduction(%s : struct %s :\\", kind, structName),
		fmt.Sprintf("    omp_out.value = omp_in.value %s omp_out.value ? omp_out.value : omp_in.value,\\", cmp),
		fmt.Sprintf("    omp_out.index = omp_in.value %s omp_out.value ? omp_out.index : omp_in.index)\\", cmp),
		fmt.Sprintf("\tinitializer(omp_priv = {0, %s})", init),
	)
	return prefix
}

// narrowFloatReductionPrefix declares the user-defined OpenMP reduction a
// reduced-precision float accumulator needs. Only sum and any are defined
// for narrow floats; callers must reject other kinds first.
func narrowFloatReductionPrefix(kind ir.ReductionKind, dtype ir.DType) ([]string, error) {
	if kind != ir.ReduceSum && kind != ir.ReduceAny {
		return nil, fmt.Errorf("%w: %s reduction over %s", ErrUnsupportedOp, kind, dtype)
	}
	op := rtypeToOmp[kind]
	return []string{
		fmt.Sprintf("#pragma omp declare reduction(%s:%s:omp_out = omp_out %s omp_in)",
			op, CppType(dtype), op),
	}, nil
}
