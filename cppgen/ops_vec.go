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
	"math"

	"github.com/ajroetker/go-kernelgen/ir"
)

// vecType is the fixed-width SIMD abstraction the generated code targets.
// The lane count is fixed per process by the picked instruction set.
func vecType(dtype ir.DType) string {
	return fmt.Sprintf("kvec::Vec<%s>", CppType(dtype))
}

// vecRules lowers operations onto vector objects. Operations absent from
// this table cannot be vectorized; the legality checker consults exactly
// this key set (plus the structural ops the vector kernel implements).
var vecRules = &opRules{
	unary: map[ir.OpKind]func(string) string{
		ir.OpAbs:        func(x string) string { return fmt.Sprintf("%s.abs()", x) },
		ir.OpNeg:        func(x string) string { return fmt.Sprintf("%s.neg()", x) },
		ir.OpExp:        func(x string) string { return fmt.Sprintf("%s.exp()", x) },
		ir.OpExpm1:      func(x string) string { return fmt.Sprintf("%s.expm1()", x) },
		ir.OpLog:        func(x string) string { return fmt.Sprintf("%s.log()", x) },
		ir.OpLog1p:      func(x string) string { return fmt.Sprintf("%s.log1p()", x) },
		ir.OpSqrt:       func(x string) string { return fmt.Sprintf("%s.sqrt()", x) },
		ir.OpRsqrt:      func(x string) string { return fmt.Sprintf("%s.rsqrt()", x) },
		ir.OpSin:        func(x string) string { return fmt.Sprintf("%s.sin()", x) },
		ir.OpCos:        func(x string) string { return fmt.Sprintf("%s.cos()", x) },
		ir.OpTanh:       func(x string) string { return fmt.Sprintf("%s.tanh()", x) },
		ir.OpErf:        func(x string) string { return fmt.Sprintf("%s.erf()", x) },
		ir.OpLgamma:     func(x string) string { return fmt.Sprintf("%s.lgamma()", x) },
		ir.OpFloor:      func(x string) string { return fmt.Sprintf("%s.floor()", x) },
		ir.OpCeil:       func(x string) string { return fmt.Sprintf("%s.ceil()", x) },
		ir.OpTrunc:      func(x string) string { return fmt.Sprintf("%s.trunc()", x) },
		ir.OpRound:      func(x string) string { return fmt.Sprintf("%s.round()", x) },
		ir.OpRelu:       func(x string) string { return fmt.Sprintf("kvec::clamp_min(%s, decltype(%s)(0))", x, x) },
		ir.OpSigmoid:    func(x string) string { return fmt.Sprintf("decltype(%s)(1)/(decltype(%s)(1) + %s.neg().exp())", x, x, x) },
		ir.OpSquare:     func(x string) string { return fmt.Sprintf("%s.pow(2)", x) },
		ir.OpReciprocal: func(x string) string { return fmt.Sprintf("%s.reciprocal()", x) },
	},
	binary: map[ir.OpKind]func(a, b string) string{
		ir.OpAdd:        func(a, b string) string { return fmt.Sprintf("%s + %s", a, b) },
		ir.OpSub:        func(a, b string) string { return fmt.Sprintf("%s - %s", a, b) },
		ir.OpMul:        func(a, b string) string { return fmt.Sprintf("%s * %s", a, b) },
		ir.OpDiv:        func(a, b string) string { return fmt.Sprintf("%s / %s", a, b) },
		ir.OpPow:        func(a, b string) string { return fmt.Sprintf("%s.pow(%s)", a, b) },
		ir.OpFmod:       func(a, b string) string { return fmt.Sprintf("%s.fmod(%s)", a, b) },
		ir.OpTruncdiv:   func(a, b string) string { return fmt.Sprintf("%s / %s", a, b) },
		ir.OpFloordiv:   vecFloordiv,
		ir.OpMinimum:    func(a, b string) string { return fmt.Sprintf("kvec::minimum(%s, %s)", a, b) },
		ir.OpMaximum:    func(a, b string) string { return fmt.Sprintf("kvec::maximum(%s, %s)", a, b) },
		ir.OpLogicalAnd: func(a, b string) string { return fmt.Sprintf("%s && %s", a, b) },
		ir.OpLogicalOr:  func(a, b string) string { return fmt.Sprintf("%s || %s", a, b) },
	},
	where: func(cond, a, b string) string {
		return fmt.Sprintf("decltype(%s)::blendv(%s, %s, %s)", a, b, a, cond)
	},
	constant: vecConstant,
}

func vecFloordiv(a, b string) string {
	t := fmt.Sprintf("decltype(%s)", a)
	quot := fmt.Sprintf("%s / %s", a, b)
	rem := fmt.Sprintf("%s %% %s", a, b)
	return fmt.Sprintf("((%s < %s(0)) != (%s < %s(0)) ? (%s != %s(0) ? %s - %s(1) : %s) : %s)",
		a, t, b, t, rem, t, quot, t, quot, quot)
}

func vecConstant(val float64, dtype ir.DType) string {
	t := CppType(dtype)
	var quote string
	switch {
	case math.IsInf(val, 1):
		quote = fmt.Sprintf("std::numeric_limits<%s>::infinity()", t)
	case math.IsInf(val, -1):
		quote = fmt.Sprintf("-std::numeric_limits<%s>::infinity()", t)
	case math.IsNaN(val):
		quote = fmt.Sprintf("std::numeric_limits<%s>::quiet_NaN()", t)
	case dtype == ir.Bool:
		if val != 0 {
			quote = fmt.Sprintf("static_cast<%s>(true)", t)
		} else {
			quote = fmt.Sprintf("static_cast<%s>(false)", t)
		}
	default:
		quote = fmt.Sprintf("static_cast<%s>(%s)", t, formatConst(val, dtype))
	}
	return fmt.Sprintf("%s(%s)", vecType(dtype), quote)
}
