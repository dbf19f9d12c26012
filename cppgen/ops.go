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
	"strconv"

	"github.com/ajroetker/go-kernelgen/ir"
)

// opRules maps abstract operations to target text for one execution style
// (scalar C++ or fixed-width vector objects). The two tables are parallel;
// the vector table's key set doubles as the legality checker's allow-list.
type opRules struct {
	unary    map[ir.OpKind]func(x string) string
	binary   map[ir.OpKind]func(a, b string) string
	where    func(cond, a, b string) string
	constant func(val float64, dtype ir.DType) string
}

// has reports whether the table can lower op at the given arity.
func (r *opRules) has(op ir.OpKind) bool {
	if _, ok := r.unary[op]; ok {
		return true
	}
	_, ok := r.binary[op]
	return ok
}

var scalarRules = &opRules{
	unary: map[ir.OpKind]func(string) string{
		ir.OpAbs:        func(x string) string { return fmt.Sprintf("std::abs(%s)", x) },
		ir.OpNeg:        func(x string) string { return fmt.Sprintf("-%s", x) },
		ir.OpExp:        func(x string) string { return fmt.Sprintf("std::exp(%s)", x) },
		ir.OpExpm1:      func(x string) string { return fmt.Sprintf("std::expm1(%s)", x) },
		ir.OpLog:        func(x string) string { return fmt.Sprintf("std::log(%s)", x) },
		ir.OpLog1p:      func(x string) string { return fmt.Sprintf("std::log1p(%s)", x) },
		ir.OpSqrt:       func(x string) string { return fmt.Sprintf("std::sqrt(%s)", x) },
		ir.OpRsqrt:      func(x string) string { return fmt.Sprintf("1 / std::sqrt(%s)", x) },
		ir.OpSin:        func(x string) string { return fmt.Sprintf("std::sin(%s)", x) },
		ir.OpCos:        func(x string) string { return fmt.Sprintf("std::cos(%s)", x) },
		ir.OpTanh:       func(x string) string { return fmt.Sprintf("std::tanh(%s)", x) },
		ir.OpErf:        func(x string) string { return fmt.Sprintf("std::erf(%s)", x) },
		ir.OpLgamma:     func(x string) string { return fmt.Sprintf("std::lgamma(%s)", x) },
		ir.OpFloor:      func(x string) string { return fmt.Sprintf("std::floor(%s)", x) },
		ir.OpCeil:       func(x string) string { return fmt.Sprintf("std::ceil(%s)", x) },
		ir.OpTrunc:      func(x string) string { return fmt.Sprintf("std::trunc(%s)", x) },
		ir.OpRound:      func(x string) string { return fmt.Sprintf("std::nearbyint(%s)", x) },
		ir.OpSignbit:    func(x string) string { return fmt.Sprintf("std::signbit(%s)", x) },
		ir.OpIsinf:      func(x string) string { return fmt.Sprintf("std::isinf(%s)", x) },
		ir.OpIsnan:      func(x string) string { return fmt.Sprintf("std::isnan(%s)", x) },
		ir.OpRelu:       func(x string) string { return fmt.Sprintf("%s * (%s>0)", x, x) },
		ir.OpSigmoid:    func(x string) string { return fmt.Sprintf("1 / (1 + std::exp(-%s))", x) },
		ir.OpSquare:     func(x string) string { return fmt.Sprintf("%s * %s", x, x) },
		ir.OpReciprocal: func(x string) string { return fmt.Sprintf("1 / %s", x) },
	},
	binary: map[ir.OpKind]func(a, b string) string{
		ir.OpAdd:        func(a, b string) string { return fmt.Sprintf("%s + %s", a, b) },
		ir.OpSub:        func(a, b string) string { return fmt.Sprintf("%s - %s", a, b) },
		ir.OpMul:        func(a, b string) string { return fmt.Sprintf("%s * %s", a, b) },
		ir.OpDiv:        func(a, b string) string { return fmt.Sprintf("%s / %s", a, b) },
		ir.OpPow:        func(a, b string) string { return fmt.Sprintf("std::pow(%s, %s)", a, b) },
		ir.OpFmod:       func(a, b string) string { return fmt.Sprintf("std::fmod(%s, %s)", a, b) },
		ir.OpMod:        func(a, b string) string { return fmt.Sprintf("mod(%s, %s)", a, b) },
		ir.OpTruncdiv:   func(a, b string) string { return fmt.Sprintf("%s / %s", a, b) },
		ir.OpFloordiv:   scalarFloordiv,
		ir.OpMinimum:    func(a, b string) string { return fmt.Sprintf("(%s != %s) ? %s : std::min(%s, %s)", b, b, b, a, b) },
		ir.OpMaximum:    func(a, b string) string { return fmt.Sprintf("(%s != %s) ? %s : std::max(%s, %s)", b, b, b, a, b) },
		ir.OpLogicalAnd: func(a, b string) string { return fmt.Sprintf("%s && %s", a, b) },
		ir.OpLogicalOr:  func(a, b string) string { return fmt.Sprintf("%s || %s", a, b) },
		ir.OpEq:         func(a, b string) string { return fmt.Sprintf("%s == %s", a, b) },
		ir.OpNe:         func(a, b string) string { return fmt.Sprintf("%s != %s", a, b) },
		ir.OpLt:         func(a, b string) string { return fmt.Sprintf("%s < %s", a, b) },
		ir.OpGt:         func(a, b string) string { return fmt.Sprintf("%s > %s", a, b) },
		ir.OpLe:         func(a, b string) string { return fmt.Sprintf("%s <= %s", a, b) },
		ir.OpGe:         func(a, b string) string { return fmt.Sprintf("%s >= %s", a, b) },
	},
	where:    func(cond, a, b string) string { return fmt.Sprintf("%s ? %s : %s", cond, a, b) },
	constant: scalarConstant,
}

// scalarFloordiv lowers floor division for signed integer operands.
func scalarFloordiv(a, b string) string {
	quot := fmt.Sprintf("%s / %s", a, b)
	rem := fmt.Sprintf("%s %% %s", a, b)
	return fmt.Sprintf("((%s < 0) != (%s < 0) ? (%s != 0 ? %s - 1 : %s) : %s)", a, b, rem, quot, quot, quot)
}

func scalarConstant(val float64, dtype ir.DType) string {
	t := CppType(dtype)
	switch {
	case math.IsInf(val, 1):
		return fmt.Sprintf("std::numeric_limits<%s>::infinity()", t)
	case math.IsInf(val, -1):
		return fmt.Sprintf("-std::numeric_limits<%s>::infinity()", t)
	case math.IsNaN(val):
		return fmt.Sprintf("std::numeric_limits<%s>::quiet_NaN()", t)
	case dtype == ir.Bool:
		if val != 0 {
			return fmt.Sprintf("static_cast<%s>(true)", t)
		}
		return fmt.Sprintf("static_cast<%s>(false)", t)
	default:
		return fmt.Sprintf("static_cast<%s>(%s)", t, formatConst(val, dtype))
	}
}

func formatConst(val float64, dtype ir.DType) string {
	if dtype.IsFloat() {
		return strconv.FormatFloat(val, 'g', -1, 64)
	}
	return strconv.FormatInt(int64(val), 10)
}
