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
	"strings"

	"github.com/ajroetker/go-kernelgen/expr"
)

// CExpr renders a symbolic index expression as C++ integer arithmetic.
// It is a pure function of the expression tree.
func CExpr(e expr.Expr) string {
	switch e := e.(type) {
	case expr.Integer:
		return fmt.Sprintf("%d", int64(e))
	case expr.Symbol:
		return string(e)
	case expr.Add:
		parts := make([]string, len(e.Terms))
		for i, t := range e.Terms {
			parts[i] = CExpr(t)
		}
		return strings.Join(parts, " + ")
	case expr.Mul:
		parts := make([]string, len(e.Factors))
		for i, f := range e.Factors {
			parts[i] = paren(CExpr(f))
		}
		return strings.Join(parts, "*")
	case expr.FloorDiv:
		return fmt.Sprintf("(%s / %s)", paren(CExpr(e.X)), paren(CExpr(e.Div)))
	case expr.ModularIndexing:
		x := paren(CExpr(e.X))
		div := paren(CExpr(e.Div))
		mod := paren(CExpr(e.Mod))
		if div != "1" {
			x = fmt.Sprintf("(%s / %s)", x, div)
		}
		return fmt.Sprintf("%s %% %s", x, mod)
	}
	panic(fmt.Sprintf("cppgen: unknown expression %T", e))
}

// paren wraps a rendered subexpression in parentheses unless it is a bare
// identifier or literal.
func paren(s string) string {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '_':
		default:
			return "(" + s + ")"
		}
	}
	return s
}
