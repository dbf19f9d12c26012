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
	"testing"

	"github.com/ajroetker/go-kernelgen/expr"
)

func TestCExpr(t *testing.T) {
	i0, i1 := expr.Symbol("i0"), expr.Symbol("i1")
	tests := []struct {
		name string
		in   expr.Expr
		want string
	}{
		{"symbol", i0, "i0"},
		{"integer", expr.Integer(42), "42"},
		{"row major", expr.Sum(expr.Prod(expr.Integer(64), i0), i1), "64*i0 + i1"},
		{"negative constant", expr.Sum(i0, expr.Integer(-1)), "i0 + -1"},
		{"product of sums", expr.Prod(expr.Integer(2), expr.Sum(i0, i1)), "2*(i0 + i1)"},
		{"floor division", expr.FloorDiv{X: i0, Div: expr.Integer(8)}, "(i0 / 8)"},
		{
			"modular indexing",
			expr.ModularIndexing{X: i0, Div: expr.Integer(8), Mod: expr.Integer(16)},
			"(i0 / 8) % 16",
		},
		{
			"modular indexing unit divisor drops the division",
			expr.ModularIndexing{X: i0, Div: expr.Integer(1), Mod: expr.Integer(16)},
			"i0 % 16",
		},
		{
			"modular indexing compound base",
			expr.ModularIndexing{X: expr.Sum(i0, i1), Div: expr.Integer(1), Mod: expr.Integer(4)},
			"(i0 + i1) % 4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CExpr(tt.in); got != tt.want {
				t.Errorf("CExpr = %q, want %q", got, tt.want)
			}
		})
	}
}
