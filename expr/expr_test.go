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

package expr

import "testing"

func TestSumFolding(t *testing.T) {
	tests := []struct {
		name string
		in   Expr
		want string
	}{
		{"empty", Sum(), "0"},
		{"constants", Sum(Integer(2), Integer(3)), "5"},
		{"zero vanishes", Sum(Symbol("i0"), Integer(0)), "i0"},
		{"flattens", Sum(Sum(Symbol("i0"), Integer(1)), Sum(Symbol("i1"), Integer(2))), "i0 + i1 + 3"},
		{"single term unwrapped", Sum(Symbol("i0")), "i0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProdFolding(t *testing.T) {
	tests := []struct {
		name string
		in   Expr
		want string
	}{
		{"empty", Prod(), "1"},
		{"constant first", Prod(Symbol("i1"), Integer(8)), "8*i1"},
		{"zero collapses", Prod(Symbol("i0"), Integer(0)), "0"},
		{"one vanishes", Prod(Integer(1), Symbol("i0")), "i0"},
		{"flattens", Prod(Prod(Integer(2), Symbol("i0")), Integer(3)), "6*i0"},
		{"sum parenthesized", Prod(Integer(2), Sum(Symbol("i0"), Integer(1))), "2*(i0 + 1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubs(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	e := Sum(Prod(Integer(16), i0), i1)
	got := Subs(e, map[Symbol]Expr{i1: Prod(i1, Integer(8))})
	if want := "16*i0 + 8*i1"; got.String() != want {
		t.Errorf("Subs = %q, want %q", got.String(), want)
	}
	// Substitution inside compound indexing forms.
	m := ModularIndexing{X: i0, Div: Integer(1), Mod: Integer(64)}
	got = Subs(m, map[Symbol]Expr{i0: Sum(i0, Integer(1))})
	if want := "ModularIndexing(i0 + 1, 1, 64)"; got.String() != want {
		t.Errorf("Subs = %q, want %q", got.String(), want)
	}
}

func TestExpand(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	e := Prod(Integer(4), Sum(i0, Prod(Integer(2), i1)))
	if got, want := Expand(e).String(), "4*i0 + 8*i1"; got != want {
		t.Errorf("Expand = %q, want %q", got, want)
	}
}

func TestDiffConst(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	tests := []struct {
		name string
		a, b Expr
		want int64
		ok   bool
	}{
		{"pure constants", Integer(7), Integer(3), 4, true},
		{"same symbolic part", Sum(i0, Integer(5)), i0, 5, true},
		{"different coefficients", Prod(Integer(2), i0), i0, 0, false},
		{"different symbols", i0, i1, 0, false},
		{"expanded match", Prod(Integer(2), Sum(i0, Integer(1))), Prod(Integer(2), i0), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DiffConst(tt.a, tt.b)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("DiffConst = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsSingleStep(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	tests := []struct {
		name string
		v    Symbol
		e    Expr
		want bool
	}{
		{"bare variable", i1, i1, true},
		{"row major innermost", i1, Sum(Prod(Integer(64), i0), i1), true},
		{"strided", i1, Prod(Integer(2), i1), false},
		{"invariant is not unit stride", i1, i0, false},
		{"inside floor division", i1, FloorDiv{X: i1, Div: Integer(2)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSingleStep(tt.v, tt.e); got != tt.want {
				t.Errorf("IsSingleStep(%s, %s) = %v, want %v", tt.v, tt.e, got, tt.want)
			}
		})
	}
}

func TestIsInvariant(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	if !IsInvariant(i1, Sum(Prod(Integer(8), i0), Integer(3))) {
		t.Error("expected invariance in i1")
	}
	if IsInvariant(i1, ModularIndexing{X: i1, Div: Integer(1), Mod: Integer(8)}) {
		t.Error("modular indexing of i1 must not be invariant in i1")
	}
}

func TestEqual(t *testing.T) {
	i0, i1 := Symbol("i0"), Symbol("i1")
	a := Sum(Prod(Integer(4), Sum(i0, i1)), Integer(0))
	b := Sum(Prod(Integer(4), i0), Prod(Integer(4), i1))
	if !Equal(a, b) {
		t.Errorf("expected %s == %s", a, b)
	}
	if Equal(a, Sum(b, Integer(1))) {
		t.Error("expressions differing by a constant must not be equal")
	}
}
