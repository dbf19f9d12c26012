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

// Package expr implements the symbolic integer index expressions used by the
// kernel code generator: affine combinations of iteration variables plus the
// two special indexing forms, floor division and modular indexing.
//
// Expressions are immutable trees. The smart constructors (Sum, Prod, ...)
// fold constants and flatten nesting so that structurally equal indices
// produce equal trees, which the kernels rely on for CSE keys and for the
// stride analysis in the vectorization-legality checker.
package expr

import (
	"fmt"
	"strings"
)

// Expr is a symbolic integer expression over iteration variables.
type Expr interface {
	String() string
	isExpr()
}

// Symbol is an iteration variable such as i0.
type Symbol string

// Integer is a constant.
type Integer int64

// Add is an n-ary sum.
type Add struct{ Terms []Expr }

// Mul is an n-ary product.
type Mul struct{ Factors []Expr }

// FloorDiv is integer floor division X / Div.
type FloorDiv struct{ X, Div Expr }

// ModularIndexing is the compound form (X / Div) % Mod used for reshaped
// buffer indexing.
type ModularIndexing struct{ X, Div, Mod Expr }

func (Symbol) isExpr()          {}
func (Integer) isExpr()         {}
func (Add) isExpr()             {}
func (Mul) isExpr()             {}
func (FloorDiv) isExpr()        {}
func (ModularIndexing) isExpr() {}

func (s Symbol) String() string  { return string(s) }
func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }

func (a Add) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

func (m Mul) String() string {
	parts := make([]string, len(m.Factors))
	for i, f := range m.Factors {
		s := f.String()
		if _, ok := f.(Add); ok {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, "*")
}

func (d FloorDiv) String() string {
	return fmt.Sprintf("FloorDiv(%s, %s)", d.X, d.Div)
}

func (m ModularIndexing) String() string {
	return fmt.Sprintf("ModularIndexing(%s, %s, %s)", m.X, m.Div, m.Mod)
}

// Sum builds a flattened, constant-folded sum. Zero terms vanish; an empty
// sum is Integer(0); a single term is returned unwrapped.
func Sum(terms ...Expr) Expr {
	var flat []Expr
	var c int64
	for _, t := range terms {
		switch t := t.(type) {
		case Integer:
			c += int64(t)
		case Add:
			for _, inner := range t.Terms {
				if ic, ok := inner.(Integer); ok {
					c += int64(ic)
				} else {
					flat = append(flat, inner)
				}
			}
		default:
			flat = append(flat, t)
		}
	}
	if c != 0 {
		flat = append(flat, Integer(c))
	}
	switch len(flat) {
	case 0:
		return Integer(0)
	case 1:
		return flat[0]
	}
	return Add{Terms: flat}
}

// Prod builds a flattened, constant-folded product. A zero factor collapses
// the product; unit factors vanish.
func Prod(factors ...Expr) Expr {
	var flat []Expr
	c := int64(1)
	for _, f := range factors {
		switch f := f.(type) {
		case Integer:
			c *= int64(f)
		case Mul:
			for _, inner := range f.Factors {
				if ic, ok := inner.(Integer); ok {
					c *= int64(ic)
				} else {
					flat = append(flat, inner)
				}
			}
		default:
			flat = append(flat, f)
		}
	}
	if c == 0 {
		return Integer(0)
	}
	if c != 1 {
		// Constant first so products print as 8*i1, not i1*8.
		flat = append([]Expr{Integer(c)}, flat...)
	}
	switch len(flat) {
	case 0:
		return Integer(1)
	case 1:
		return flat[0]
	}
	return Mul{Factors: flat}
}

// Sub is a - b.
func Sub(a, b Expr) Expr { return Sum(a, Prod(Integer(-1), b)) }

// Subs substitutes symbols in e according to repl and rebuilds the tree
// through the smart constructors.
func Subs(e Expr, repl map[Symbol]Expr) Expr {
	switch e := e.(type) {
	case Symbol:
		if r, ok := repl[e]; ok {
			return r
		}
		return e
	case Integer:
		return e
	case Add:
		terms := make([]Expr, len(e.Terms))
		for i, t := range e.Terms {
			terms[i] = Subs(t, repl)
		}
		return Sum(terms...)
	case Mul:
		factors := make([]Expr, len(e.Factors))
		for i, f := range e.Factors {
			factors[i] = Subs(f, repl)
		}
		return Prod(factors...)
	case FloorDiv:
		return FloorDiv{X: Subs(e.X, repl), Div: Subs(e.Div, repl)}
	case ModularIndexing:
		return ModularIndexing{X: Subs(e.X, repl), Div: Subs(e.Div, repl), Mod: Subs(e.Mod, repl)}
	}
	return e
}

// Expand distributes products over sums, recursively. The legality checker
// expands indices before analyzing the innermost variable's coefficient.
func Expand(e Expr) Expr {
	switch e := e.(type) {
	case Add:
		terms := make([]Expr, len(e.Terms))
		for i, t := range e.Terms {
			terms[i] = Expand(t)
		}
		return Sum(terms...)
	case Mul:
		// Expand factors first, then distribute pairwise.
		expanded := []Expr{Integer(1)}
		for _, f := range e.Factors {
			f = Expand(f)
			var addends []Expr
			if a, ok := f.(Add); ok {
				addends = a.Terms
			} else {
				addends = []Expr{f}
			}
			var next []Expr
			for _, lhs := range expanded {
				for _, rhs := range addends {
					next = append(next, Prod(lhs, rhs))
				}
			}
			expanded = next
		}
		return Sum(expanded...)
	case FloorDiv:
		return FloorDiv{X: Expand(e.X), Div: Expand(e.Div)}
	case ModularIndexing:
		return ModularIndexing{X: Expand(e.X), Div: Expand(e.Div), Mod: Expand(e.Mod)}
	}
	return e
}

// Has reports whether v occurs anywhere in e, including inside floor
// division and modular indexing.
func Has(e Expr, v Symbol) bool {
	switch e := e.(type) {
	case Symbol:
		return e == v
	case Integer:
		return false
	case Add:
		for _, t := range e.Terms {
			if Has(t, v) {
				return true
			}
		}
	case Mul:
		for _, f := range e.Factors {
			if Has(f, v) {
				return true
			}
		}
	case FloorDiv:
		return Has(e.X, v) || Has(e.Div, v)
	case ModularIndexing:
		return Has(e.X, v) || Has(e.Div, v) || Has(e.Mod, v)
	}
	return false
}

// linform is a linear normal form: constant + sum of coeff*atom, where an
// atom is anything the normalizer cannot decompose further (a symbol, a
// floor division, a modular index, or an irreducible product). Atoms are
// keyed by their canonical string.
type linform struct {
	terms map[string]linterm
	c     int64
}

type linterm struct {
	atom  Expr
	coeff int64
}

func (l *linform) add(atom Expr, coeff int64) {
	if coeff == 0 {
		return
	}
	key := atom.String()
	t := l.terms[key]
	t.atom = atom
	t.coeff += coeff
	if t.coeff == 0 {
		delete(l.terms, key)
		return
	}
	l.terms[key] = t
}

func normalize(e Expr) linform {
	l := linform{terms: map[string]linterm{}}
	switch e := e.(type) {
	case Integer:
		l.c = int64(e)
	case Symbol:
		l.add(e, 1)
	case Add:
		for _, t := range e.Terms {
			sub := normalize(t)
			l.c += sub.c
			for _, st := range sub.terms {
				l.add(st.atom, st.coeff)
			}
		}
	case Mul:
		// Split into a constant coefficient and the remaining factors.
		coeff := int64(1)
		var rest []Expr
		for _, f := range e.Factors {
			if fc, ok := f.(Integer); ok {
				coeff *= int64(fc)
			} else {
				rest = append(rest, f)
			}
		}
		switch len(rest) {
		case 0:
			l.c = coeff
		case 1:
			sub := normalize(rest[0])
			l.c = coeff * sub.c
			for _, st := range sub.terms {
				l.add(st.atom, coeff*st.coeff)
			}
		default:
			// Product of non-constant factors: treat as one atom.
			l.add(Prod(rest...), coeff)
		}
	default:
		l.add(e, 1)
	}
	return l
}

// DiffConst returns the constant difference a - b when the two expressions
// differ only in their constant term, and reports whether that was the case.
func DiffConst(a, b Expr) (int64, bool) {
	la := normalize(Expand(a))
	lb := normalize(Expand(b))
	if len(la.terms) != len(lb.terms) {
		return 0, false
	}
	for key, ta := range la.terms {
		tb, ok := lb.terms[key]
		if !ok || ta.coeff != tb.coeff {
			return 0, false
		}
	}
	return la.c - lb.c, true
}

// IsSingleStep reports whether incrementing v by one moves the index by
// exactly one element, i.e. v has unit stride in e.
func IsSingleStep(v Symbol, e Expr) bool {
	stepped := Subs(e, map[Symbol]Expr{v: Sum(v, Integer(1))})
	delta, ok := DiffConst(stepped, e)
	return ok && delta == 1
}

// IsInvariant reports whether e does not depend on v at all.
func IsInvariant(v Symbol, e Expr) bool {
	return !Has(Expand(e), v)
}

// Equal reports structural equality after expansion and normalization.
func Equal(a, b Expr) bool {
	d, ok := DiffConst(a, b)
	return ok && d == 0
}
