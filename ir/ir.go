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

// Package ir defines the abstract per-element operation vocabulary shared
// between the upstream graph builder and the code generator, and the Node
// interface that is their sole coupling point. A node replays its
// computation against whichever OpsHandler is active: an emitting kernel or
// the non-emitting vectorization-legality checker.
package ir

import "github.com/ajroetker/go-kernelgen/expr"

// DType identifies the element type of a buffer or constant.
type DType int

const (
	Float32 DType = iota
	Float64
	Float16
	BFloat16
	Int64
	Int32
	Int16
	Int8
	Uint8
	Bool
)

var dtypeNames = map[DType]string{
	Float32:  "float32",
	Float64:  "float64",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Int64:    "int64",
	Int32:    "int32",
	Int16:    "int16",
	Int8:     "int8",
	Uint8:    "uint8",
	Bool:     "bool",
}

func (d DType) String() string { return dtypeNames[d] }

// IsFloat reports whether d is a floating-point type.
func (d DType) IsFloat() bool {
	switch d {
	case Float32, Float64, Float16, BFloat16:
		return true
	}
	return false
}

// IsNarrowFloat reports whether d is a reduced-precision float that must be
// widened to float before arithmetic.
func (d DType) IsNarrowFloat() bool { return d == Float16 || d == BFloat16 }

// ReductionKind identifies how a reduction combines values.
type ReductionKind string

const (
	ReduceSum    ReductionKind = "sum"
	ReduceMin    ReductionKind = "min"
	ReduceMax    ReductionKind = "max"
	ReduceArgmin ReductionKind = "argmin"
	ReduceArgmax ReductionKind = "argmax"
	ReduceAny    ReductionKind = "any"
)

// IsArg reports whether the reduction carries an index alongside the value.
func (k ReductionKind) IsArg() bool { return k == ReduceArgmin || k == ReduceArgmax }

// StoreMode selects how a store writes its destination.
type StoreMode int

const (
	// StorePlain is a plain assignment.
	StorePlain StoreMode = iota
	// StoreAtomicAdd accumulates into the destination; lowered to a
	// non-atomic += when the kernel is statically single-threaded.
	StoreAtomicAdd
)

// OpKind names an abstract element-wise operation. The scalar and vector
// operation tables in the codegen package map these to target text.
type OpKind string

const (
	OpAdd        OpKind = "add"
	OpSub        OpKind = "sub"
	OpMul        OpKind = "mul"
	OpDiv        OpKind = "div"
	OpAbs        OpKind = "abs"
	OpNeg        OpKind = "neg"
	OpExp        OpKind = "exp"
	OpExpm1      OpKind = "expm1"
	OpLog        OpKind = "log"
	OpLog1p      OpKind = "log1p"
	OpSqrt       OpKind = "sqrt"
	OpRsqrt      OpKind = "rsqrt"
	OpSin        OpKind = "sin"
	OpCos        OpKind = "cos"
	OpTanh       OpKind = "tanh"
	OpErf        OpKind = "erf"
	OpLgamma     OpKind = "lgamma"
	OpFloor      OpKind = "floor"
	OpCeil       OpKind = "ceil"
	OpTrunc      OpKind = "trunc"
	OpRound      OpKind = "round"
	OpSign       OpKind = "sign"
	OpSignbit    OpKind = "signbit"
	OpRelu       OpKind = "relu"
	OpSigmoid    OpKind = "sigmoid"
	OpSquare     OpKind = "square"
	OpReciprocal OpKind = "reciprocal"
	OpIsinf      OpKind = "isinf"
	OpIsnan      OpKind = "isnan"
	OpPow        OpKind = "pow"
	OpFmod       OpKind = "fmod"
	OpMod        OpKind = "mod"
	OpFloordiv   OpKind = "floordiv"
	OpTruncdiv   OpKind = "truncdiv"
	OpMinimum    OpKind = "minimum"
	OpMaximum    OpKind = "maximum"
	OpLogicalAnd OpKind = "logical_and"
	OpLogicalOr  OpKind = "logical_or"
	OpEq         OpKind = "eq"
	OpNe         OpKind = "ne"
	OpLt         OpKind = "lt"
	OpGt         OpKind = "gt"
	OpLe         OpKind = "le"
	OpGe         OpKind = "ge"
)

// Value is an opaque handle for an intermediate result inside one kernel
// body. Emitting handlers return CSE temporaries; the legality checker
// returns placeholders.
type Value string

// OpsHandler receives the replayed per-element operations of a fused node
// group. CppKernel, CppVecKernel and the legality checker implement it.
type OpsHandler interface {
	// Load reads buffer[index] and returns a handle to the loaded value.
	Load(name string, index expr.Expr) (Value, error)
	// Store writes value to buffer[index].
	Store(name string, index expr.Expr, value Value, mode StoreMode) error
	// Reduction combines value into the named reduction accumulator.
	Reduction(name string, dtype, srcDtype DType, kind ReductionKind, index expr.Expr, value Value) error
	// Constant materializes a typed constant. Inf and NaN are permitted.
	Constant(val float64, dtype DType) (Value, error)
	// IndexExpr materializes an index expression as a value of the given type.
	IndexExpr(e expr.Expr, dtype DType) (Value, error)
	// IndirectIndexing converts a computed value into an index expression.
	IndirectIndexing(index Value) (expr.Expr, error)
	// Masked evaluates body under mask, producing other where the mask is
	// false.
	Masked(mask Value, body func() (Value, error), other float64) (Value, error)
	// ToDtype converts x to the given type.
	ToDtype(x Value, dtype DType) (Value, error)
	// Rand draws a uniform random value for (seed, offset).
	Rand(seed, offset expr.Expr, dtype DType) (Value, error)
	// Randn draws a normal random value for (seed, offset).
	Randn(seed, offset expr.Expr, dtype DType) (Value, error)
	// Unary applies a one-operand operation.
	Unary(op OpKind, x Value) (Value, error)
	// Binary applies a two-operand operation.
	Binary(op OpKind, a, b Value) (Value, error)
	// Where selects a where cond holds, b elsewhere.
	Where(cond, a, b Value) (Value, error)
}

// Group is the iteration space of a node: pointwise extents followed by
// reduction extents.
type Group struct {
	Pointwise []int64
	Reduction []int64
}

// Flatten returns all extents, pointwise first.
func (g Group) Flatten() []int64 {
	out := make([]int64, 0, len(g.Pointwise)+len(g.Reduction))
	out = append(out, g.Pointwise...)
	return append(out, g.Reduction...)
}

// Equal reports whether two groups have identical extents.
func (g Group) Equal(o Group) bool {
	return int64sEqual(g.Pointwise, o.Pointwise) && int64sEqual(g.Reduction, o.Reduction)
}

func int64sEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Node is one fused computation handed over by the graph builder. The code
// generator never inspects the builder's internal graph structure; it only
// reads the group and replays Run against the active handler.
type Node interface {
	Group() Group
	IsReduction() bool
	Run(h OpsHandler, vars, reductionVars []expr.Symbol) error
}

// FuncNode is a Node built from a plain function body. The demo CLI and the
// tests construct node groups with it.
type FuncNode struct {
	Ranges    Group
	Reduction bool
	Body      func(h OpsHandler, vars, reductionVars []expr.Symbol) error
}

func (n *FuncNode) Group() Group      { return n.Ranges }
func (n *FuncNode) IsReduction() bool { return n.Reduction }

func (n *FuncNode) Run(h OpsHandler, vars, reductionVars []expr.Symbol) error {
	return n.Body(h, vars, reductionVars)
}

// CanFuseHorizontal reports whether two nodes may share one kernel body:
// either their groups match exactly, or the second is a pure pointwise node
// over the first's full iteration space.
func CanFuseHorizontal(a, b Node) bool {
	ga, gb := a.Group(), b.Group()
	if ga.Equal(gb) {
		return true
	}
	if len(gb.Reduction) == 0 && int64sEqual(gb.Pointwise, ga.Flatten()) {
		return true
	}
	if len(ga.Reduction) == 0 && int64sEqual(ga.Pointwise, gb.Flatten()) {
		return true
	}
	return false
}

// CanFuseVertical reports whether b may consume a's output inside one
// kernel. Reductions terminate a fusion chain.
func CanFuseVertical(a, b Node) bool {
	return CanFuseHorizontal(a, b) && !a.IsReduction()
}

// MaxGroup returns the group of the node with the deepest reduction, which
// defines the full iteration space of a fused set.
func MaxGroup(nodes []Node) Group {
	var best Node
	for _, n := range nodes {
		if best == nil || (n.IsReduction() && !best.IsReduction()) {
			best = n
		}
	}
	if best == nil {
		return Group{}
	}
	return best.Group()
}
