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

	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
)

// loopKernel is the view the loop nest and the loop emitters need of a
// kernel: its body buffers, reduction metadata and parallelism heuristic.
// Both kernel variants satisfy it through the shared CppKernel core.
type loopKernel interface {
	loadsBuf() *IndentedBuffer
	computeBuf() *IndentedBuffer
	storesBuf() *IndentedBuffer
	reductionPrefixBuf() *IndentedBuffer
	reductionSuffixBuf() *IndentedBuffer
	reductionVars() map[ir.Value]ir.ReductionKind
	itervarsOf() []expr.Symbol
	callRangesOf() []int64
	reductionDepthOf() int
	DecideParallelDepth(maxDepth, threads int) int
}

// CppKernel emits the scalar loop body for one fused node group. Node replay
// calls the OpsHandler methods; the kernel accumulates loads, compute,
// stores and the reduction prologue/epilogue in separate buffers that the
// loop nest later stitches into the right loop levels.
type CppKernel struct {
	session    *Session
	args       *KernelArgs
	numThreads int
	cse        *CSE
	rules      *opRules

	loads           *IndentedBuffer
	compute         *IndentedBuffer
	stores          *DeferredLineBuffer
	reductionPrefix *IndentedBuffer
	reductionSuffix *DeferredLineBuffer

	bound           bool
	finalized       bool
	callRanges      []int64
	itervars        []expr.Symbol
	reductionDepth  int
	reductionVarMap map[ir.Value]ir.ReductionKind
}

var _ ir.OpsHandler = (*CppKernel)(nil)

// NewCppKernel builds an unbound scalar kernel sharing the group's argument
// registry.
func NewCppKernel(s *Session, args *KernelArgs) *CppKernel {
	return &CppKernel{
		session:         s,
		args:            args,
		numThreads:      s.ParallelNumThreads(),
		cse:             NewCSE(),
		rules:           scalarRules,
		loads:           &IndentedBuffer{},
		compute:         &IndentedBuffer{},
		stores:          NewDeferredLineBuffer(s.Removed),
		reductionPrefix: &IndentedBuffer{},
		reductionSuffix: NewDeferredLineBuffer(s.Removed),
		reductionVarMap: map[ir.Value]ir.ReductionKind{},
	}
}

// SetRanges binds the kernel to an iteration space and returns the pointwise
// and reduction induction variables. Binding is idempotent: a second call
// must name the same extents, otherwise the fusion grouping upstream was
// wrong and the kernel refuses to continue.
func (k *CppKernel) SetRanges(lengths, reductionLengths []int64) ([]expr.Symbol, []expr.Symbol, error) {
	flat := make([]int64, 0, len(lengths)+len(reductionLengths))
	flat = append(flat, lengths...)
	flat = append(flat, reductionLengths...)
	if k.bound {
		if !eqInt64(flat, k.callRanges) || len(lengths) != k.reductionDepth {
			return nil, nil, fmt.Errorf("%w: bound to %v, rebind to %v", ErrBindingMismatch, k.callRanges, flat)
		}
	} else {
		k.callRanges = flat
		k.reductionDepth = len(lengths)
		for i := range flat {
			k.itervars = append(k.itervars, expr.Symbol(fmt.Sprintf("i%d", i)))
		}
		k.bound = true
	}
	return k.itervars[:k.reductionDepth], k.itervars[k.reductionDepth:], nil
}

// opState rejects operations outside the Bound stage of the kernel's
// lifecycle.
func (k *CppKernel) opState(op string) error {
	if !k.bound {
		return fmt.Errorf("%w: %s before SetRanges", ErrKernelState, op)
	}
	if k.finalized {
		return fmt.Errorf("%w: %s after CodegenLoops", ErrKernelState, op)
	}
	return nil
}

func (k *CppKernel) Load(name string, index expr.Expr) (ir.Value, error) {
	if err := k.opState("load"); err != nil {
		return "", err
	}
	if v, ok := k.cse.GetStore(name); ok {
		return v, nil
	}
	line := fmt.Sprintf("%s[%s]", k.args.Input(name), CExpr(index))
	if k.session.DTypeOf(name).IsNarrowFloat() {
		line = fmt.Sprintf("static_cast<float>(%s)", line)
	}
	return k.cse.Generate(k.loads, line, true), nil
}

func (k *CppKernel) Store(name string, index expr.Expr, value ir.Value, mode ir.StoreMode) error {
	if err := k.opState("store"); err != nil {
		return err
	}
	if !k.session.KnownBuffer(name) {
		return fmt.Errorf("%w: store to undeclared buffer %q", ErrKernelState, name)
	}
	out := k.args.Output(name)
	var line string
	switch mode {
	case ir.StorePlain:
		line = fmt.Sprintf("%s[%s] = %s;", out, CExpr(index), value)
	case ir.StoreAtomicAdd:
		// A statically single-threaded kernel needs no atomicity.
		if !k.session.Cfg.DynamicThreads && k.numThreads == 1 {
			line = fmt.Sprintf("%s[%s] += %s;", out, CExpr(index), value)
		} else {
			line = fmt.Sprintf("atomic_add(&%s[%s], %s);", out, CExpr(index), value)
		}
	default:
		return fmt.Errorf("%w: store mode %d", ErrUnsupportedOp, mode)
	}
	k.stores.Writeline(name, line)
	k.cse.PutStore(name, value)
	return nil
}

func (k *CppKernel) Reduction(name string, dtype, srcDtype ir.DType, kind ir.ReductionKind, index expr.Expr, value ir.Value) error {
	if err := k.opState("reduction"); err != nil {
		return err
	}
	if _, ok := rtypeToOmp[kind]; !ok {
		return fmt.Errorf("%w: reduction kind %q", ErrUnsupportedOp, kind)
	}
	tmpvar := k.cse.Generate(k.loads, fmt.Sprintf("reduction %s %s", name, CExpr(index)), false)
	if _, seen := k.reductionVarMap[tmpvar]; seen {
		return nil
	}
	if kind.IsArg() {
		k.reductionPrefix.Writelines(argmaxArgminPrefix(kind, srcDtype, tmpvar, k.session.NextStructName()))
		// Strict comparison keeps the accumulator on ties, so the first
		// extreme index seen in iteration order wins.
		cmp := "<"
		if kind == ir.ReduceArgmin {
			cmp = ">"
		}
		iv := k.itervars[len(k.itervars)-1]
		k.stores.Writelines("", []string{
			fmt.Sprintf("if (%s.value %s %s) {", tmpvar, cmp, value),
			fmt.Sprintf("%s%s.index = %s; %s.value = %s;", indentUnit, tmpvar, iv, tmpvar, value),
			"}",
		})
	} else {
		if dtype.IsNarrowFloat() {
			pre, err := narrowFloatReductionPrefix(kind, dtype)
			if err != nil {
				return err
			}
			k.reductionPrefix.Writelines(pre)
		}
		k.reductionPrefix.Writeline(fmt.Sprintf("%s %s = %s;", CppType(dtype), tmpvar, reductionInit(kind, dtype)))
		k.stores.Writeline("", reductionCombine(kind, string(tmpvar), string(value))+";")
	}
	k.reductionVarMap[tmpvar] = kind
	if !k.session.Removed(name) {
		member := ""
		if kind.IsArg() {
			member = ".index"
		}
		k.reductionSuffix.Writeline(name,
			fmt.Sprintf("%s[%s] = %s%s;", k.args.Output(name), CExpr(index), tmpvar, member))
	}
	k.cse.PutStore(name, tmpvar)
	return nil
}

func (k *CppKernel) Constant(val float64, dtype ir.DType) (ir.Value, error) {
	if dtype.IsNarrowFloat() {
		dtype = ir.Float32
	}
	return k.cse.Generate(k.compute, k.rules.constant(val, dtype), true), nil
}

func (k *CppKernel) IndexExpr(e expr.Expr, dtype ir.DType) (ir.Value, error) {
	line := fmt.Sprintf("static_cast<%s>(%s)", CppType(dtype), CExpr(e))
	return k.cse.Generate(k.compute, line, true), nil
}

func (k *CppKernel) IndirectIndexing(index ir.Value) (expr.Expr, error) {
	return expr.Symbol(index), nil
}

func (k *CppKernel) Masked(mask ir.Value, body func() (ir.Value, error), other float64) (ir.Value, error) {
	code := &BracesBuffer{}
	v := k.cse.Newvar()
	code.Writeline(fmt.Sprintf("float %s = %s;", v, scalarConstant(other, ir.Float32)))
	code.Writeline(fmt.Sprintf("if(%s)", mask))

	var result ir.Value
	var err error
	code.WithIndent(func() {
		scratch := &IndentedBuffer{}
		dstores := NewDeferredLineBuffer(k.session.Removed)
		savedLoads, savedCompute, savedStores, savedCSE := k.loads, k.compute, k.stores, k.cse
		k.loads, k.compute, k.stores, k.cse = scratch, scratch, dstores, k.cse.Clone()
		result, err = body()
		k.loads, k.compute, k.stores, k.cse = savedLoads, savedCompute, savedStores, savedCSE
		code.Splice(scratch)
		code.Splice(dstores.Inner())
		if err == nil {
			code.Writeline(fmt.Sprintf("%s = %s;", v, result))
		}
	})
	if err != nil {
		return "", err
	}
	k.compute.Splice(&code.IndentedBuffer)
	return v, nil
}

func (k *CppKernel) ToDtype(x ir.Value, dtype ir.DType) (ir.Value, error) {
	line := fmt.Sprintf("static_cast<%s>(%s)", CppType(dtype), x)
	return k.cse.Generate(k.compute, line, true), nil
}

func (k *CppKernel) Rand(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	line := fmt.Sprintf("static_cast<%s>(normalized_rand_cpu(%s, %s))", CppType(dtype), CExpr(seed), CExpr(offset))
	return k.cse.Generate(k.compute, line, true), nil
}

func (k *CppKernel) Randn(seed, offset expr.Expr, dtype ir.DType) (ir.Value, error) {
	line := fmt.Sprintf("static_cast<%s>(randn_cpu(%s, %s))", CppType(dtype), CExpr(seed), CExpr(offset))
	return k.cse.Generate(k.compute, line, true), nil
}

func (k *CppKernel) Unary(op ir.OpKind, x ir.Value) (ir.Value, error) {
	if op == ir.OpSign && k.rules == scalarRules {
		return k.lowerSign(x), nil
	}
	f, ok := k.rules.unary[op]
	if !ok {
		return "", fmt.Errorf("%w: unary %s", ErrUnsupportedOp, op)
	}
	return k.cse.Generate(k.compute, f(string(x)), true), nil
}

// lowerSign has no single-expression form; it expands to a three-statement
// branchless difference of the positive and negative indicators.
func (k *CppKernel) lowerSign(x ir.Value) ir.Value {
	code := &IndentedBuffer{}
	left := k.cse.Newvar()
	right := k.cse.Newvar()
	result := k.cse.Newvar()
	zero := fmt.Sprintf("decltype(%s)(0)", x)
	one := fmt.Sprintf("decltype(%s)(1)", x)
	code.Writeline(fmt.Sprintf("auto %s = %s > 0 ? %s : %s;", left, x, one, zero))
	code.Writeline(fmt.Sprintf("auto %s = %s < 0 ? %s : %s;", right, x, one, zero))
	code.Writeline(fmt.Sprintf("auto %s = %s - %s;", result, left, right))
	k.compute.Splice(code)
	return result
}

func (k *CppKernel) Binary(op ir.OpKind, a, b ir.Value) (ir.Value, error) {
	f, ok := k.rules.binary[op]
	if !ok {
		return "", fmt.Errorf("%w: binary %s", ErrUnsupportedOp, op)
	}
	return k.cse.Generate(k.compute, f(string(a), string(b)), true), nil
}

func (k *CppKernel) Where(cond, a, b ir.Value) (ir.Value, error) {
	return k.cse.Generate(k.compute, k.rules.where(string(cond), string(a), string(b)), true), nil
}

// WithSuffix replays f into the reduction epilogue instead of the loop
// body. Pointwise nodes fused after a reduction consume the finished
// accumulator there.
func (k *CppKernel) WithSuffix(f func() error) error {
	savedLoads, savedCompute, savedStores, savedCSE := k.loads, k.compute, k.stores, k.cse
	k.loads = &IndentedBuffer{}
	k.compute = &IndentedBuffer{}
	k.stores = NewDeferredLineBuffer(k.session.Removed)
	k.cse = k.cse.Clone()
	err := f()
	k.reductionSuffix.Splice(k.loads)
	k.reductionSuffix.Splice(k.compute)
	k.reductionSuffix.Splice(k.stores.Inner())
	k.loads, k.compute, k.stores, k.cse = savedLoads, savedCompute, savedStores, savedCSE
	return err
}

func (k *CppKernel) sizeHint() int64 {
	n := int64(1)
	for _, r := range k.callRanges {
		n *= r
	}
	return n
}

// DecideParallelDepth returns how many outer loop levels to parallelize for
// the given thread count. It greedily takes levels while the accumulated
// parallelism is below the thread count (stopping exactly at it, or past
// twice it) and the remaining serial work per thread stays above the
// configured minimum chunk. With dynamic threads at least one level is
// parallelized whenever any level exists.
func (k *CppKernel) DecideParallelDepth(maxDepth, threads int) int {
	seq := k.sizeHint()
	par := int64(1)
	depth := 0
	for _, r := range k.callRanges[:maxDepth] {
		if par >= int64(2*threads) || par == int64(threads) {
			break
		}
		if seq/int64(threads) < int64(k.session.Cfg.MinChunkSize) {
			break
		}
		depth++
		par *= r
		seq /= r
	}
	if k.session.Cfg.DynamicThreads && depth == 0 && maxDepth > 0 {
		depth = 1
	}
	return depth
}

// CodegenLoops renders the kernel as a complete loop nest into code and
// moves the kernel to its finalized state; further operations fail.
func (k *CppKernel) CodegenLoops(code *BracesBuffer, ws *WorkSharing) error {
	nest, err := BuildLoopNest(k)
	if err != nil {
		return err
	}
	k.finalized = true
	return codegenLoopsImpl(nest, code, ws)
}

func (k *CppKernel) loadsBuf() *IndentedBuffer           { return k.loads }
func (k *CppKernel) computeBuf() *IndentedBuffer         { return k.compute }
func (k *CppKernel) storesBuf() *IndentedBuffer          { return k.stores.Inner() }
func (k *CppKernel) reductionPrefixBuf() *IndentedBuffer { return k.reductionPrefix }
func (k *CppKernel) reductionSuffixBuf() *IndentedBuffer { return k.reductionSuffix.Inner() }
func (k *CppKernel) itervarsOf() []expr.Symbol           { return k.itervars }
func (k *CppKernel) callRangesOf() []int64               { return k.callRanges }
func (k *CppKernel) reductionDepthOf() int               { return k.reductionDepth }

func (k *CppKernel) reductionVars() map[ir.Value]ir.ReductionKind { return k.reductionVarMap }

// codegenLoopsImpl stitches kernel bodies into the loop nest and emits the
// result, placing parallel regions, reduction prologues/epilogues and
// work-sharing scopes. Shared by the plain kernel and the split scalar+
// vector pair.
func codegenLoopsImpl(nest *LoopNest, code *BracesBuffer, ws *WorkSharing) error {
	s := nest.session
	threads := s.ParallelNumThreads()
	parDepth := nest.kernel.DecideParallelDepth(nest.MaxParallelDepth(), threads)

	closeSingle := false
	if parDepth > 0 {
		if nest.IsReductionOnly() {
			// The parallel region must open around the reduction loop
			// itself, inside the reduction prologue.
			ws.Close()
			nest.levels[nest.roots[0]].Parallel = parDepth
		} else {
			ws.Parallel(threads)
			if err := nest.MarkParallel(parDepth); err != nil {
				return err
			}
		}
	} else if threads > 1 {
		if ws.Single() {
			code.OpenScope()
			closeSingle = true
		}
	}

	genKernel := func(k loopKernel) {
		code.Splice(k.loadsBuf())
		code.Splice(k.computeBuf())
		code.Splice(k.storesBuf())
	}

	var genLoops func(idxs []int, inReduction bool) error
	var genLoop func(idx int, inReduction bool) error

	genLoops = func(idxs []int, inReduction bool) error {
		prefixScope := false
		openedReduction := false
		if len(idxs) > 0 {
			first := &nest.levels[idxs[0]]
			if first.isReduction() && !inReduction {
				prefix := nest.kernelsAt(idxs)[0].reductionPrefixBuf()
				if !prefix.Empty() {
					code.OpenScope()
					prefixScope = true
				}
				code.Splice(prefix)
			}
			if nest.IsReductionOnly() && first.Parallel > 0 {
				ws.Parallel(threads)
				openedReduction = true
			}
		}
		for _, i := range idxs {
			if err := genLoop(i, inReduction); err != nil {
				return err
			}
		}
		if len(idxs) > 0 {
			first := &nest.levels[idxs[0]]
			if openedReduction {
				ws.Close()
			}
			if first.isReduction() && !inReduction {
				for _, lk := range nest.kernelsAt(idxs) {
					code.Splice(lk.reductionSuffixBuf())
				}
			}
		}
		if prefixScope {
			code.CloseScope()
		}
		return nil
	}

	genLoop = func(idx int, inReduction bool) error {
		lv := &nest.levels[idx]
		code.Writelines(nest.lines(idx))
		var err error
		code.WithIndent(func() {
			if len(lv.inner) > 0 {
				err = genLoops(lv.inner, lv.isReduction())
			} else {
				genKernel(nest.kernelAt(idx))
			}
		})
		return err
	}

	code.OpenScope()
	var err error
	if len(nest.roots) > 0 {
		err = genLoops(nest.roots, false)
	} else {
		genKernel(nest.kernel)
	}
	code.CloseScope()
	if closeSingle {
		code.CloseScope()
	}
	return err
}

func eqInt64(a, b []int64) bool {
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
