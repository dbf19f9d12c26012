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
)

// loopCodegenner renders a kernel's loop nest. CppKernel and
// CppKernelProxy both qualify.
type loopCodegenner interface {
	CodegenLoops(code *BracesBuffer, ws *WorkSharing) error
}

// KernelGroup accumulates consecutive kernels into one generated function.
// All kernels share one argument registry and one work-sharing tracker, so
// back-to-back parallel nests merge into a single omp region.
type KernelGroup struct {
	session *Session
	Args    *KernelArgs

	loopsCode *BracesBuffer
	ws        *WorkSharing
	count     int
}

// NewKernelGroup starts an empty group.
func NewKernelGroup(s *Session) *KernelGroup {
	g := &KernelGroup{
		session:   s,
		Args:      NewKernelArgs(),
		loopsCode: &BracesBuffer{},
	}
	g.ws = NewWorkSharing(s, g.loopsCode)
	return g
}

// NewKernel returns an unbound scalar kernel in this group.
func (g *KernelGroup) NewKernel() *CppKernel {
	return NewCppKernel(g.session, g.Args)
}

// NewVecKernel returns an unbound vector kernel in this group.
func (g *KernelGroup) NewVecKernel(nelements int64) *CppVecKernel {
	return NewCppVecKernel(g.session, g.Args, nelements)
}

// FinalizeKernel renders a finished kernel into the group's body.
func (g *KernelGroup) FinalizeKernel(k loopCodegenner) error {
	g.count++
	return k.CodegenLoops(g.loopsCode, g.ws)
}

// Count reports how many kernels the group holds.
func (g *KernelGroup) Count() int { return g.count }

// CodegenDefineAndCall closes the group, hands the complete C-linkage
// function to the wrapper and emits its call site. An empty group emits
// nothing.
func (g *KernelGroup) CodegenDefineAndCall(w Wrapper) {
	g.ws.Close()
	if g.count == 0 {
		return
	}
	argdefs, callArgs, argTypes := g.Args.CppArgdefs(g.session.DTypeOf)
	name := w.NextKernelName()

	code := &BracesBuffer{}
	code.Writeline(IncludeLine)
	code.Writeline(fmt.Sprintf(`extern "C" void %s(%s)`, name,
		strings.Join(argdefs, ",\n"+strings.Repeat(" ", 23))))
	code.WithIndent(func() {
		code.Splice(&g.loopsCode.IndentedBuffer)
	})

	w.DefineKernel(name, code.String())
	w.LoadKernel(name, fmt.Sprintf(`extern "C" void %s(%s)`, name, strings.Join(argTypes, ", ")), argTypes)
	w.GenerateKernelCall(name, callArgs)
}
