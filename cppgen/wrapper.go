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

// Wrapper receives finished kernel definitions, the declarations their
// call sites compile against, and the call sites themselves. The
// compilation driver decides what to do with each.
type Wrapper interface {
	// NextKernelName reserves the next kernel name.
	NextKernelName() string
	// DefineKernel registers a kernel's full source under its name.
	DefineKernel(name, src string)
	// LoadKernel registers the declaration for a defined kernel. argTypes
	// carries the bare parameter types for drivers that bind the symbol
	// through a function pointer instead of a declaration.
	LoadKernel(name, decl string, argTypes []string)
	// GenerateKernelCall emits the call site passing the graph buffers.
	GenerateKernelCall(name string, callArgs []string)
}

// SourceWrapper collects definitions, declarations and call sites into
// plain source text, definitions first.
type SourceWrapper struct {
	defs  IndentedBuffer
	decls IndentedBuffer
	calls IndentedBuffer
	count int
}

// NewSourceWrapper returns an empty wrapper.
func NewSourceWrapper() *SourceWrapper { return &SourceWrapper{} }

func (w *SourceWrapper) NextKernelName() string {
	name := fmt.Sprintf("kernel_cpp_%d", w.count)
	w.count++
	return name
}

func (w *SourceWrapper) DefineKernel(name, src string) {
	if !w.defs.Empty() {
		w.defs.Writeline("")
	}
	for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
		w.defs.Writeline(line)
	}
}

func (w *SourceWrapper) LoadKernel(name, decl string, argTypes []string) {
	w.decls.Writeline(decl + ";")
}

func (w *SourceWrapper) GenerateKernelCall(name string, callArgs []string) {
	w.calls.Writeline(fmt.Sprintf("%s(%s);", name, strings.Join(callArgs, ", ")))
}

// Source returns everything collected so far.
func (w *SourceWrapper) Source() string {
	var out strings.Builder
	out.WriteString(w.defs.String())
	if !w.decls.Empty() || !w.calls.Empty() {
		out.WriteString("\n")
		out.WriteString(w.decls.String())
		out.WriteString(w.calls.String())
	}
	return out.String()
}
