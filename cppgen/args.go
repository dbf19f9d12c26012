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

	"github.com/ajroetker/go-kernelgen/ir"
)

// KernelArgs tracks which graph buffers a kernel group touches and assigns
// them stable formal parameter names. All kernels of a group share one
// KernelArgs so the fused source has a single argument list.
type KernelArgs struct {
	input    map[string]string
	output   map[string]string
	inOrder  []string
	outOrder []string
}

// NewKernelArgs returns an empty argument registry.
func NewKernelArgs() *KernelArgs {
	return &KernelArgs{
		input:  map[string]string{},
		output: map[string]string{},
	}
}

// Input registers name as an input buffer and returns its parameter name.
func (a *KernelArgs) Input(name string) string {
	if v, ok := a.input[name]; ok {
		return v
	}
	v := fmt.Sprintf("in_ptr%d", len(a.input))
	a.input[name] = v
	a.inOrder = append(a.inOrder, name)
	return v
}

// Output registers name as an output buffer and returns its parameter name.
func (a *KernelArgs) Output(name string) string {
	if v, ok := a.output[name]; ok {
		return v
	}
	v := fmt.Sprintf("out_ptr%d", len(a.output))
	a.output[name] = v
	a.outOrder = append(a.outOrder, name)
	return v
}

// Clone returns an independent copy. The legality checker runs against a
// clone so a rejected dry run leaves the group's registry untouched.
func (a *KernelArgs) Clone() *KernelArgs {
	c := NewKernelArgs()
	for _, n := range a.inOrder {
		c.input[n] = a.input[n]
		c.inOrder = append(c.inOrder, n)
	}
	for _, n := range a.outOrder {
		c.output[n] = a.output[n]
		c.outOrder = append(c.outOrder, n)
	}
	return c
}

// CppArgdefs returns the formal argument list, the call-site argument list
// (graph buffer names), and the native type of each argument. Inputs come
// first, outputs after, each in registration order.
func (a *KernelArgs) CppArgdefs(dtypeOf func(string) ir.DType) (argdefs, callArgs, argTypes []string) {
	for _, name := range a.inOrder {
		t := CppType(dtypeOf(name))
		argdefs = append(argdefs, fmt.Sprintf("const %s* __restrict__ %s", t, a.input[name]))
		callArgs = append(callArgs, name)
		argTypes = append(argTypes, fmt.Sprintf("const %s*", t))
	}
	for _, name := range a.outOrder {
		t := CppType(dtypeOf(name))
		argdefs = append(argdefs, fmt.Sprintf("%s* __restrict__ %s", t, a.output[name]))
		callArgs = append(callArgs, name)
		argTypes = append(argTypes, fmt.Sprintf("%s*", t))
	}
	return argdefs, callArgs, argTypes
}

// CSE deduplicates computed values within one kernel body. Values are keyed
// by their normalized operation text; re-requesting an equal expression
// returns the previously assigned temporary.
type CSE struct {
	cache      map[string]ir.Value
	storeCache map[string]ir.Value
	counter    *int
}

// NewCSE returns an empty cache with a fresh temporary counter.
func NewCSE() *CSE {
	n := 0
	return &CSE{
		cache:      map[string]ir.Value{},
		storeCache: map[string]ir.Value{},
		counter:    &n,
	}
}

// Newvar reserves the next temporary name.
func (c *CSE) Newvar() ir.Value {
	v := ir.Value(fmt.Sprintf("tmp%d", *c.counter))
	*c.counter++
	return v
}

// Generate returns the temporary bound to line, creating it if needed. When
// write is set and the value is new, the declaration is appended to buf;
// a cache hit never re-emits.
func (c *CSE) Generate(buf *IndentedBuffer, line string, write bool) ir.Value {
	if v, ok := c.cache[line]; ok {
		return v
	}
	v := c.Newvar()
	c.cache[line] = v
	if write {
		buf.Writeline(fmt.Sprintf("auto %s = %s;", v, line))
	}
	return v
}

// PutStore records the value most recently stored to a buffer so later
// loads of that buffer inside the same group reuse it.
func (c *CSE) PutStore(name string, v ir.Value) { c.storeCache[name] = v }

// GetStore returns the value last stored to a buffer within this group.
func (c *CSE) GetStore(name string) (ir.Value, bool) {
	v, ok := c.storeCache[name]
	return v, ok
}

// Clone copies the caches but shares the temporary counter, so values
// created in a cloned scope never collide with the parent's.
func (c *CSE) Clone() *CSE {
	cl := &CSE{
		cache:      make(map[string]ir.Value, len(c.cache)),
		storeCache: make(map[string]ir.Value, len(c.storeCache)),
		counter:    c.counter,
	}
	for k, v := range c.cache {
		cl.cache[k] = v
	}
	for k, v := range c.storeCache {
		cl.storeCache[k] = v
	}
	return cl
}
