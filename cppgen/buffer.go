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

import "strings"

const indentUnit = "    "

// IndentedBuffer accumulates generated source lines at a tracked indent
// level. Lines are stored fully indented, so spliced buffers keep their
// internal structure when merged at a deeper level.
type IndentedBuffer struct {
	lines  []string
	indent int
}

// Writeline appends one line at the current indent level.
func (b *IndentedBuffer) Writeline(line string) {
	if line == "" {
		b.lines = append(b.lines, "")
		return
	}
	b.lines = append(b.lines, strings.Repeat(indentUnit, b.indent)+line)
}

// Writelines appends several lines at the current indent level.
func (b *IndentedBuffer) Writelines(lines []string) {
	for _, l := range lines {
		b.Writeline(l)
	}
}

// Splice appends another buffer's lines, shifted by the current indent.
func (b *IndentedBuffer) Splice(other *IndentedBuffer) {
	prefix := strings.Repeat(indentUnit, b.indent)
	for _, l := range other.lines {
		if l == "" {
			b.lines = append(b.lines, "")
		} else {
			b.lines = append(b.lines, prefix+l)
		}
	}
}

// WithIndent runs f with the indent level increased by one.
func (b *IndentedBuffer) WithIndent(f func()) {
	b.indent++
	f()
	b.indent--
}

// Empty reports whether nothing has been written.
func (b *IndentedBuffer) Empty() bool { return len(b.lines) == 0 }

// String returns the accumulated source, newline-terminated.
func (b *IndentedBuffer) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// BracesBuffer is an IndentedBuffer whose indent scopes open and close C++
// braces.
type BracesBuffer struct {
	IndentedBuffer
}

// WithIndent runs f inside a braced scope.
func (b *BracesBuffer) WithIndent(f func()) {
	b.OpenScope()
	f()
	b.CloseScope()
}

// OpenScope writes "{" and indents. Paired with CloseScope.
func (b *BracesBuffer) OpenScope() {
	b.Writeline("{")
	b.indent++
}

// CloseScope unindents and writes "}".
func (b *BracesBuffer) CloseScope() {
	b.indent--
	b.Writeline("}")
}

// DeferredLineBuffer holds lines tagged with the destination buffer they
// write to. Lines targeting a buffer the graph builder pruned as dead are
// dropped instead of emitted; untagged lines always survive.
type DeferredLineBuffer struct {
	inner   IndentedBuffer
	removed func(name string) bool
}

// NewDeferredLineBuffer builds a buffer that consults removed to decide
// whether a tagged line is dead.
func NewDeferredLineBuffer(removed func(string) bool) *DeferredLineBuffer {
	return &DeferredLineBuffer{removed: removed}
}

// Writeline appends line unless name refers to a pruned buffer. An empty
// name means the line is unconditional.
func (d *DeferredLineBuffer) Writeline(name, line string) {
	if name != "" && d.removed != nil && d.removed(name) {
		return
	}
	d.inner.Writeline(line)
}

// Writelines appends several lines under one tag.
func (d *DeferredLineBuffer) Writelines(name string, lines []string) {
	for _, l := range lines {
		d.Writeline(name, l)
	}
}

// Splice appends an IndentedBuffer's lines unconditionally.
func (d *DeferredLineBuffer) Splice(other *IndentedBuffer) {
	d.inner.Splice(other)
}

// Inner exposes the underlying buffer for splicing into generated code.
func (d *DeferredLineBuffer) Inner() *IndentedBuffer { return &d.inner }

// Empty reports whether nothing survived.
func (d *DeferredLineBuffer) Empty() bool { return d.inner.Empty() }
