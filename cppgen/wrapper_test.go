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

	"github.com/google/go-cmp/cmp"
)

func TestSourceWrapperNames(t *testing.T) {
	w := NewSourceWrapper()
	if got := w.NextKernelName(); got != "kernel_cpp_0" {
		t.Errorf("first name = %q", got)
	}
	if got := w.NextKernelName(); got != "kernel_cpp_1" {
		t.Errorf("second name = %q", got)
	}
}

func TestSourceWrapperLayout(t *testing.T) {
	w := NewSourceWrapper()
	name := w.NextKernelName()
	w.DefineKernel(name, "void f()\n{\n}\n")
	w.LoadKernel(name, `extern "C" void kernel_cpp_0(const float*)`, []string{"const float*"})
	w.GenerateKernelCall(name, []string{"x"})

	want := "void f()\n{\n}\n" +
		"\n" +
		"extern \"C\" void kernel_cpp_0(const float*);\n" +
		"kernel_cpp_0(x);\n"
	if diff := cmp.Diff(want, w.Source()); diff != "" {
		t.Errorf("source layout mismatch (-want +got):\n%s", diff)
	}
}
