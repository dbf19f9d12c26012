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

import "errors"

var (
	// ErrUnsupportedOp means an operation/dtype/mode combination has no
	// codegen rule for the active kernel variant. Callers catch it to fall
	// back to a pure-scalar kernel.
	ErrUnsupportedOp = errors.New("cppgen: unsupported operation")

	// ErrIllegalAccess means a load/store pattern violates the addressing
	// legality the active kernel variant requires.
	ErrIllegalAccess = errors.New("cppgen: illegal data access")

	// ErrBindingMismatch means a kernel was re-bound to a different
	// iteration space, which signals an upstream fusion-grouping bug.
	ErrBindingMismatch = errors.New("cppgen: iteration space binding mismatch")

	// ErrSplitDepth means a parallel or tiling depth beyond what the loop
	// nest supports was requested, which signals a scheduling bug.
	ErrSplitDepth = errors.New("cppgen: split depth exceeds loop nest")

	// ErrKernelState means an operation was issued outside the legal
	// kernel lifecycle (before binding or after finalization).
	ErrKernelState = errors.New("cppgen: operation outside kernel lifecycle")
)
