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

// Package cppgen generates multi-threaded, SIMD-vectorized C++ kernels for
// fused element-wise/reduction tensor computations. It consumes node groups
// through the ir package, decides vectorization legality with a dry-run
// checker, tiles the innermost loop into a vector main loop plus scalar
// tail, and emits OpenMP work-sharing and reduction directives.
package cppgen

import "github.com/ajroetker/go-kernelgen/ir"

// IndexType is the C type of every loop index and bound.
const IndexType = "int64_t"

var dtypeToCpp = map[ir.DType]string{
	ir.Float32:  "float",
	ir.Float64:  "double",
	ir.Float16:  "half",
	ir.BFloat16: "bfloat16",
	ir.Int64:    "int64_t",
	ir.Int32:    "int32_t",
	ir.Int16:    "int16_t",
	ir.Int8:     "int8_t",
	ir.Uint8:    "uint8_t",
	ir.Bool:     "bool",
}

// CppType returns the C++ spelling of an element type.
func CppType(d ir.DType) string { return dtypeToCpp[d] }
