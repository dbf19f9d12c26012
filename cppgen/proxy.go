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

// CppKernelProxy renders a scalar/vector kernel pair as one nest: the
// innermost loop splits into a lane-aligned main loop running the vector
// body and a remainder loop running the scalar body. The two bodies were
// replayed from the same nodes, so their temporary names line up and the
// remainder reuses the accumulators the main loop declared.
type CppKernelProxy struct {
	scalar *CppKernel
	vec    *CppVecKernel
}

// NewCppKernelProxy pairs a scalar kernel with its vector counterpart.
// vec may be nil; the proxy then renders the scalar kernel unchanged.
func NewCppKernelProxy(scalar *CppKernel, vec *CppVecKernel) *CppKernelProxy {
	return &CppKernelProxy{scalar: scalar, vec: vec}
}

// CodegenLoops renders the split nest into code.
func (p *CppKernelProxy) CodegenLoops(code *BracesBuffer, ws *WorkSharing) error {
	if p.vec == nil || len(p.scalar.itervars) == 0 {
		return p.scalar.CodegenLoops(code, ws)
	}
	nest, err := BuildLoopNest(p.scalar)
	if err != nil {
		return err
	}
	main, tail, err := nest.SplitWithTiling(len(p.scalar.itervars)-1, p.vec.nelements)
	if err != nil {
		return err
	}
	nest.levels[main].SimdVec = true
	if err := nest.SetKernelAt(main, p.vec); err != nil {
		return err
	}
	if err := nest.SetKernelAt(tail, p.scalar); err != nil {
		return err
	}
	p.scalar.finalized = true
	p.vec.finalized = true
	return codegenLoopsImpl(nest, code, ws)
}
