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

// Package vecisa picks the SIMD instruction set the generated kernels
// target. The pick happens once per process and is immutable afterwards;
// all vector widths in generated code derive from it.
package vecisa

import (
	"os"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// ISA describes one vector instruction set.
type ISA struct {
	Name  string // "avx512", "avx2", "neon"
	Bytes int    // vector register width in bytes
}

// Nelements returns the number of float32 lanes.
func (i *ISA) Nelements() int {
	if i == nil {
		return 0
	}
	return i.Bytes / 4
}

var (
	pickOnce sync.Once
	picked   *ISA
)

// Pick returns the vector ISA for this process, or nil when no usable SIMD
// unit is available (or KERNELGEN_NOSIMD is set). The result is computed
// once and never changes.
func Pick() *ISA {
	pickOnce.Do(func() {
		picked = detect()
	})
	return picked
}

func detect() *ISA {
	if os.Getenv("KERNELGEN_NOSIMD") != "" {
		return nil
	}
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX512F && cpu.X86.HasAVX512DQ {
			return &ISA{Name: "avx512", Bytes: 64}
		}
		if cpu.X86.HasAVX2 {
			return &ISA{Name: "avx2", Bytes: 32}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return &ISA{Name: "neon", Bytes: 16}
		}
	}
	return nil
}

// AVX512, AVX2 and NEON are fixed ISA values for tests and tools that need
// a deterministic width regardless of the host.
var (
	AVX512 = &ISA{Name: "avx512", Bytes: 64}
	AVX2   = &ISA{Name: "avx2", Bytes: 32}
	NEON   = &ISA{Name: "neon", Bytes: 16}
)
