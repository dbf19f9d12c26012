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
	"os"
	"runtime"
	"strconv"

	"github.com/ajroetker/go-kernelgen/ir"
	"github.com/ajroetker/go-kernelgen/vecisa"
)

// Config controls thread-count and heuristic knobs for one compilation.
type Config struct {
	// Threads is the thread count the generated code is specialized for.
	// Values below 1 mean "use the machine's CPU count".
	Threads int
	// DynamicThreads leaves the thread count to the OpenMP runtime:
	// parallel regions carry no num_threads clause and at least one level
	// is parallelized whenever any dimension exists.
	DynamicThreads bool
	// MinChunkSize is the minimum serial work per thread below which no
	// further loop levels are parallelized.
	MinChunkSize int
	// GCCVectorizeHint emits #pragma GCC ivdep on innermost scalar
	// non-reduction loops.
	GCCVectorizeHint bool
}

// DefaultConfig reads KERNELGEN_THREADS, KERNELGEN_DYNAMIC_THREADS and
// KERNELGEN_MIN_CHUNK_SIZE from the environment, with the same defaults the
// heuristics were tuned for.
func DefaultConfig() Config {
	cfg := Config{
		Threads:          0,
		MinChunkSize:     4096,
		GCCVectorizeHint: true,
	}
	if v, err := strconv.Atoi(os.Getenv("KERNELGEN_THREADS")); err == nil && v > 0 {
		cfg.Threads = v
	}
	if os.Getenv("KERNELGEN_DYNAMIC_THREADS") != "" {
		cfg.DynamicThreads = true
	}
	if v, err := strconv.Atoi(os.Getenv("KERNELGEN_MIN_CHUNK_SIZE")); err == nil && v > 0 {
		cfg.MinChunkSize = v
	}
	return cfg
}

// Session owns the state of one compilation: configuration, the picked
// vector ISA, buffer metadata from the graph builder, and the counters
// that keep generated names unique. Sessions are not safe for concurrent
// use; the generator is a synchronous single-threaded pass.
type Session struct {
	Cfg Config
	ISA *vecisa.ISA

	dtypes  map[string]ir.DType
	removed map[string]bool

	structCounter int
}

// NewSession builds a session for one compilation. isa may be nil when no
// vector unit is available; kernels then stay scalar.
func NewSession(cfg Config, isa *vecisa.ISA) *Session {
	return &Session{
		Cfg:     cfg,
		ISA:     isa,
		dtypes:  map[string]ir.DType{},
		removed: map[string]bool{},
	}
}

// DeclareBuffer records a graph buffer's element type. Every buffer a node
// group touches must be declared before codegen.
func (s *Session) DeclareBuffer(name string, dtype ir.DType) {
	s.dtypes[name] = dtype
}

// DTypeOf returns a declared buffer's element type.
func (s *Session) DTypeOf(name string) ir.DType { return s.dtypes[name] }

// KnownBuffer reports whether the graph builder declared name.
func (s *Session) KnownBuffer(name string) bool {
	_, ok := s.dtypes[name]
	return ok
}

// MarkRemoved records that the graph builder pruned a buffer as dead;
// stores targeting it are dropped.
func (s *Session) MarkRemoved(name string) { s.removed[name] = true }

// Removed reports whether a buffer was pruned.
func (s *Session) Removed(name string) bool { return s.removed[name] }

// NextStructName hands out a unique accumulator-struct name. The counter
// belongs to the session, so generated names are reproducible per
// compilation.
func (s *Session) NextStructName() string {
	s.structCounter++
	return fmt.Sprintf("IndexValue_%d", s.structCounter)
}

// ParallelNumThreads resolves the configured thread count.
func (s *Session) ParallelNumThreads() int {
	if s.Cfg.Threads < 1 {
		return runtime.NumCPU()
	}
	return s.Cfg.Threads
}
