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

import "fmt"

// WorkSharing keeps one omp parallel region open across consecutive kernels
// that agree on the thread count, so a sequence of parallel loops pays the
// fork/join cost once. A kernel that wants a different thread count closes
// the region and opens a fresh one.
type WorkSharing struct {
	session    *Session
	code       *BracesBuffer
	inParallel bool
	numThreads int
}

// NewWorkSharing tracks parallel regions written to code.
func NewWorkSharing(s *Session, code *BracesBuffer) *WorkSharing {
	return &WorkSharing{session: s, code: code}
}

// Parallel ensures a region with the given thread count is open.
func (w *WorkSharing) Parallel(threads int) {
	if w.inParallel && threads != w.numThreads {
		w.Close()
	}
	if !w.inParallel {
		w.inParallel = true
		w.numThreads = threads
		if w.session.Cfg.DynamicThreads {
			w.code.Writeline("#pragma omp parallel")
		} else {
			w.code.Writeline(fmt.Sprintf("#pragma omp parallel num_threads(%d)", threads))
		}
		w.code.OpenScope()
	}
}

// Single marks the next block for one thread and reports whether a region
// is open (the caller then wraps the block in its own scope).
func (w *WorkSharing) Single() bool {
	if w.inParallel {
		w.code.Writeline("#pragma omp single")
	}
	return w.inParallel
}

// Close ends the open region, if any.
func (w *WorkSharing) Close() {
	if w.inParallel {
		w.code.CloseScope()
		w.inParallel = false
	}
}

// InParallel reports whether a region is open.
func (w *WorkSharing) InParallel() bool { return w.inParallel }
