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

// Command kernelgen generates C++ loop-nest kernels for a set of built-in
// demo computations and prints the result. It exercises the full pipeline:
// node replay, vectorization legality, loop splitting and OpenMP
// work-sharing.
//
// Usage:
//
//	kernelgen -kernel saxpy -threads 8
//	kernelgen -kernel list
//	kernelgen -kernel rowsum -scalar -o rowsum.cpp
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajroetker/go-kernelgen/cppgen"
	"github.com/ajroetker/go-kernelgen/expr"
	"github.com/ajroetker/go-kernelgen/ir"
	"github.com/ajroetker/go-kernelgen/vecisa"
)

type demo struct {
	describe string
	build    func(s *cppgen.Session) []ir.Node
}

var demos = map[string]demo{
	"saxpy": {
		describe: "out[i] = 2*x[i] + y[i] over 1M elements",
		build:    buildSaxpy,
	},
	"rowsum": {
		describe: "out[i] = sum_j exp(in[i][j]) over 1024x1024",
		build:    buildRowsum,
	},
	"argmax": {
		describe: "idx[i] = argmax_j in[i][j] over 128x4096",
		build:    buildArgmax,
	},
	"normalize": {
		describe: "rowsum fused with scale[i] = 1/acc[i] epilogue",
		build:    buildNormalize,
	},
}

func main() {
	var (
		kernelName = flag.String("kernel", "saxpy", "demo kernel to generate ('list' prints all)")
		threads    = flag.Int("threads", 1, "thread count to specialize for (0 = host CPUs)")
		dynamic    = flag.Bool("dynamic-threads", false, "let the OpenMP runtime pick the thread count")
		minChunk   = flag.Int("min-chunk", 4096, "minimum serial work per thread")
		scalarOnly = flag.Bool("scalar", false, "disable vectorization")
		withHeader = flag.Bool("header", false, "also print the support header")
		outPath    = flag.String("o", "", "write generated source to file instead of stdout")
	)
	flag.Parse()

	if *kernelName == "list" {
		titler := cases.Title(language.English)
		names := make([]string, 0, len(demos))
		for name := range demos {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-12s %s: %s\n", name, titler.String(name), demos[name].describe)
		}
		return
	}

	d, ok := demos[*kernelName]
	if !ok {
		log.Fatalf("unknown kernel %q (try -kernel list)", *kernelName)
	}

	isa := vecisa.Pick()
	if *scalarOnly {
		isa = nil
	}
	cfg := cppgen.Config{
		Threads:          *threads,
		DynamicThreads:   *dynamic,
		MinChunkSize:     *minChunk,
		GCCVectorizeHint: true,
	}
	session := cppgen.NewSession(cfg, isa)
	nodes := d.build(session)

	sched := cppgen.NewScheduling(session)
	if err := sched.CodegenNodes(nodes); err != nil {
		log.Fatalf("codegen %s: %v", *kernelName, err)
	}
	w := cppgen.NewSourceWrapper()
	sched.Flush(w)

	var out strings.Builder
	fmt.Fprintf(&out, "// %s kernel\n", cases.Title(language.English).String(*kernelName))
	if *withHeader {
		out.WriteString("\n// ==== kernelgen_prefix.h ====\n")
		out.WriteString(cppgen.PrefixHeader)
		out.WriteString("// ==== end of header ====\n\n")
	}
	out.WriteString(w.Source())

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(out.String()), 0o644); err != nil {
			log.Fatalf("write %s: %v", *outPath, err)
		}
		return
	}
	fmt.Print(out.String())
}

func buildSaxpy(s *cppgen.Session) []ir.Node {
	s.DeclareBuffer("x", ir.Float32)
	s.DeclareBuffer("y", ir.Float32)
	s.DeclareBuffer("out", ir.Float32)
	return []ir.Node{&ir.FuncNode{
		Ranges: ir.Group{Pointwise: []int64{1 << 20}},
		Body: func(h ir.OpsHandler, vars, _ []expr.Symbol) error {
			i := vars[0]
			x, err := h.Load("x", i)
			if err != nil {
				return err
			}
			two, err := h.Constant(2, ir.Float32)
			if err != nil {
				return err
			}
			ax, err := h.Binary(ir.OpMul, two, x)
			if err != nil {
				return err
			}
			y, err := h.Load("y", i)
			if err != nil {
				return err
			}
			sum, err := h.Binary(ir.OpAdd, ax, y)
			if err != nil {
				return err
			}
			return h.Store("out", i, sum, ir.StorePlain)
		},
	}}
}

func buildRowsum(s *cppgen.Session) []ir.Node {
	const m, n = 1024, 1024
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("out", ir.Float32)
	return []ir.Node{&ir.FuncNode{
		Ranges:    ir.Group{Pointwise: []int64{m}, Reduction: []int64{n}},
		Reduction: true,
		Body: func(h ir.OpsHandler, vars, rvars []expr.Symbol) error {
			i, j := vars[0], rvars[0]
			x, err := h.Load("in", expr.Sum(expr.Prod(i, expr.Integer(n)), j))
			if err != nil {
				return err
			}
			e, err := h.Unary(ir.OpExp, x)
			if err != nil {
				return err
			}
			return h.Reduction("out", ir.Float32, ir.Float32, ir.ReduceSum, i, e)
		},
	}}
}

func buildArgmax(s *cppgen.Session) []ir.Node {
	const m, n = 128, 4096
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("idx", ir.Int64)
	return []ir.Node{&ir.FuncNode{
		Ranges:    ir.Group{Pointwise: []int64{m}, Reduction: []int64{n}},
		Reduction: true,
		Body: func(h ir.OpsHandler, vars, rvars []expr.Symbol) error {
			i, j := vars[0], rvars[0]
			x, err := h.Load("in", expr.Sum(expr.Prod(i, expr.Integer(n)), j))
			if err != nil {
				return err
			}
			return h.Reduction("idx", ir.Int64, ir.Float32, ir.ReduceArgmax, i, x)
		},
	}}
}

func buildNormalize(s *cppgen.Session) []ir.Node {
	const m, n = 512, 2048
	s.DeclareBuffer("in", ir.Float32)
	s.DeclareBuffer("acc", ir.Float32)
	s.DeclareBuffer("scale", ir.Float32)
	reduce := &ir.FuncNode{
		Ranges:    ir.Group{Pointwise: []int64{m}, Reduction: []int64{n}},
		Reduction: true,
		Body: func(h ir.OpsHandler, vars, rvars []expr.Symbol) error {
			i, j := vars[0], rvars[0]
			x, err := h.Load("in", expr.Sum(expr.Prod(i, expr.Integer(n)), j))
			if err != nil {
				return err
			}
			return h.Reduction("acc", ir.Float32, ir.Float32, ir.ReduceSum, i, x)
		},
	}
	epilogue := &ir.FuncNode{
		Ranges: ir.Group{Pointwise: []int64{m}},
		Body: func(h ir.OpsHandler, vars, _ []expr.Symbol) error {
			i := vars[0]
			acc, err := h.Load("acc", i)
			if err != nil {
				return err
			}
			inv, err := h.Unary(ir.OpReciprocal, acc)
			if err != nil {
				return err
			}
			return h.Store("scale", i, inv, ir.StorePlain)
		},
	}
	return []ir.Node{reduce, epilogue}
}
