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

// IncludeLine is the first line of every generated kernel.
const IncludeLine = `#include "kernelgen_prefix.h"`

// PrefixHeader is the support header the generated kernels compile
// against. It provides the fixed-width vector wrapper plus the scalar
// helpers the operation tables reference. KVEC_LANES is set by the build
// to match the instruction set the generator picked.
const PrefixHeader = `#pragma once

#include <algorithm>
#include <atomic>
#include <cmath>
#include <cstdint>
#include <limits>
#include <random>

#ifndef KVEC_LANES
#define KVEC_LANES 8
#endif

namespace kvec {

// Vec is a fixed-width value type over KVEC_LANES lanes. The compiler is
// expected to map the per-lane loops onto the target's SIMD unit; the
// wrapper exists so the generated code is identical across widths.
template <typename T>
struct Vec {
  T lanes[KVEC_LANES];

  Vec() = default;
  explicit Vec(T v) {
    for (int i = 0; i < KVEC_LANES; ++i) lanes[i] = v;
  }

  static Vec loadu(const T* p) {
    Vec out;
    for (int i = 0; i < KVEC_LANES; ++i) out.lanes[i] = p[i];
    return out;
  }
  void store(T* p) const {
    for (int i = 0; i < KVEC_LANES; ++i) p[i] = lanes[i];
  }

  template <typename F>
  Vec map(F f) const {
    Vec out;
    for (int i = 0; i < KVEC_LANES; ++i) out.lanes[i] = f(lanes[i]);
    return out;
  }

  Vec abs() const { return map([](T x) { return std::abs(x); }); }
  Vec neg() const { return map([](T x) { return -x; }); }
  Vec exp() const { return map([](T x) { return std::exp(x); }); }
  Vec expm1() const { return map([](T x) { return std::expm1(x); }); }
  Vec log() const { return map([](T x) { return std::log(x); }); }
  Vec log1p() const { return map([](T x) { return std::log1p(x); }); }
  Vec sqrt() const { return map([](T x) { return std::sqrt(x); }); }
  Vec rsqrt() const { return map([](T x) { return T(1) / std::sqrt(x); }); }
  Vec sin() const { return map([](T x) { return std::sin(x); }); }
  Vec cos() const { return map([](T x) { return std::cos(x); }); }
  Vec tanh() const { return map([](T x) { return std::tanh(x); }); }
  Vec erf() const { return map([](T x) { return std::erf(x); }); }
  Vec lgamma() const { return map([](T x) { return std::lgamma(x); }); }
  Vec floor() const { return map([](T x) { return std::floor(x); }); }
  Vec ceil() const { return map([](T x) { return std::ceil(x); }); }
  Vec trunc() const { return map([](T x) { return std::trunc(x); }); }
  Vec round() const { return map([](T x) { return std::nearbyint(x); }); }
  Vec reciprocal() const { return map([](T x) { return T(1) / x; }); }
  Vec pow(T e) const { return map([e](T x) { return std::pow(x, e); }); }
  Vec pow(const Vec& e) const {
    Vec out;
    for (int i = 0; i < KVEC_LANES; ++i)
      out.lanes[i] = std::pow(lanes[i], e.lanes[i]);
    return out;
  }
  Vec fmod(const Vec& d) const {
    Vec out;
    for (int i = 0; i < KVEC_LANES; ++i)
      out.lanes[i] = std::fmod(lanes[i], d.lanes[i]);
    return out;
  }

  // blendv keeps a where mask lanes are truthy, b elsewhere.
  static Vec blendv(const Vec& b, const Vec& a, const Vec& mask) {
    Vec out;
    for (int i = 0; i < KVEC_LANES; ++i)
      out.lanes[i] = mask.lanes[i] != T(0) ? a.lanes[i] : b.lanes[i];
    return out;
  }
};

#define KVEC_BINOP(op)                                        \
  template <typename T>                                       \
  inline Vec<T> operator op(const Vec<T>& a, const Vec<T>& b) { \
    Vec<T> out;                                               \
    for (int i = 0; i < KVEC_LANES; ++i)                      \
      out.lanes[i] = a.lanes[i] op b.lanes[i];                \
    return out;                                               \
  }
KVEC_BINOP(+)
KVEC_BINOP(-)
KVEC_BINOP(*)
KVEC_BINOP(/)
#undef KVEC_BINOP

template <typename T>
inline Vec<T>& operator+=(Vec<T>& a, const Vec<T>& b) {
  for (int i = 0; i < KVEC_LANES; ++i) a.lanes[i] += b.lanes[i];
  return a;
}

template <typename T>
inline Vec<T> operator&&(const Vec<T>& a, const Vec<T>& b) {
  Vec<T> out;
  for (int i = 0; i < KVEC_LANES; ++i)
    out.lanes[i] = (a.lanes[i] != T(0) && b.lanes[i] != T(0)) ? T(1) : T(0);
  return out;
}

template <typename T>
inline Vec<T> operator||(const Vec<T>& a, const Vec<T>& b) {
  Vec<T> out;
  for (int i = 0; i < KVEC_LANES; ++i)
    out.lanes[i] = (a.lanes[i] != T(0) || b.lanes[i] != T(0)) ? T(1) : T(0);
  return out;
}

// operator< yields a truthy mask vector for blendv.
template <typename T>
inline Vec<T> operator<(const Vec<T>& a, const Vec<T>& b) {
  Vec<T> out;
  for (int i = 0; i < KVEC_LANES; ++i)
    out.lanes[i] = a.lanes[i] < b.lanes[i] ? T(1) : T(0);
  return out;
}

// minimum/maximum propagate NaN from either operand.
template <typename T>
inline Vec<T> minimum(const Vec<T>& a, const Vec<T>& b) {
  Vec<T> out;
  for (int i = 0; i < KVEC_LANES; ++i)
    out.lanes[i] = b.lanes[i] != b.lanes[i] ? b.lanes[i]
                                            : std::min(a.lanes[i], b.lanes[i]);
  return out;
}

template <typename T>
inline Vec<T> maximum(const Vec<T>& a, const Vec<T>& b) {
  Vec<T> out;
  for (int i = 0; i < KVEC_LANES; ++i)
    out.lanes[i] = b.lanes[i] != b.lanes[i] ? b.lanes[i]
                                            : std::max(a.lanes[i], b.lanes[i]);
  return out;
}

template <typename T>
inline Vec<T> clamp_min(const Vec<T>& a, const Vec<T>& lo) {
  return maximum(a, lo);
}

// vec_reduce_all folds the lanes of v with a pairwise combine.
template <typename T, typename F>
inline T vec_reduce_all(F combine, const Vec<T>& v) {
  Vec<T> acc = v;
  Vec<T> shifted;
  for (int width = KVEC_LANES / 2; width > 0; width /= 2) {
    for (int i = 0; i < KVEC_LANES; ++i)
      shifted.lanes[i] = acc.lanes[(i + width) % KVEC_LANES];
    acc = combine(acc, shifted);
  }
  return acc.lanes[0];
}

}  // namespace kvec

template <typename T>
inline void atomic_add(volatile T* addr, T offset) {
  typedef typename std::atomic<T> atomic_t;
  atomic_t* atomic_addr = (atomic_t*)addr;
  T expected = atomic_addr->load();
  while (!atomic_addr->compare_exchange_weak(expected, expected + offset)) {
  }
}

// mod is the sign-of-divisor remainder the graph semantics use.
template <typename T>
inline T mod(T a, T b) {
  T r = a % b;
  if (r != 0 && ((r < 0) != (b < 0))) r += b;
  return r;
}

// flag_to_float widens n bool/uint8 flags into float lanes.
template <typename T>
inline void flag_to_float(const T* src, float* dst, int64_t n) {
  for (int64_t i = 0; i < n; ++i) dst[i] = src[i] != 0 ? 1.0f : 0.0f;
}

inline float normalized_rand_cpu(int64_t seed, int64_t offset) {
  std::mt19937_64 gen(seed + offset);
  std::uniform_real_distribution<float> dist(0.0f, 1.0f);
  return dist(gen);
}

inline float randn_cpu(int64_t seed, int64_t offset) {
  std::mt19937_64 gen(seed + offset);
  std::normal_distribution<float> dist(0.0f, 1.0f);
  return dist(gen);
}
`
