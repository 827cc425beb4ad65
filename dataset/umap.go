// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"cmp"
	"math"
	"runtime"
	"slices"

	"github.com/gorse-io/repurpose/base"
	"github.com/gorse-io/repurpose/common/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	umapEpochs       = 200
	umapNegativeRate = 5
	umapLearningRate = 1.0
	// curve parameters for min_dist = 0.1 and spread = 1
	umapA = 1.577
	umapB = 0.8951
)

// projectUMAP embeds rows of x by uniform manifold approximation. The fuzzy
// k-NN graph of x is laid out by its spectral embedding, then refined by
// stochastic gradient descent with negative sampling. The returned values are
// the Laplacian eigenvalues of the initial layout.
func projectUMAP(x *mat.Dense, components, nNeighbors int, seed int64) (*mat.Dense, []float64, error) {
	n, _ := x.Dims()
	graph := fuzzySimplicialSet(x, min(nNeighbors, n-1))
	coordinates, eigenvalues, err := spectralLayout(graph, components)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	rng := base.NewRandomGenerator(seed)
	scaleLayout(coordinates, rng)
	optimizeLayout(coordinates, graph, rng)
	return coordinates, eigenvalues, nil
}

// nearestNeighbors returns the k nearest rows of each row of x, closest first.
func nearestNeighbors(x *mat.Dense, k int) ([][]int, [][]float64) {
	n, _ := x.Dims()
	indices := make([][]int, n)
	distances := make([][]float64, n)
	parallel.For(n, runtime.NumCPU(), func(i int) {
		dist := make([]float64, n)
		candidates := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				dist[j] = floats.Distance(x.RawRowView(i), x.RawRowView(j), 2)
				candidates = append(candidates, j)
			}
		}
		slices.SortStableFunc(candidates, func(a, b int) int { return cmp.Compare(dist[a], dist[b]) })
		indices[i] = candidates[:k]
		distances[i] = lo.Map(indices[i], func(j int, _ int) float64 { return dist[j] })
	})
	return indices, distances
}

// smoothDistance finds rho, the distance to the closest distinct neighbor, and
// sigma such that the memberships of the neighbors sum to log2(k).
func smoothDistance(distances []float64) (sigma, rho float64) {
	target := math.Log2(float64(len(distances)))
	for _, d := range distances {
		if d > 0 {
			rho = d
			break
		}
	}
	low, high, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < 64; iter++ {
		sum := 0.0
		for _, d := range distances {
			sum += math.Exp(-max(d-rho, 0) / mid)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			high = mid
			mid = (low + high) / 2
		} else {
			low = mid
			if math.IsInf(high, 1) {
				mid *= 2
			} else {
				mid = (low + high) / 2
			}
		}
	}
	return max(mid, 1e-3*stat.Mean(distances, nil)), rho
}

// fuzzySimplicialSet builds the symmetric membership graph of the k-NN graph
// of x. Directed memberships a and b are merged by fuzzy union a + b - ab.
func fuzzySimplicialSet(x *mat.Dense, k int) *mat.SymDense {
	n, _ := x.Dims()
	indices, distances := nearestNeighbors(x, k)
	directed := mat.NewDense(n, n, nil)
	for i := range indices {
		sigma, rho := smoothDistance(distances[i])
		for p, j := range indices[i] {
			directed.Set(i, j, math.Exp(-max(distances[i][p]-rho, 0)/sigma))
		}
	}
	graph := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := directed.At(i, j), directed.At(j, i)
			graph.SetSym(i, j, a+b-a*b)
		}
	}
	return graph
}

// spectralLayout places nodes by the eigenvectors of the smallest non-trivial
// eigenvalues of the normalized Laplacian of graph.
func spectralLayout(graph *mat.SymDense, components int) (*mat.Dense, []float64, error) {
	n := graph.SymmetricDim()
	scale := make([]float64, n)
	for i := 0; i < n; i++ {
		degree := 0.0
		for j := 0; j < n; j++ {
			degree += graph.At(i, j)
		}
		if degree > 0 {
			scale[i] = 1 / math.Sqrt(degree)
		}
	}
	laplacian := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -scale[i] * graph.At(i, j) * scale[j]
			if i == j {
				v++
			}
			laplacian.SetSym(i, j, v)
		}
	}
	var eigen mat.EigenSym
	if ok := eigen.Factorize(laplacian, true); !ok {
		return nil, nil, errors.New("spectral embedding failed")
	}
	values := eigen.Values(nil)
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	k := min(components, n-1)
	coordinates := mat.NewDense(n, components, nil)
	coordinates.Slice(0, n, 0, k).(*mat.Dense).Copy(vectors.Slice(0, n, 1, k+1))
	eigenvalues := make([]float64, components)
	copy(eigenvalues[:k], values[1:k+1])
	return coordinates, eigenvalues, nil
}

// scaleLayout maps each non-constant dimension to [0, 10] and adds jitter.
func scaleLayout(coordinates *mat.Dense, rng base.RandomGenerator) {
	_, dim := coordinates.Dims()
	for d := 0; d < dim; d++ {
		col := mat.Col(nil, d, coordinates)
		low, high := floats.Min(col), floats.Max(col)
		if high == low {
			continue
		}
		for i := range col {
			col[i] = 10*(col[i]-low)/(high-low) + rng.NormFloat64()*1e-4
		}
		coordinates.SetCol(d, col)
	}
}

func clipGradient(v float64) float64 {
	return max(-4, min(v, 4))
}

// optimizeLayout moves coordinates to attract graph neighbors and repel
// random nodes. Edges are sampled in proportion to their membership.
func optimizeLayout(coordinates *mat.Dense, graph *mat.SymDense, rng base.RandomGenerator) {
	n, dim := coordinates.Dims()
	var (
		heads, tails []int
		weights      []float64
	)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if w := graph.At(i, j); i != j && w > 0 {
				heads = append(heads, i)
				tails = append(tails, j)
				weights = append(weights, w)
			}
		}
	}
	if len(weights) == 0 {
		return
	}
	maxWeight := floats.Max(weights)
	// edges sampled less than once in all epochs are skipped
	epochsPerSample := lo.Map(weights, func(w float64, _ int) float64 {
		return lo.Ternary(w < maxWeight/umapEpochs, -1, maxWeight/w)
	})
	epochsPerNegative := lo.Map(epochsPerSample, func(e float64, _ int) float64 { return e / umapNegativeRate })
	nextSample := slices.Clone(epochsPerSample)
	nextNegative := slices.Clone(epochsPerNegative)

	for epoch := 0; epoch < umapEpochs; epoch++ {
		alpha := umapLearningRate * (1 - float64(epoch)/umapEpochs)
		for e := range heads {
			if epochsPerSample[e] < 0 || nextSample[e] > float64(epoch) {
				continue
			}
			current, other := coordinates.RawRowView(heads[e]), coordinates.RawRowView(tails[e])
			distSq := floats.Distance(current, other, 2)
			distSq *= distSq
			coeff := 0.0
			if distSq > 0 {
				coeff = -2 * umapA * umapB * math.Pow(distSq, umapB-1) / (umapA*math.Pow(distSq, umapB) + 1)
			}
			for d := 0; d < dim; d++ {
				grad := clipGradient(coeff*(current[d]-other[d])) * alpha
				current[d] += grad
				other[d] -= grad
			}
			nextSample[e] += epochsPerSample[e]

			nNegative := int((float64(epoch) - nextNegative[e]) / epochsPerNegative[e])
			for p := 0; p < nNegative; p++ {
				k := rng.Intn(n)
				if k == heads[e] {
					continue
				}
				other = coordinates.RawRowView(k)
				distSq = floats.Distance(current, other, 2)
				distSq *= distSq
				coeff = 0
				if distSq > 0 {
					coeff = 2 * umapB / ((0.001 + distSq) * (umapA*math.Pow(distSq, umapB) + 1))
				}
				for d := 0; d < dim; d++ {
					grad := 4.0
					if coeff > 0 {
						grad = clipGradient(coeff * (current[d] - other[d]))
					}
					current[d] += grad * alpha
				}
			}
			nextNegative[e] += float64(max(nNegative, 0)) * epochsPerNegative[e]
		}
	}
}
