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
	"github.com/gorse-io/repurpose/base"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// GenerateDummyDataset creates a synthetic dataset of nPositive + nNegative
// items and as many users. The rating matrix is +1 on the leading
// nPositive × nPositive block, -1 on the trailing nNegative × nNegative block
// and 0 elsewhere. Feature columns of positive entities are drawn from
// N(mean, std) and those of negative entities from N(-mean, std). Users take
// the first nFeatures/2 feature rows and items the next nFeatures/2.
func GenerateDummyDataset(nPositive, nNegative, nFeatures int, mean, std float64, seed int64) (Config, error) {
	if nPositive < 0 || nNegative < 0 || nPositive+nNegative == 0 {
		return Config{}, errors.NotValidf("%d positive and %d negative entities", nPositive, nNegative)
	}
	if nFeatures < 2 {
		return Config{}, errors.NotValidf("%d features", nFeatures)
	}
	if std < 0 {
		return Config{}, errors.NotValidf("standard deviation %v", std)
	}
	n := nPositive + nNegative
	half := nFeatures / 2

	ratings := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i < nPositive && j < nPositive:
				ratings.Set(i, j, Positive)
			case i >= nPositive && j >= nPositive:
				ratings.Set(i, j, Negative)
			}
		}
	}

	rng := base.NewRandomGenerator(seed)
	features := mat.NewDense(2*half, n, nil)
	if nPositive > 0 {
		features.Slice(0, 2*half, 0, nPositive).(*mat.Dense).Copy(rng.NormalMatrix(2*half, nPositive, mean, std))
	}
	if nNegative > 0 {
		features.Slice(0, 2*half, nPositive, n).(*mat.Dense).Copy(rng.NormalMatrix(2*half, nNegative, -mean, std))
	}
	return Config{
		RatingsMat: ratings,
		Users:      mat.DenseCopyOf(features.Slice(0, half, 0, n)),
		Items:      mat.DenseCopyOf(features.Slice(half, 2*half, 0, n)),
	}, nil
}
