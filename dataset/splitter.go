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
	"github.com/samber/lo"
)

// RandomSplit splits the known ratings of a dataset into training and test
// folds. The test folds hold testRatio of the known ratings.
func RandomSplit(d *Dataset, testRatio float64, seed int64) (train, test Folds, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	ratings := d.Ratings()
	testSize := int(float64(len(ratings)) * testRatio)
	if testSize == 0 || testSize == len(ratings) {
		return nil, nil, errors.NotValidf("test ratio %v of %d ratings", testRatio, len(ratings))
	}
	perm := base.NewRandomGenerator(seed).Perm(len(ratings))
	test = pick(ratings, perm[:testSize])
	train = pick(ratings, perm[testSize:])
	return train, test, nil
}

// KFold splits the known ratings of a dataset into k test folds of almost
// equal size. The i-th training folds are all ratings out of the i-th test folds.
func KFold(d *Dataset, k int, seed int64) (trains, tests []Folds, err error) {
	ratings := d.Ratings()
	if k < 2 || k > len(ratings) {
		return nil, nil, errors.NotValidf("%d folds of %d ratings", k, len(ratings))
	}
	perm := base.NewRandomGenerator(seed).Perm(len(ratings))
	trains, tests = make([]Folds, k), make([]Folds, k)
	foldSize := len(ratings) / k
	begin, end := 0, 0
	for i := 0; i < k; i++ {
		end += foldSize
		if i < len(ratings)%k {
			end++
		}
		tests[i] = pick(ratings, perm[begin:end])
		trains[i] = pick(ratings, append(append([]int(nil), perm[:begin]...), perm[end:]...))
		begin = end
	}
	return trains, tests, nil
}

func pick(ratings Folds, index []int) Folds {
	return lo.Map(index, func(i int, _ int) Rating {
		return ratings[i]
	})
}
