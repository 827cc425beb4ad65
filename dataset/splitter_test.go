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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSplit(t *testing.T) {
	d := newDummyDataset(t)
	train, test, err := RandomSplit(d, 0.2, 0)
	require.NoError(t, err)
	assert.Len(t, test, 10000)
	assert.Len(t, train, 40000)
	assert.Equal(t, d.Count(Positive), train.Count(Positive)+test.Count(Positive))
	assert.Equal(t, d.Count(Negative), train.Count(Negative)+test.Count(Negative))
	assert.Equal(t, len(d.Ratings()), countDistinct(train, test))

	// masking with training folds hides test ratings
	masked, err := d.MaskDataset(train, "train")
	require.NoError(t, err)
	assert.Equal(t, len(train), masked.Count(Positive)+masked.Count(Negative))
	for _, r := range test {
		assert.Equal(t, Unknown, masked.At(r.Item, r.User))
	}

	// deterministic by seed
	train2, test2, err := RandomSplit(d, 0.2, 0)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, _, err = RandomSplit(d, 0, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, _, err = RandomSplit(d, 1, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestKFold(t *testing.T) {
	d := newDummyDataset(t)
	total := len(d.Ratings())
	trains, tests, err := KFold(d, 3, 0)
	require.NoError(t, err)
	assert.Len(t, trains, 3)
	assert.Len(t, tests, 3)
	assert.Len(t, tests[0], total/3+1)
	assert.Len(t, tests[1], total/3+1)
	assert.Len(t, tests[2], total/3)
	for i := range tests {
		assert.Len(t, trains[i], total-len(tests[i]))
		assert.Equal(t, total, countDistinct(trains[i], tests[i]))
	}
	assert.Equal(t, total, countDistinct(tests...))

	subset, err := d.GetFolds(tests[0], "fold0")
	require.NoError(t, err)
	assert.Equal(t, tests[0].Count(Positive), subset.Count(Positive))
	assert.Equal(t, tests[0].Count(Negative), subset.Count(Negative))

	_, _, err = KFold(d, 1, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func countDistinct(folds ...Folds) int {
	pairs := make(map[[2]int]struct{})
	for _, f := range folds {
		for _, r := range f {
			pairs[[2]int{r.Item, r.User}] = struct{}{}
		}
	}
	return len(pairs)
}
