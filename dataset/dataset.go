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
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/repurpose/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const (
	Negative = -1
	Unknown  = 0
	Positive = 1
)

const (
	DefaultName       = "dataset"
	DefaultSubsetName = "subset"
)

// ErrEmptyFolds is returned when a derivation is requested with no folds.
const ErrEmptyFolds = errors.ConstError("folds must not be empty")

// Rating is a labeled (item, user) pair. It is also the fold layout: column 0
// is the item index, column 1 the user index and column 2 the rating value.
type Rating struct {
	Item  int
	User  int
	Value int
}

// Folds selects or restricts a subset of the rating matrix.
type Folds []Rating

// Count returns the number of folds holding value.
func (f Folds) Count(value int) int {
	return lo.CountBy(f, func(r Rating) bool {
		return r.Value == value
	})
}

// Config holds the arguments of a Dataset. RatingsMat is items × users, Items is
// item features × items and Users is user features × users. Labels are optional
// and default to decimal positions. Name defaults to DefaultName.
type Config struct {
	RatingsMat           mat.Matrix
	Items                mat.Matrix
	Users                mat.Matrix
	Name                 string
	SameItemUserFeatures bool
	ItemLabels           []string
	UserLabels           []string
	ItemFeatureLabels    []string
	UserFeatureLabels    []string
}

// Dataset is an immutable container of an item-user rating matrix and the
// feature matrices of items and users.
type Dataset struct {
	name                 string
	sameItemUserFeatures bool
	ratingsMat           *mat.Dense
	items                *mat.Dense
	users                *mat.Dense
	itemLabels           *Labels
	userLabels           *Labels
	itemFeatureLabels    *Labels
	userFeatureLabels    *Labels
}

// New validates the config and builds a Dataset owning copies of its matrices.
func New(cfg Config) (*Dataset, error) {
	if cfg.RatingsMat == nil || cfg.Items == nil || cfg.Users == nil {
		return nil, errors.NotValidf("ratings matrix, items and users are required")
	}
	nItems, nUsers := cfg.RatingsMat.Dims()
	nItemFeatures, nItemColumns := cfg.Items.Dims()
	nUserFeatures, nUserColumns := cfg.Users.Dims()
	if nItems == 0 || nUsers == 0 {
		return nil, errors.NotValidf("empty ratings matrix")
	}
	if nItemFeatures == 0 || nUserFeatures == 0 {
		return nil, errors.NotValidf("empty feature matrix")
	}
	if nItemColumns != nItems {
		return nil, errors.NotValidf("items have %d columns but ratings matrix has %d rows", nItemColumns, nItems)
	}
	if nUserColumns != nUsers {
		return nil, errors.NotValidf("users have %d columns but ratings matrix has %d columns", nUserColumns, nUsers)
	}
	if cfg.SameItemUserFeatures && nItemFeatures != nUserFeatures {
		return nil, errors.NotValidf("items and users share features but have %d and %d features", nItemFeatures, nUserFeatures)
	}
	for i := 0; i < nItems; i++ {
		for j := 0; j < nUsers; j++ {
			if v := cfg.RatingsMat.At(i, j); !isRating(v) {
				return nil, errors.NotValidf("rating %v at (%d, %d)", v, i, j)
			}
		}
	}
	if err := checkFinite("items", cfg.Items); err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkFinite("users", cfg.Users); err != nil {
		return nil, errors.Trace(err)
	}

	d := &Dataset{
		name:                 lo.Ternary(cfg.Name == "", DefaultName, cfg.Name),
		sameItemUserFeatures: cfg.SameItemUserFeatures,
		ratingsMat:           mat.DenseCopyOf(cfg.RatingsMat),
		items:                mat.DenseCopyOf(cfg.Items),
		users:                mat.DenseCopyOf(cfg.Users),
	}
	var err error
	if d.itemLabels, err = labelsOf("item", cfg.ItemLabels, nItems); err != nil {
		return nil, errors.Trace(err)
	}
	if d.userLabels, err = labelsOf("user", cfg.UserLabels, nUsers); err != nil {
		return nil, errors.Trace(err)
	}
	if d.itemFeatureLabels, err = labelsOf("item feature", cfg.ItemFeatureLabels, nItemFeatures); err != nil {
		return nil, errors.Trace(err)
	}
	if d.userFeatureLabels, err = labelsOf("user feature", cfg.UserFeatureLabels, nUserFeatures); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("create dataset",
		zap.String("name", d.name),
		zap.Int("n_items", nItems),
		zap.Int("n_users", nUsers),
		zap.Int("n_item_features", nItemFeatures),
		zap.Int("n_user_features", nUserFeatures))
	return d, nil
}

func isRating(v float64) bool {
	return v == Negative || v == Unknown || v == Positive
}

func checkFinite(name string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NotValidf("%s feature %v at (%d, %d)", name, v, i, j)
			}
		}
	}
	return nil
}

func labelsOf(axis string, names []string, n int) (*Labels, error) {
	if names == nil {
		return DefaultLabels(n), nil
	}
	if len(names) != n {
		return nil, errors.NotValidf("%d %s labels for %d %ss", len(names), axis, n, axis)
	}
	return NewLabels(names)
}

func (d *Dataset) Name() string {
	return d.name
}

func (d *Dataset) SameItemUserFeatures() bool {
	return d.sameItemUserFeatures
}

func (d *Dataset) CountItems() int {
	r, _ := d.ratingsMat.Dims()
	return r
}

func (d *Dataset) CountUsers() int {
	_, c := d.ratingsMat.Dims()
	return c
}

func (d *Dataset) CountItemFeatures() int {
	r, _ := d.items.Dims()
	return r
}

func (d *Dataset) CountUserFeatures() int {
	r, _ := d.users.Dims()
	return r
}

// At returns the rating between an item and a user.
func (d *Dataset) At(item, user int) int {
	return int(d.ratingsMat.At(item, user))
}

// RatingsMat returns a copy of the items × users rating matrix.
func (d *Dataset) RatingsMat() *mat.Dense {
	return mat.DenseCopyOf(d.ratingsMat)
}

// Items returns a copy of the item features × items matrix.
func (d *Dataset) Items() *mat.Dense {
	return mat.DenseCopyOf(d.items)
}

// Users returns a copy of the user features × users matrix.
func (d *Dataset) Users() *mat.Dense {
	return mat.DenseCopyOf(d.users)
}

func (d *Dataset) ItemLabels() *Labels {
	return d.itemLabels
}

func (d *Dataset) UserLabels() *Labels {
	return d.userLabels
}

func (d *Dataset) ItemFeatureLabels() *Labels {
	return d.itemFeatureLabels
}

func (d *Dataset) UserFeatureLabels() *Labels {
	return d.userFeatureLabels
}

// ItemIndex returns the position of a labeled item.
func (d *Dataset) ItemIndex(label string) (int, error) {
	i, ok := d.itemLabels.Index(label)
	if !ok {
		return 0, errors.NotFoundf("item %q", label)
	}
	return i, nil
}

// UserIndex returns the position of a labeled user.
func (d *Dataset) UserIndex(label string) (int, error) {
	i, ok := d.userLabels.Index(label)
	if !ok {
		return 0, errors.NotFoundf("user %q", label)
	}
	return i, nil
}

// Ratings lists non-zero ratings in row-major order.
func (d *Dataset) Ratings() Folds {
	var ratings Folds
	nItems, nUsers := d.ratingsMat.Dims()
	for i := 0; i < nItems; i++ {
		for j := 0; j < nUsers; j++ {
			if v := d.At(i, j); v != Unknown {
				ratings = append(ratings, Rating{Item: i, User: j, Value: v})
			}
		}
	}
	return ratings
}

// Count returns the number of cells holding value.
func (d *Dataset) Count(value int) int {
	n := 0
	for _, v := range d.ratingsMat.RawMatrix().Data {
		if int(v) == value {
			n++
		}
	}
	return n
}

// Sparsity is the fraction of non-zero cells in the rating matrix.
func (d *Dataset) Sparsity() float64 {
	nItems, nUsers := d.ratingsMat.Dims()
	nonZero := d.Count(Positive) + d.Count(Negative)
	return float64(nonZero) / float64(nItems*nUsers)
}

func (d *Dataset) checkFolds(folds Folds) error {
	if len(folds) == 0 {
		log.Logger().Warn("no dataset derived from empty folds", zap.String("name", d.name))
		return errors.Trace(ErrEmptyFolds)
	}
	nItems, nUsers := d.ratingsMat.Dims()
	for _, fold := range folds {
		if fold.Item < 0 || fold.Item >= nItems {
			return errors.NotValidf("item index %d out of range [0, %d)", fold.Item, nItems)
		}
		if fold.User < 0 || fold.User >= nUsers {
			return errors.NotValidf("user index %d out of range [0, %d)", fold.User, nUsers)
		}
		if !isRating(float64(fold.Value)) {
			return errors.NotValidf("rating %d at (%d, %d)", fold.Value, fold.Item, fold.User)
		}
	}
	return nil
}

// GetFolds builds a dataset restricted to the items and users referenced by
// folds. Items and users keep ascending index order. Ratings are taken from
// folds; a pair listed more than once must repeat the same value. Pairs of the
// restricted matrix not listed in folds are unknown.
func (d *Dataset) GetFolds(folds Folds, subsetName string) (*Dataset, error) {
	if err := d.checkFolds(folds); err != nil {
		return nil, errors.Trace(err)
	}
	itemSet, userSet := mapset.NewThreadUnsafeSet[int](), mapset.NewThreadUnsafeSet[int]()
	values := make(map[[2]int]int, len(folds))
	for _, fold := range folds {
		pair := [2]int{fold.Item, fold.User}
		if value, exist := values[pair]; exist && value != fold.Value {
			return nil, errors.NotValidf("conflicting ratings %d and %d at (%d, %d)", value, fold.Value, fold.Item, fold.User)
		}
		values[pair] = fold.Value
		itemSet.Add(fold.Item)
		userSet.Add(fold.User)
	}
	items, users := itemSet.ToSlice(), userSet.ToSlice()
	slices.Sort(items)
	slices.Sort(users)
	itemPos := make(map[int]int, len(items))
	for pos, i := range items {
		itemPos[i] = pos
	}
	userPos := make(map[int]int, len(users))
	for pos, j := range users {
		userPos[j] = pos
	}

	ratingsMat := mat.NewDense(len(items), len(users), nil)
	for _, fold := range folds {
		ratingsMat.Set(itemPos[fold.Item], userPos[fold.User], float64(fold.Value))
	}
	subset := &Dataset{
		name:                 lo.Ternary(subsetName == "", DefaultSubsetName, subsetName),
		sameItemUserFeatures: d.sameItemUserFeatures,
		ratingsMat:           ratingsMat,
		items:                selectColumns(d.items, items),
		users:                selectColumns(d.users, users),
		itemLabels:           d.itemLabels.Select(items),
		userLabels:           d.userLabels.Select(users),
		itemFeatureLabels:    d.itemFeatureLabels,
		userFeatureLabels:    d.userFeatureLabels,
	}
	log.Logger().Debug("get folds",
		zap.String("name", subset.name),
		zap.Int("n_folds", len(folds)),
		zap.Int("n_items", len(items)),
		zap.Int("n_users", len(users)))
	return subset, nil
}

// MaskDataset builds a dataset of the same shape where only the ratings of
// pairs listed in folds are kept. Feature matrices are copied unchanged. The
// name of the receiver is kept if subsetName is empty.
func (d *Dataset) MaskDataset(folds Folds, subsetName string) (*Dataset, error) {
	if err := d.checkFolds(folds); err != nil {
		return nil, errors.Trace(err)
	}
	nItems, nUsers := d.ratingsMat.Dims()
	selected := bitset.New(uint(nItems * nUsers))
	for _, fold := range folds {
		selected.Set(uint(fold.Item*nUsers + fold.User))
	}
	ratingsMat := mat.NewDense(nItems, nUsers, nil)
	for i, e := selected.NextSet(0); e; i, e = selected.NextSet(i + 1) {
		item, user := int(i)/nUsers, int(i)%nUsers
		ratingsMat.Set(item, user, d.ratingsMat.At(item, user))
	}
	masked := &Dataset{
		name:                 lo.Ternary(subsetName == "", d.name, subsetName),
		sameItemUserFeatures: d.sameItemUserFeatures,
		ratingsMat:           ratingsMat,
		items:                mat.DenseCopyOf(d.items),
		users:                mat.DenseCopyOf(d.users),
		itemLabels:           d.itemLabels,
		userLabels:           d.userLabels,
		itemFeatureLabels:    d.itemFeatureLabels,
		userFeatureLabels:    d.userFeatureLabels,
	}
	log.Logger().Debug("mask dataset",
		zap.String("name", masked.name),
		zap.Uint("n_selected", selected.Count()))
	return masked, nil
}

func selectColumns(m *mat.Dense, columns []int) *mat.Dense {
	r, _ := m.Dims()
	s := mat.NewDense(r, len(columns), nil)
	for pos, j := range columns {
		for i := 0; i < r; i++ {
			s.Set(i, pos, m.At(i, j))
		}
	}
	return s
}

// Summary describes the content of a dataset.
type Summary struct {
	Name         string
	Items        int
	Users        int
	RatedItems   int
	RatedUsers   int
	Positives    int
	Negatives    int
	Unknowns     int
	ItemFeatures int
	UserFeatures int
	// Sparsity in percent.
	Sparsity float64
}

func (d *Dataset) Summary() Summary {
	ratedItems, ratedUsers := mapset.NewThreadUnsafeSet[int](), mapset.NewThreadUnsafeSet[int]()
	for _, r := range d.Ratings() {
		ratedItems.Add(r.Item)
		ratedUsers.Add(r.User)
	}
	return Summary{
		Name:         d.name,
		Items:        d.CountItems(),
		Users:        d.CountUsers(),
		RatedItems:   ratedItems.Cardinality(),
		RatedUsers:   ratedUsers.Cardinality(),
		Positives:    d.Count(Positive),
		Negatives:    d.Count(Negative),
		Unknowns:     d.Count(Unknown),
		ItemFeatures: d.CountItemFeatures(),
		UserFeatures: d.CountUserFeatures(),
		Sparsity:     d.Sparsity() * 100,
	}
}
