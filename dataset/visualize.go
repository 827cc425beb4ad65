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
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/gorse-io/repurpose/base"
	"github.com/gorse-io/repurpose/base/log"
	"github.com/gorse-io/repurpose/common/parallel"
	"github.com/gorse-io/repurpose/common/util"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/mds"
)

const (
	MethodPCA  = "pca"
	MethodMDS  = "mds"
	MethodUMAP = "umap"

	DefaultComponents = 2
	// DefaultNeighbors is the neighborhood size of UMAP when NNeighbors is unset.
	DefaultNeighbors = 15
	// DefaultDensePoints bounds the pairwise matrices of MDS and UMAP when
	// MaxPoints is unset.
	DefaultDensePoints = 500
)

// Prediction is a predicted score of an item-user pair.
type Prediction struct {
	Item  int
	User  int
	Value float64
}

type VisualizeOptions struct {
	// Method is MethodPCA, MethodMDS or MethodUMAP. Unset, it is MethodUMAP
	// when NNeighbors is set and MethodPCA otherwise.
	Method string
	// NNeighbors is the neighborhood size of UMAP, DefaultNeighbors when unset.
	NNeighbors int
	// Components is the number of projected dimensions, 2 by default.
	Components int
	// WithZeros includes unknown pairs.
	WithZeros bool
	// ShowErrors flags points whose predicted label disagrees with a known rating.
	ShowErrors bool
	// Scores at or above Threshold are predicted positive, others negative.
	Threshold float64
	// MaxPoints samples at most this many pairs. Zero keeps every pair for PCA
	// and DefaultDensePoints pairs for MDS and UMAP.
	MaxPoints int
	Seed      int64
}

func DefaultVisualizeOptions() VisualizeOptions {
	return VisualizeOptions{
		Method:     MethodPCA,
		Components: DefaultComponents,
		Threshold:  0.5,
	}
}

// Point is a projected item-user pair.
type Point struct {
	Item        string
	User        string
	Label       int
	Error       bool
	Coordinates []float64
}

// Plot is the projection of the feature vectors of item-user pairs.
type Plot struct {
	Method string
	// Explained holds the explained variance ratio of each PCA component, the
	// eigenvalue of each MDS dimension or the Laplacian eigenvalue of each
	// UMAP dimension.
	Explained []float64
	Points    []Point
}

// Visualize projects the concatenated features [item; user] of item-user pairs.
// Each point is labeled by its prediction if any, by its rating otherwise.
func Visualize(d *Dataset, predictions []Prediction, opts VisualizeOptions) (*Plot, error) {
	method := strings.ToLower(opts.Method)
	if method == "" {
		method = lo.Ternary(opts.NNeighbors > 0, MethodUMAP, MethodPCA)
	}
	if !slices.Contains([]string{MethodPCA, MethodMDS, MethodUMAP}, method) {
		return nil, errors.NotValidf("projection method %q", opts.Method)
	}
	if opts.NNeighbors < 0 {
		return nil, errors.NotValidf("%d neighbors", opts.NNeighbors)
	}
	nNeighbors := lo.Ternary(opts.NNeighbors == 0, DefaultNeighbors, opts.NNeighbors)
	components := lo.Ternary(opts.Components == 0, DefaultComponents, opts.Components)
	if components < 1 {
		return nil, errors.NotValidf("%d components", components)
	}
	if opts.MaxPoints < 0 {
		return nil, errors.NotValidf("%d points", opts.MaxPoints)
	}

	nItems, nUsers := d.ratingsMat.Dims()
	predicted := make(map[[2]int]int, len(predictions))
	for _, p := range predictions {
		if p.Item < 0 || p.Item >= nItems || p.User < 0 || p.User >= nUsers {
			return nil, errors.NotValidf("prediction of (%d, %d)", p.Item, p.User)
		}
		predicted[[2]int{p.Item, p.User}] = lo.Ternary(p.Value >= opts.Threshold, Positive, Negative)
	}

	var pairs [][2]int
	for i := 0; i < nItems; i++ {
		for j := 0; j < nUsers; j++ {
			if opts.WithZeros || d.At(i, j) != Unknown {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	maxPoints := opts.MaxPoints
	if maxPoints == 0 && method != MethodPCA {
		maxPoints = DefaultDensePoints
	}
	if maxPoints > 0 && len(pairs) > maxPoints {
		index := base.NewRandomGenerator(opts.Seed).Sample(0, len(pairs), maxPoints)
		slices.Sort(index)
		pairs = lo.Map(index, func(i int, _ int) [2]int { return pairs[i] })
	}
	if len(pairs) < 2 {
		return nil, errors.NotValidf("%d points to project", len(pairs))
	}

	x := d.pairFeatures(pairs)
	var (
		coordinates *mat.Dense
		explained   []float64
		err         error
	)
	switch method {
	case MethodPCA:
		coordinates, explained, err = projectPCA(x, components)
	case MethodMDS:
		coordinates, explained, err = projectMDS(x, components)
	case MethodUMAP:
		coordinates, explained, err = projectUMAP(x, components, nNeighbors, opts.Seed)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	plot := &Plot{Method: method, Explained: explained, Points: make([]Point, len(pairs))}
	for k, pair := range pairs {
		rating := d.At(pair[0], pair[1])
		label, hasPrediction := predicted[pair]
		if !hasPrediction {
			label = rating
		}
		plot.Points[k] = Point{
			Label:       label,
			Error:       opts.ShowErrors && hasPrediction && rating != Unknown && label != rating,
			Coordinates: mat.Row(nil, k, coordinates),
		}
		plot.Points[k].Item, _ = d.itemLabels.Name(pair[0])
		plot.Points[k].User, _ = d.userLabels.Name(pair[1])
	}
	log.Logger().Debug("visualize dataset",
		zap.String("name", d.name),
		zap.String("method", method),
		zap.Int("n_points", len(pairs)),
		zap.Int("n_predictions", len(predictions)))
	return plot, nil
}

// ReadPredictions reads predicted scores from CSV records of item label, user
// label and score. The first record is a header.
func ReadPredictions(r io.Reader, d *Dataset) ([]Prediction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewNotValid(err, "predictions")
	}
	predictions := make([]Prediction, 0, max(len(records)-1, 0))
	for line, record := range lo.Drop(records, 1) {
		i, err := d.ItemIndex(record[0])
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", line+2)
		}
		j, err := d.UserIndex(record[1])
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", line+2)
		}
		value, err := util.ParseFloat[float64](record[2])
		if err != nil {
			return nil, errors.NotValidf("score %q at line %d", record[2], line+2)
		}
		predictions = append(predictions, Prediction{Item: i, User: j, Value: value})
	}
	return predictions, nil
}

// pairFeatures returns a matrix whose rows are the concatenated features of pairs.
func (d *Dataset) pairFeatures(pairs [][2]int) *mat.Dense {
	nItemFeatures, nUserFeatures := d.CountItemFeatures(), d.CountUserFeatures()
	x := mat.NewDense(len(pairs), nItemFeatures+nUserFeatures, nil)
	for k, pair := range pairs {
		row := x.RawRowView(k)
		mat.Col(row[:nItemFeatures], pair[0], d.items)
		mat.Col(row[nItemFeatures:], pair[1], d.users)
	}
	return x
}

// projectPCA projects centered rows of x onto the leading principal components.
// Components beyond the rank of x are zero.
func projectPCA(x *mat.Dense, components int) (*mat.Dense, []float64, error) {
	n, dim := x.Dims()
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, nil, errors.New("principal components analysis failed")
	}
	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	k := min(components, n, dim)

	centered := mat.DenseCopyOf(x)
	for j := 0; j < dim; j++ {
		col := mat.Col(nil, j, centered)
		mean := stat.Mean(col, nil)
		floats.AddConst(-mean, col)
		centered.SetCol(j, col)
	}
	coordinates := mat.NewDense(n, components, nil)
	coordinates.Slice(0, n, 0, k).(*mat.Dense).Mul(centered, vectors.Slice(0, dim, 0, k))

	vars := pc.VarsTo(nil)
	total := floats.Sum(vars)
	explained := make([]float64, components)
	for i := 0; i < k; i++ {
		if total > 0 {
			explained[i] = vars[i] / total
		}
	}
	return coordinates, explained, nil
}

// projectMDS places rows of x by classical scaling of their Euclidean distances.
// Dimensions beyond the positive eigenvalues are zero.
func projectMDS(x *mat.Dense, components int) (*mat.Dense, []float64, error) {
	n, _ := x.Dims()
	dis := mat.NewSymDense(n, nil)
	// each job fills a distinct row of the upper triangle
	parallel.For(n, runtime.NumCPU(), func(i int) {
		for j := i + 1; j < n; j++ {
			dis.SetSym(i, j, floats.Distance(x.RawRowView(i), x.RawRowView(j), 2))
		}
	})
	var scaled mat.Dense
	eig := make([]float64, n)
	k, _ := mds.TorgersonScaling(&scaled, eig, dis)
	if scaled.IsEmpty() {
		return nil, nil, errors.New("classical scaling failed")
	}
	k = min(k, components)
	coordinates := mat.NewDense(n, components, nil)
	if k > 0 {
		coordinates.Slice(0, n, 0, k).(*mat.Dense).Copy(scaled.Slice(0, n, 0, k))
	}
	explained := make([]float64, components)
	copy(explained[:k], eig[:k])
	return coordinates, explained, nil
}

// WriteCSV writes one record per point: item, user, label, error and coordinates.
func (p *Plot) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	components := len(p.Explained)
	header := []string{"item", "user", "label", "error"}
	for i := 0; i < components; i++ {
		header = append(header, fmt.Sprintf("%s%d", p.Method, i+1))
	}
	if err := writer.Write(header); err != nil {
		return errors.Trace(err)
	}
	for _, point := range p.Points {
		record := []string{point.Item, point.User, strconv.Itoa(point.Label), strconv.FormatBool(point.Error)}
		for _, c := range point.Coordinates {
			record = append(record, strconv.FormatFloat(c, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}
