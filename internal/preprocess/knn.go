package preprocess

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KNNImputer fills a missing numeric value with the mean of that column over
// the K nearest fitted rows that observe it. Distance is Euclidean over the
// coordinates both rows observe, scaled up by total/observed coordinates.
// A row with no comparable donor falls back to the fitted column mean.
type KNNImputer struct {
	K     int       `json:"k"`
	Rows  nanRows   `json:"rows"`
	Means []float64 `json:"means"`
}

// NewKNNImputer returns an unfitted imputer using k neighbours.
func NewKNNImputer(k int) *KNNImputer {
	return &KNNImputer{K: k}
}

// Fit stores the training rows, missing values included, and the observed
// column means. A column with no observed value gets mean 0.
func (im *KNNImputer) Fit(x *mat.Dense) error {
	if im.K < 1 {
		return fmt.Errorf("knn imputer: k must be positive, got %d", im.K)
	}
	r, c := x.Dims()
	im.Rows = make(nanRows, r)
	for i := 0; i < r; i++ {
		im.Rows[i] = append([]float64(nil), x.RawRowView(i)...)
	}
	im.Means = make([]float64, c)
	for j := 0; j < c; j++ {
		observed := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := x.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) > 0 {
			im.Means[j] = stat.Mean(observed, nil)
		}
	}
	return nil
}

// EmptyColumns returns the indices of columns with no observed value at fit.
func (im *KNNImputer) EmptyColumns() []int {
	var empty []int
	for j := range im.Means {
		seen := false
		for _, row := range im.Rows {
			if !math.IsNaN(row[j]) {
				seen = true
				break
			}
		}
		if !seen {
			empty = append(empty, j)
		}
	}
	return empty
}

// Apply returns a copy of x with every NaN imputed.
func (im *KNNImputer) Apply(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	if c != len(im.Means) {
		return nil, fmt.Errorf("knn imputer: fitted on %d columns, got %d", len(im.Means), c)
	}
	out := mat.DenseCopyOf(x)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		for j := 0; j < c; j++ {
			if math.IsNaN(row[j]) {
				out.Set(i, j, im.impute(row, j))
			}
		}
	}
	return out, nil
}

type neighbour struct {
	dist  float64
	index int
}

func (im *KNNImputer) impute(row []float64, col int) float64 {
	candidates := make([]neighbour, 0, len(im.Rows))
	for idx, donor := range im.Rows {
		if math.IsNaN(donor[col]) {
			continue
		}
		d := nanEuclidean(row, donor)
		if math.IsNaN(d) {
			continue
		}
		candidates = append(candidates, neighbour{dist: d, index: idx})
	}
	if len(candidates) == 0 {
		return im.Means[col]
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})
	k := min(im.K, len(candidates))
	var sum float64
	for _, n := range candidates[:k] {
		sum += im.Rows[n.index][col]
	}
	return sum / float64(k)
}

// nanEuclidean is NaN if the rows share no observed coordinate.
func nanEuclidean(a, b []float64) float64 {
	var sum float64
	present := 0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		d := a[i] - b[i]
		sum += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(a)) / float64(present) * sum)
}

// nanRows encodes NaN as JSON null so fitted rows with gaps survive the
// artifact round trip.
type nanRows [][]float64

func (r nanRows) MarshalJSON() ([]byte, error) {
	out := make([][]*float64, len(r))
	for i, row := range r {
		out[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				out[i][j] = &row[j]
			}
		}
	}
	return json.Marshal(out)
}

func (r *nanRows) UnmarshalJSON(data []byte) error {
	var in [][]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rows := make(nanRows, len(in))
	for i, row := range in {
		rows[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				rows[i][j] = math.NaN()
			} else {
				rows[i][j] = *v
			}
		}
	}
	*r = rows
	return nil
}
