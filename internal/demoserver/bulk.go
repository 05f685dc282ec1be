package demoserver

import (
	"encoding/csv"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/truthinlistings/dashboard/internal/apiclient"
	"github.com/truthinlistings/dashboard/internal/logging"
)

const maxUpload = 10 << 20

var subModels = []apiclient.SubModel{
	{Name: "gradient_boosting", Accuracy: 93.1, Weight: 0.4, Status: "active"},
	{Name: "random_forest", Accuracy: 91.7, Weight: 0.35, Status: "active"},
	{Name: "logistic_regression", Accuracy: 87.4, Weight: 0.25, Status: "active"},
}

type dataset struct {
	header  []string
	records [][]string
}

func (d dataset) column(names ...string) int {
	for i, h := range d.header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func (d dataset) number(row []string, col int) (float64, bool) {
	if col < 0 || col >= len(row) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	return f, err == nil
}

func (s *DemoServer) bulkHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	ds, err := readDataset(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("could not parse CSV: %v", err)})
		return
	}

	result := s.classify(ds)
	s.logger.Info("classified dataset",
		logging.Field{Key: "filename", Value: hdr.Filename},
		logging.Field{Key: "rows", Value: len(result.Rows)})
	writeJSON(w, http.StatusOK, result)
}

func readDataset(r io.Reader) (dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return dataset{}, errors.New("file is empty")
	}
	if err != nil {
		return dataset{}, err
	}
	ds := dataset{header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return dataset{}, err
		}
		ds.records = append(ds.records, rec)
	}
	return ds, nil
}

// classify flags rows whose rent per unit of size is implausibly low. Rows
// without usable numbers fall back to a stable hash of their content.
func (s *DemoServer) classify(ds dataset) apiclient.BulkResult {
	rentCol := ds.column("rent", "price")
	sizeCol := ds.column("size", "area", "area_sqft")

	rows := make([]apiclient.BulkRow, 0, len(ds.records))
	var confSum float64
	var real int
	for _, rec := range ds.records {
		fake := false
		conf := 0.0
		rent, okRent := ds.number(rec, rentCol)
		size, okSize := ds.number(rec, sizeCol)
		if okRent && okSize && size > 0 {
			ratio := rent / size
			fake = ratio < 10
			conf = 70 + math.Min(29, math.Abs(ratio-10)*2)
		} else {
			h := rowHash(rec)
			fake = h%3 == 0
			conf = 55 + float64(h%40)
		}
		conf = math.Round(conf*10) / 10

		row := apiclient.BulkRow{Confidence: conf}
		for c, name := range ds.header {
			var v any = ""
			if c < len(rec) {
				v = cellValue(rec[c])
			}
			row.Fields = append(row.Fields, apiclient.Field{Key: name, Value: v})
		}
		row.Prediction = apiclient.PredictionReal
		if fake {
			row.Prediction = apiclient.PredictionFraudulent
		} else {
			real++
		}
		row.Fields = append(row.Fields,
			apiclient.Field{Key: "prediction", Value: row.Prediction},
			apiclient.Field{Key: "confidence", Value: conf})
		rows = append(rows, row)
		confSum += conf
	}

	result := apiclient.BulkResult{Rows: rows}
	if len(rows) == 0 {
		return result
	}
	n := float64(len(rows))
	result.Metrics = &apiclient.Metrics{
		ModelAccuracy:     s.cfg.ModelAccuracy,
		AverageConfidence: round1(confSum / n),
		RealPercentage:    round1(100 * float64(real) / n),
		FakePercentage:    round1(100 * float64(len(rows)-real) / n),
		SubModels:         subModels,
	}
	result.EDA = exploratory(ds, rows, rentCol)
	return result
}

func exploratory(ds dataset, rows []apiclient.BulkRow, rentCol int) *apiclient.EDA {
	eda := &apiclient.EDA{}

	if rentCol >= 0 {
		var rents []float64
		var realSum, fakeSum float64
		var realN, fakeN int
		for i, rec := range ds.records {
			v, ok := ds.number(rec, rentCol)
			if !ok {
				continue
			}
			rents = append(rents, v)
			if rows[i].IsReal() {
				realSum += v
				realN++
			} else {
				fakeSum += v
				fakeN++
			}
		}
		if len(rents) > 0 {
			eda.RentDist = histogram(rents, 5)
			eda.RentVsLabel = &apiclient.RentByLabel{Real: mean(realSum, realN), Fake: mean(fakeSum, fakeN)}
		}
	}

	roomsCol := ds.column("bhk", "rooms", "bedrooms")
	floorsCol := ds.column("floors", "total_floors", "floor")
	if roomsCol >= 0 && floorsCol >= 0 {
		for _, rec := range ds.records {
			x, okX := ds.number(rec, roomsCol)
			y, okY := ds.number(rec, floorsCol)
			if okX && okY {
				eda.RoomsVsFloors = append(eda.RoomsVsFloors, apiclient.Point{X: x, Y: y})
			}
		}
	}

	eda.Correlation = correlation(ds)
	return eda
}

func histogram(values []float64, buckets int) *apiclient.Series {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / float64(buckets)
	if width == 0 {
		return &apiclient.Series{Labels: []any{formatRange(lo, hi)}, Values: []float64{float64(len(values))}}
	}
	s := &apiclient.Series{Values: make([]float64, buckets)}
	for b := 0; b < buckets; b++ {
		s.Labels = append(s.Labels, formatRange(lo+float64(b)*width, lo+float64(b+1)*width))
	}
	for _, v := range values {
		b := int((v - lo) / width)
		if b >= buckets {
			b = buckets - 1
		}
		s.Values[b]++
	}
	return s
}

func formatRange(lo, hi float64) string {
	return fmt.Sprintf("%.0f-%.0f", lo, hi)
}

func correlation(ds dataset) *apiclient.Correlation {
	var labels []string
	var cols [][]float64
	for c, name := range ds.header {
		vals := make([]float64, 0, len(ds.records))
		for _, rec := range ds.records {
			v, ok := ds.number(rec, c)
			if !ok {
				vals = nil
				break
			}
			vals = append(vals, v)
		}
		if len(vals) > 1 {
			labels = append(labels, name)
			cols = append(cols, vals)
		}
	}
	if len(cols) < 2 {
		return nil
	}
	m := make([][]float64, len(cols))
	for i := range cols {
		m[i] = make([]float64, len(cols))
		for j := range cols {
			m[i][j] = round3(pearson(cols[i], cols[j]))
		}
	}
	return &apiclient.Correlation{Labels: labels, Values: m}
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	var sa, sb float64
	for i := range a {
		sa += a[i]
		sb += b[i]
	}
	ma, mb := sa/n, sb/n
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

func cellValue(s string) any {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func rowHash(rec []string) uint32 {
	h := fnv.New32a()
	for _, f := range rec {
		_, _ = h.Write([]byte(f))
	}
	return h.Sum32()
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
