package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ListingInput is the listing_data payload accepted by POST /api/analyze.
type ListingInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	AreaSqft    float64 `json:"area_sqft"`
	City        string  `json:"city"`
	Locality    string  `json:"locality"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// AnalysisResult is the risk report for one listing. Probabilities and
// module scores are fractions in [0,1].
type AnalysisResult struct {
	FraudProbability float64      `json:"fraud_probability"`
	FraudTypes       []string     `json:"fraud_types"`
	Explanations     []string     `json:"explanations"`
	ModuleScores     ModuleScores `json:"module_scores"`
}

// ModuleScore is one sub-detector's contribution.
type ModuleScore struct {
	Name  string
	Score float64
}

// ModuleScores keeps the server's key order, which is the order the
// breakdown chart is drawn in.
type ModuleScores []ModuleScore

func (m *ModuleScores) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = nil
		return nil
	}
	out := ModuleScores{}
	err := decodeObject(b, func(key string, dec *json.Decoder) error {
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("module score %q: %w", key, err)
		}
		out = append(out, ModuleScore{Name: key, Score: v})
		return nil
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}

func (m ModuleScores) MarshalJSON() ([]byte, error) {
	fields := make([]Field, len(m))
	for i, s := range m {
		fields[i] = Field{Key: s.Name, Value: s.Score}
	}
	return encodeObject(fields)
}

// Get returns the score for name.
func (m ModuleScores) Get(name string) (float64, bool) {
	for _, s := range m {
		if s.Name == name {
			return s.Score, true
		}
	}
	return 0, false
}

// RecordID accepts numeric or string identifiers from the history API.
type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

func (id RecordID) String() string { return string(id) }

// HistoryRecord is a persisted past analysis. The list endpoint fills the
// summary fields; the detail endpoint adds price, explanations and scores.
type HistoryRecord struct {
	ID               RecordID     `json:"id"`
	Timestamp        string       `json:"timestamp"`
	Title            string       `json:"title"`
	Locality         string       `json:"locality"`
	City             string       `json:"city"`
	FraudProbability float64      `json:"fraud_probability"`
	FraudTypes       []string     `json:"fraud_types"`
	Price            *float64     `json:"price,omitempty"`
	Explanations     []string     `json:"explanations,omitempty"`
	ModuleScores     ModuleScores `json:"module_scores,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Time parses the record timestamp. The API emits ISO-8601 with or without
// a zone; zone-less values are taken as UTC.
func (h HistoryRecord) Time() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, h.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ─── Bulk ──────────────────────────────────────────────────────────────

// Prediction labels emitted per bulk row.
const (
	PredictionReal       = "Real"
	PredictionFraudulent = "Fraudulent"
)

// Field is one column of a bulk row, in CSV order.
type Field struct {
	Key   string
	Value any
}

// String renders the value the way a browser would stringify it.
func (f Field) String() string {
	return FormatValue(f.Value)
}

// FormatValue stringifies a decoded JSON value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// BulkRow is one CSV row returned with its prediction. Fields holds every
// column including prediction and confidence, in the original order.
type BulkRow struct {
	Prediction string
	// Confidence is a percentage in [0,100].
	Confidence float64
	Fields     []Field
}

func (r *BulkRow) UnmarshalJSON(b []byte) error {
	r.Fields = nil
	return decodeObject(b, func(key string, dec *json.Decoder) error {
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("bulk row field %q: %w", key, err)
		}
		r.Fields = append(r.Fields, Field{Key: key, Value: v})
		switch key {
		case "prediction":
			r.Prediction = strings.TrimSpace(FormatValue(v))
		case "confidence":
			f, err := strconv.ParseFloat(FormatValue(v), 64)
			if err != nil {
				return fmt.Errorf("bulk row confidence %v: %w", v, err)
			}
			r.Confidence = f
		}
		return nil
	})
}

func (r BulkRow) MarshalJSON() ([]byte, error) {
	return encodeObject(r.Fields)
}

// IsReal reports whether the row was classified as a genuine listing.
func (r BulkRow) IsReal() bool { return r.Prediction == PredictionReal }

// SubModel describes one member of the server's ensemble.
type SubModel struct {
	Name     string  `json:"name"`
	Accuracy float64 `json:"accuracy"`
	Weight   float64 `json:"weight"`
	Status   string  `json:"status"`
}

// Metrics are aggregate percentages computed by the server.
type Metrics struct {
	ModelAccuracy     float64    `json:"model_accuracy"`
	AverageConfidence float64    `json:"average_confidence"`
	RealPercentage    float64    `json:"real_percentage"`
	FakePercentage    float64    `json:"fake_percentage"`
	SubModels         []SubModel `json:"sub_models"`
}

// Series is a labelled histogram.
type Series struct {
	Labels []any     `json:"labels"`
	Values []float64 `json:"values"`
}

// Point is a scatter chart point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RentByLabel is the mean rent per class.
type RentByLabel struct {
	Real float64 `json:"Real"`
	Fake float64 `json:"Fake"`
}

// Correlation is a square matrix with axis labels.
type Correlation struct {
	Labels []string    `json:"labels"`
	Values [][]float64 `json:"values"`
}

// EDA is the server's exploratory statistics over the uploaded dataset.
type EDA struct {
	RentDist      *Series      `json:"rent_dist,omitempty"`
	RoomsVsFloors []Point      `json:"rooms_vs_floors,omitempty"`
	RentVsLabel   *RentByLabel `json:"rent_vs_label,omitempty"`
	Correlation   *Correlation `json:"correlation,omitempty"`
}

// BulkResult is the full response of POST /api/analyze/bulk.
type BulkResult struct {
	Rows    []BulkRow `json:"data"`
	Metrics *Metrics  `json:"metrics,omitempty"`
	EDA     *EDA      `json:"eda,omitempty"`
}

// ─── ordered objects ───────────────────────────────────────────────────

func decodeObject(b []byte, each func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", kt)
		}
		if err := each(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func encodeObject(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
