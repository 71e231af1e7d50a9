package models

import "time"

// FeatureVector is a fixed-schema numeric encoding of one stock on one day.
// Every vector produced under the same schema version carries the identical
// key set; features the extractor could not compute hold their documented
// neutral default and are counted in MissingCount.
type FeatureVector struct {
	StockID       string             `json:"stock_id"`
	AsOfDate      time.Time          `json:"as_of_date"`
	SchemaVersion string             `json:"schema_version"`
	Values        map[string]float64 `json:"values"`
	FeatureCount  int                `json:"feature_count"`
	MissingCount  int                `json:"missing_count"`
}

// Slice returns the vector values in the order given by names, so the scaler
// and model can index positionally.
func (v *FeatureVector) Slice(names []string) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = v.Values[name]
	}
	return out
}

// QualityScore is the fraction of features computed from real data rather
// than defaults.
func (v *FeatureVector) QualityScore() float64 {
	if v.FeatureCount == 0 {
		return 0
	}
	return float64(v.FeatureCount-v.MissingCount) / float64(v.FeatureCount)
}
