package models

// FeatureSet holds per-device numeric feature vectors produced by the
// feature-extraction pipeline. Keys of Features are device ids; each device
// maps feature names to values.
type FeatureSet struct {
	Features map[string]map[string]float64 `json:"features"`
}

// SampleCount returns the number of device samples in the set
func (fs *FeatureSet) SampleCount() int {
	if fs == nil {
		return 0
	}
	return len(fs.Features)
}

// DeviceIDs returns the device ids present in the set, in map order
func (fs *FeatureSet) DeviceIDs() []string {
	if fs == nil {
		return nil
	}
	ids := make([]string, 0, len(fs.Features))
	for id := range fs.Features {
		ids = append(ids, id)
	}
	return ids
}

// ValidationData is an optional held-out dataset for the validation gate:
// features plus the ground-truth health outcomes (0-100) they should map to.
type ValidationData struct {
	Features *FeatureSet        `json:"features"`
	Outcomes map[string]float64 `json:"outcomes"`
}
