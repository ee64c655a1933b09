package models

// Prediction is one entry of the classifier's top-k list.
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Result is the classifier's output document, decoded from the single JSON
// object it prints on stdout. Confidence and probabilities are percentages.
// A non-empty Error means the classifier reported failure in-band, which it
// does even with a zero exit status.
type Result struct {
	PredictedClass string       `json:"predictedClass"`
	Confidence     float64      `json:"confidence"`
	TopPredictions []Prediction `json:"topPredictions,omitempty"`
	FileName       string       `json:"fileName,omitempty"`
	PointCloud     [][]float64  `json:"pointCloud,omitempty"`
	Error          string       `json:"error,omitempty"`
}
