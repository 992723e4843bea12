package classifier

// ClassScore is one label returned by the remote classifier.
type ClassScore struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Result holds a successful prediction. Predictions keep the order the
// remote service sent them in and Top is always Predictions[0].
type Result struct {
	ID          string       `json:"id,omitempty"`
	Iteration   string       `json:"iteration,omitempty"`
	Created     string       `json:"created,omitempty"`
	Top         ClassScore   `json:"top"`
	Predictions []ClassScore `json:"predictions"`
}

// Probabilities reduces the predictions to a label to probability map. The
// remote service is trusted to send each label once; if it does not, the
// last occurrence wins.
func (r *Result) Probabilities() map[string]float64 {
	out := make(map[string]float64, len(r.Predictions))
	for _, p := range r.Predictions {
		out[p.Label] = p.Probability
	}
	return out
}

// wire format of the prediction endpoint
type predictionResponse struct {
	ID          string              `json:"id"`
	Project     string              `json:"project"`
	Iteration   string              `json:"iteration"`
	Created     string              `json:"created"`
	Predictions *[]predictionRecord `json:"predictions"`
}

type predictionRecord struct {
	TagID       string  `json:"tagId,omitempty"`
	TagName     string  `json:"tagName"`
	Probability float64 `json:"probability"`
}
