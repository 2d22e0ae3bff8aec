package faceapi

// Region is one detected face in a frame. BBox is [x1, y1, x2, y2] in
// frame pixels; Score is the detection confidence in [0, 1].
type Region struct {
	BBox  []float64 `json:"bbox"`
	Score float64   `json:"det_score"`
	Label string    `json:"label"`
}

// detectResponse is the payload of the detection endpoint.
type detectResponse struct {
	Count int      `json:"count"`
	Faces []Region `json:"faces"`
	Model string   `json:"model"`
}

// embedResponse is the payload of the face embedding endpoint.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}
