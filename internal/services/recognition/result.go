package recognition

import "time"

// Kind is the closed set of classification outcomes. Exactly one kind is
// assigned per processed image.
type Kind int

const (
	// KindRecognized means at least one face matched a known subject.
	KindRecognized Kind = iota
	// KindUnknownFace means faces were found but none matched a known subject.
	KindUnknownFace
	// KindNoFace means the service found no face in the image.
	KindNoFace
	// KindServiceError covers non-success responses and transport failures.
	KindServiceError
	// KindTimeout means the request exceeded the client timeout. Kept separate
	// from KindServiceError so the caller can report it as degraded, not broken.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindRecognized:
		return "recognized"
	case KindUnknownFace:
		return "unknown_face"
	case KindNoFace:
		return "no_face"
	case KindServiceError:
		return "service_error"
	case KindTimeout:
		return "timeout"
	}
	return "invalid"
}

// Box is the face bounding box reported by the service.
type Box struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Match is one face matched to a known subject.
type Match struct {
	Subject    string
	Similarity float64
	Box        Box
}

// Result is the outcome of classifying a single image.
type Result struct {
	Kind       Kind
	Matches    []Match // populated for KindRecognized
	Unknown    int     // count of faces below the similarity threshold
	StatusCode int     // populated for KindServiceError on HTTP errors
	Err        string  // populated for KindServiceError and KindTimeout
	Elapsed    time.Duration
}

// Names returns the recognized subject names in match order.
func (r Result) Names() []string {
	names := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		names = append(names, m.Subject)
	}
	return names
}
