package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"facemonitor/internal/services/recognition"
)

// Faces draws the face box and subject label for every match onto a copy of
// the frame and returns it re-encoded as JPEG.
func Faces(img []byte, matches []recognition.Match) ([]byte, error) {
	green := color.RGBA{R: 0, G: 200, B: 0, A: 0}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, m := range matches {
		rect := image.Rect(m.Box.XMin, m.Box.YMin, m.Box.XMax, m.Box.YMax)
		if err := gocv.Rectangle(&mat, rect, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s (%.2f)", m.Subject, m.Similarity)
		pt := image.Pt(m.Box.XMin, m.Box.YMin-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, green, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	annotated := make([]byte, len(buf.GetBytes()))
	copy(annotated, buf.GetBytes())

	return annotated, nil
}
