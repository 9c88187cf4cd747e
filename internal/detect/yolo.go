package detect

import (
	"fmt"
	"image"
	"math"
)

// YOLOOutput describes a YOLOv8 head tensor of shape [1, 4+classes, anchors],
// stored row-major: row r holds attribute r for every anchor.
type YOLOOutput struct {
	Data    []float32
	Classes int
	Anchors int
	// ScaleX and ScaleY map model-input pixels back to frame pixels.
	ScaleX float64
	ScaleY float64
}

// DecodeYOLO turns the raw head into detections above threshold.
func DecodeYOLO(out YOLOOutput, labels []string, threshold float64) ([]Detection, error) {
	rows := 4 + out.Classes
	if out.Classes <= 0 || out.Anchors <= 0 {
		return nil, fmt.Errorf("invalid yolo shape: classes=%d anchors=%d", out.Classes, out.Anchors)
	}
	if len(out.Data) < rows*out.Anchors {
		return nil, fmt.Errorf("yolo tensor too short: got %d, want %d", len(out.Data), rows*out.Anchors)
	}

	sx, sy := out.ScaleX, out.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	at := func(row, col int) float64 {
		return float64(out.Data[row*out.Anchors+col])
	}

	var dets []Detection
	for a := 0; a < out.Anchors; a++ {
		cls, score := -1, 0.0
		for c := 0; c < out.Classes; c++ {
			if s := at(4+c, a); s > score {
				cls, score = c, s
			}
		}
		if cls < 0 || score <= threshold {
			continue
		}

		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		box := image.Rect(
			int(math.Round((cx-w/2)*sx)),
			int(math.Round((cy-h/2)*sy)),
			int(math.Round((cx+w/2)*sx)),
			int(math.Round((cy+h/2)*sy)),
		)

		label := fmt.Sprintf("class_%d", cls)
		if cls < len(labels) {
			label = labels[cls]
		}

		dets = append(dets, Detection{
			Class:      cls,
			Label:      label,
			Confidence: math.Min(score, 1),
			Box:        box,
		})
	}

	return dets, nil
}
