package detect

import (
	"image"
	"sort"
)

// DefaultThreshold is the confidence a detection must exceed to be reported.
const DefaultThreshold = 0.5

type Detection struct {
	Class      int
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Filter keeps detections strictly above threshold.
func Filter(dets []Detection, threshold float64) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Confidence > threshold {
			out = append(out, d)
		}
	}
	return out
}

// Best returns the most confident detection.
func Best(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}

	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	ua := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if ua <= 0 {
		return 0
	}
	return ia / ua
}

// NMS greedily drops boxes overlapping a more confident box of the same class.
func NMS(dets []Detection, iou float64) []Detection {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == d.Class && IoU(k.Box, d.Box) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
