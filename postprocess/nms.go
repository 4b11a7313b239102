package postprocess

import "sort"

// NMS applies per-class greedy non-maximum suppression. A detection is kept
// when its IoU with every box already kept for the same class is at most
// iouThreshold. No more than maxDetections boxes are returned overall, ordered
// by descending confidence.
func NMS(dets []RawDetection, iouThreshold float32, maxDetections int) []RawDetection {
	kept := make([]RawDetection, 0, min(len(dets), max(maxDetections, 0)))
	if len(dets) == 0 || maxDetections <= 0 {
		return kept
	}

	sorted := make([]RawDetection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	// classes are visited in order of their strongest detection
	var order []int
	groups := make(map[int][]RawDetection)
	for _, d := range sorted {
		if _, ok := groups[d.ClassIndex]; !ok {
			order = append(order, d.ClassIndex)
		}
		groups[d.ClassIndex] = append(groups[d.ClassIndex], d)
	}

	for _, class := range order {
		start := len(kept)
		for _, cand := range groups[class] {
			if len(kept) >= maxDetections {
				break
			}
			suppressed := false
			for _, k := range kept[start:] {
				if IoU(cand, k) > iouThreshold {
					suppressed = true
					break
				}
			}
			if !suppressed {
				kept = append(kept, cand)
			}
		}
		if len(kept) >= maxDetections {
			break
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept
}

// IoU is the intersection over union of two axis-aligned boxes.
func IoU(a, b RawDetection) float32 {
	ax1, ay1, ax2, ay2 := a.Corners()
	bx1, by1, bx2, by2 := b.Corners()

	w := min(ax2, bx2) - max(ax1, bx1)
	h := min(ay2, by2) - max(ay1, by1)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
