package postprocess

import (
	iface "YoloDetServer/interface"
	"YoloDetServer/preprocess"
	"fmt"
)

// Remap converts model space detections into normalized boxes on the original
// image described by lb and resolves their labels.
func Remap(dets []RawDetection, lb preprocess.LetterboxState, labels []string) []iface.DetectedObject {
	objects := make([]iface.DetectedObject, 0, len(dets))
	for _, d := range dets {
		x1, y1, x2, y2 := d.Corners()
		left, top := lb.ModelToOriginal(x1, y1)
		right, bottom := lb.ModelToOriginal(x2, y2)
		objects = append(objects, iface.DetectedObject{
			Box:        iface.Box{Left: left, Top: top, Right: right, Bottom: bottom},
			Label:      Label(labels, d.ClassIndex),
			ClassIndex: d.ClassIndex,
			Confidence: d.Confidence,
		})
	}
	return objects
}

// Label returns labels[index], or "class_<index>" when the index is outside
// the label set.
func Label(labels []string, index int) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return fmt.Sprintf("class_%d", index)
}
