package recorder

import "math"

// negotiateDimensions resolves the output size for a recording. A positive
// targetWidth or targetHeight pins that axis and scales the other to hold
// the source aspect ratio; with neither set the source size passes through.
func negotiateDimensions(srcWidth, srcHeight, targetWidth, targetHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return srcWidth, srcHeight
	}
	if targetWidth > 0 {
		h := int(math.Round(float64(targetWidth) * float64(srcHeight) / float64(srcWidth)))
		return targetWidth, h
	}
	if targetHeight > 0 {
		w := int(math.Round(float64(targetHeight) * float64(srcWidth) / float64(srcHeight)))
		return w, targetHeight
	}
	return srcWidth, srcHeight
}
