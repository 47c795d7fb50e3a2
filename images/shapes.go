// Package images - Image processing utilities
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a lightweight axis-aligned box in float coordinates.
//
// Depending on where it came from, the coordinates are either normalised to [0, 1] of the
// input tensor or expressed in source-image pixels. X2,Y2 are exclusive.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of r, or 0 for an inverted box.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of r, or 0 for an inverted box.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of r.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Clamp limits r to the rectangle [0, w) x [0, h).
func (r Rect) Clamp(w, h float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, w),
		Y1: clamp(r.Y1, 0, h),
		X2: clamp(r.X2, 0, w),
		Y2: clamp(r.Y2, 0, h),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU = Area of Intersection / Area of Union. A value of 1.0 means the boxes are identical, 0.0
// means they do not overlap. The intersection corners are the max of the top-left corners and
// the min of the bottom-right corners; a non-positive width or height means no overlap.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}

func clamp(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return lo
	}
	return math32.Min(math32.Max(v, lo), hi)
}
