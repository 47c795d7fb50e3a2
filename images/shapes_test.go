package images

import (
	"image"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{name: "Identical rectangles", r1: Rect{0, 0, 100, 100}, r2: Rect{0, 0, 100, 100}, expected: 1.0},
		{name: "No overlap", r1: Rect{0, 0, 100, 100}, r2: Rect{200, 200, 300, 300}, expected: 0.0},
		{name: "Touching edges", r1: Rect{0, 0, 100, 100}, r2: Rect{100, 0, 200, 100}, expected: 0.0},
		// intersection=2500, union=17500
		{name: "Half overlap", r1: Rect{0, 0, 100, 100}, r2: Rect{50, 50, 150, 150}, expected: 0.142857},
		// intersection=100, union=19900
		{name: "Small overlap", r1: Rect{0, 0, 100, 100}, r2: Rect{90, 90, 190, 190}, expected: 0.005025},
		{name: "One inside other", r1: Rect{0, 0, 100, 100}, r2: Rect{25, 25, 75, 75}, expected: 0.25},
		{name: "Normalised coordinates", r1: Rect{0, 0, 0.5, 0.5}, r2: Rect{0.25, 0.25, 0.75, 0.75}, expected: 0.142857},
		{name: "Degenerate box", r1: Rect{10, 10, 10, 10}, r2: Rect{10, 10, 10, 10}, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6, "IoU must be symmetric")
		})
	}
}

// TestIoU_vs_ImageRectangle compares the float implementation against image.Rectangle.
func TestIoU_vs_ImageRectangle(t *testing.T) {
	cases := [][2]image.Rectangle{
		{image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150)},
		{image.Rect(10, 20, 60, 90), image.Rect(30, 10, 80, 50)},
		{image.Rect(0, 0, 40, 40), image.Rect(100, 100, 140, 140)},
	}

	for _, c := range cases {
		a, b := c[0], c[1]
		inter := a.Intersect(b)
		interArea := float32(inter.Dx() * inter.Dy())
		union := float32(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
		want := interArea / union

		got := CalculateIoU(
			Rect{float32(a.Min.X), float32(a.Min.Y), float32(a.Max.X), float32(a.Max.Y)},
			Rect{float32(b.Min.X), float32(b.Min.Y), float32(b.Max.X), float32(b.Max.Y)},
		)
		assert.InDelta(t, want, got, 1e-5, "%v vs %v", a, b)
	}
}

func TestRect_Clamp(t *testing.T) {
	r := Rect{X1: -5, Y1: 10, X2: 700, Y2: math32.NaN()}.Clamp(600, 800)

	assert.Equal(t, Rect{X1: 0, Y1: 10, X2: 600, Y2: 0}, r)
	assert.Equal(t, float32(0), Rect{X1: 10, Y1: 10, X2: 5, Y2: 20}.Width(), "inverted boxes have no width")
	assert.Equal(t, float32(200), Rect{X1: 0, Y1: 0, X2: 10, Y2: 20}.Area())
}
