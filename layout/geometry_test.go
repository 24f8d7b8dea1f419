package layout

import (
	"math"
	"testing"
)

func TestResolvePercentRect(t *testing.T) {
	got := Resolve(1000, 500, PercentRect{X: 10, Y: 20, W: 50, H: 30})
	want := PixelRect{Left: 100, Top: 100, Width: 500, Height: 150}
	if got != want {
		t.Fatalf("Resolve = %+v, want %+v", got, want)
	}
}

func TestResolveFloorsAndScalesOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		cw   int
		ch   int
		in   PercentRect
		want PixelRect
	}{
		{"floor", 333, 333, PercentRect{X: 50, Y: 50, W: 50, H: 50}, PixelRect{Left: 166, Top: 166, Width: 166, Height: 166}},
		{"over 100", 200, 100, PercentRect{X: 150, Y: 0, W: 200, H: 100}, PixelRect{Left: 300, Top: 0, Width: 400, Height: 100}},
		{"negative origin", 200, 100, PercentRect{X: -10, Y: -10, W: 10, H: 10}, PixelRect{Left: -20, Top: -10, Width: 20, Height: 10}},
		{"negative size", 200, 100, PercentRect{W: -5, H: -1}, PixelRect{}},
		{"zero size", 200, 100, PercentRect{X: 5, Y: 5}, PixelRect{Left: 10, Top: 5}},
		{"nan", 200, 100, PercentRect{X: math.NaN(), W: math.Inf(1), H: 10}, PixelRect{Height: 10}},
	}
	for _, tc := range cases {
		got := Resolve(tc.cw, tc.ch, tc.in)
		if got != tc.want {
			t.Fatalf("%s: Resolve = %+v, want %+v", tc.name, got, tc.want)
		}
		if got.Width < 0 || got.Height < 0 {
			t.Fatalf("%s: negative dimensions %+v", tc.name, got)
		}
	}
	if !Resolve(200, 100, PercentRect{X: 5, Y: 5}).Empty() {
		t.Fatalf("zero-size rect should be empty")
	}
}

func TestFitWideAssetIntoSquare(t *testing.T) {
	got := Fit(200, 100, PixelRect{Left: 0, Top: 0, Width: 100, Height: 100})
	want := Placement{Width: 100, Height: 50, OffsetX: 0, OffsetY: 25}
	if got != want {
		t.Fatalf("Fit = %+v, want %+v", got, want)
	}
}

func TestFitTallAssetCentersHorizontally(t *testing.T) {
	got := Fit(50, 200, PixelRect{Left: 10, Top: 20, Width: 100, Height: 100})
	want := Placement{Width: 25, Height: 100, OffsetX: 10 + 37, OffsetY: 20}
	if got != want {
		t.Fatalf("Fit = %+v, want %+v", got, want)
	}
}

func TestFitZeroHeightAssetIsTotal(t *testing.T) {
	box := PixelRect{Left: 5, Top: 5, Width: 80, Height: 40}
	got := Fit(120, 0, box)
	// 宽高比按 1 处理：放入 80x40 的框得到 40x40。
	want := Placement{Width: 40, Height: 40, OffsetX: 25, OffsetY: 5}
	if got != want {
		t.Fatalf("Fit = %+v, want %+v", got, want)
	}
}

func TestFitNeverExceedsBox(t *testing.T) {
	boxes := []PixelRect{
		{Width: 100, Height: 100},
		{Width: 1, Height: 300},
		{Width: 300, Height: 1},
		{Width: 0, Height: 50},
		{Width: 50, Height: 0},
	}
	assets := [][2]int{{200, 100}, {1, 1000}, {1000, 1}, {0, 0}, {37, 91}}
	for _, box := range boxes {
		for _, a := range assets {
			p := Fit(a[0], a[1], box)
			if p.Width > box.Width || p.Height > box.Height {
				t.Fatalf("Fit(%d,%d,%+v) = %+v exceeds box", a[0], a[1], box, p)
			}
			if box.Width >= 1 && p.Width < 1 {
				t.Fatalf("Fit(%d,%d,%+v) width collapsed: %+v", a[0], a[1], box, p)
			}
			if box.Height >= 1 && p.Height < 1 {
				t.Fatalf("Fit(%d,%d,%+v) height collapsed: %+v", a[0], a[1], box, p)
			}
		}
	}
}

func TestPixelRectEdges(t *testing.T) {
	r := PixelRect{Left: 10, Top: 20, Width: 30, Height: 0}
	if r.Right() != 40 || r.Bottom() != 20 {
		t.Fatalf("edges = (%d,%d)", r.Right(), r.Bottom())
	}
	if !r.Empty() {
		t.Fatalf("zero-height rect should be empty")
	}
}
