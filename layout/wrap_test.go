package layout

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

// runeWidth 每个字符宽 10 像素。
var runeWidth = MeasureFunc(func(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * 10
})

func TestWrapEmptyInputYieldsNoLines(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n  \n"} {
		if got := Wrap(in, 100, runeWidth); len(got) != 0 {
			t.Fatalf("Wrap(%q) = %q, want zero lines", in, got)
		}
	}
}

func TestWrapFitsOnOneLine(t *testing.T) {
	got := Wrap("a b c", 1000, runeWidth)
	if !reflect.DeepEqual(got, []string{"a b c"}) {
		t.Fatalf("Wrap = %q", got)
	}
}

func TestWrapGreedy(t *testing.T) {
	// 宽度 110：最多 11 个字符。
	got := Wrap("the quick brown fox jumps over the lazy dog", 110, runeWidth)
	want := []string{"the quick", "brown fox", "jumps over", "the lazy", "dog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Wrap = %q, want %q", got, want)
	}
	for _, ln := range got {
		if runeWidth(ln) > 110 {
			t.Fatalf("line %q exceeds width", ln)
		}
	}
}

func TestWrapAcceptsExactWidth(t *testing.T) {
	// "aa bb" 宽 50：恰好等于 maxWidth 时仍放在同一行。
	if got := Wrap("aa bb cc", 50, runeWidth); !reflect.DeepEqual(got, []string{"aa bb", "cc"}) {
		t.Fatalf("Wrap at exact width = %q", got)
	}
	if got := Wrap("aa bb cc", 49.5, runeWidth); !reflect.DeepEqual(got, []string{"aa", "bb", "cc"}) {
		t.Fatalf("Wrap just below width = %q", got)
	}
	if got := Wrap("abcde", 50, runeWidth); !reflect.DeepEqual(got, []string{"abcde"}) {
		t.Fatalf("single word at exact width = %q", got)
	}
}

func TestWrapCollapsesWhitespace(t *testing.T) {
	got := Wrap("  a \t b\n\nc  ", 1000, runeWidth)
	if !reflect.DeepEqual(got, []string{"a b c"}) {
		t.Fatalf("Wrap = %q", got)
	}
}

func TestWrapOverlongWordKeepsItsOwnLine(t *testing.T) {
	got := Wrap("hi incomprehensibilities ok", 50, runeWidth)
	want := []string{"hi", "incomprehensibilities", "ok"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Wrap = %q, want %q", got, want)
	}
	if got := Wrap("supercalifragilistic", 10, runeWidth); !reflect.DeepEqual(got, []string{"supercalifragilistic"}) {
		t.Fatalf("single overlong word: %q", got)
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	text := "You have provided outstanding customer service and a customer has shared the details."
	first := Wrap(text, 200, runeWidth)
	second := Wrap(text, 200, runeWidth)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Wrap not idempotent: %q vs %q", first, second)
	}
}

func TestWrapParagraphsKeepsExplicitBreaks(t *testing.T) {
	got := WrapParagraphs("Visit Date:  01/02/2024\n\nID: 12345", 1000, runeWidth)
	want := []string{"Visit Date: 01/02/2024", "ID: 12345"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WrapParagraphs = %q, want %q", got, want)
	}
}

func TestPlaceStacksLines(t *testing.T) {
	out := Place([]string{"a", "b", "c"}, 12, 100, 30, 6)
	wantY := []float64{100, 136, 172}
	if len(out.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(out.Lines))
	}
	for i, ln := range out.Lines {
		if ln.X != 12 || ln.Y != wantY[i] {
			t.Fatalf("line %d at (%g,%g), want (12,%g)", i, ln.X, ln.Y, wantY[i])
		}
	}
	if out.CursorY != 208 {
		t.Fatalf("CursorY = %g, want 208", out.CursorY)
	}

	next := Place([]string{"d"}, 12, out.CursorY, 30, 6)
	if next.Lines[0].Y < out.Lines[2].Y+30 {
		t.Fatalf("stacked block overlaps previous one")
	}
}

func TestPlaceNoLinesKeepsCursor(t *testing.T) {
	out := Place(nil, 0, 42, 30, 6)
	if len(out.Lines) != 0 || out.CursorY != 42 {
		t.Fatalf("Place(nil) = %+v", out)
	}
}
