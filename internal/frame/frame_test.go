package frame

import (
	"image"
	"image/color"
	"testing"
)

func TestNewIsBlack(t *testing.T) {
	f := New(4, 3)
	if len(f.Pix) != 4*3*Channels {
		t.Fatalf("len(Pix) = %d, want %d", len(f.Pix), 4*3*Channels)
	}
	for i, v := range f.Pix {
		if v != 0 {
			t.Fatalf("Pix[%d] = %d, want 0", i, v)
		}
	}
}

func TestSetAt(t *testing.T) {
	f := New(5, 5)
	f.Set(2, 3, 10, 20, 30)

	r, g, b := f.At(2, 3)
	if r != 10 || g != 20 || b != 30 {
		t.Errorf("At(2,3) = (%d,%d,%d), want (10,20,30)", r, g, b)
	}
	if got := f.Sample(2, 3, Green); got != 20 {
		t.Errorf("Sample(green) = %d, want 20", got)
	}
	if r, g, b := f.At(3, 2); r|g|b != 0 {
		t.Error("transposed coordinate should be untouched")
	}
}

func TestFromRGB(t *testing.T) {
	if _, err := FromRGB(2, 2, make([]uint8, 12)); err != nil {
		t.Errorf("FromRGB valid = %v, want nil", err)
	}
	if _, err := FromRGB(2, 2, make([]uint8, 11)); err == nil {
		t.Error("FromRGB short buffer should fail")
	}
	if _, err := FromRGB(0, 2, nil); err == nil {
		t.Error("FromRGB zero width should fail")
	}
}

func TestFillClipped(t *testing.T) {
	f := New(10, 10)
	f.Fill(image.Rect(8, 8, 20, 20), 0, 255, 0)

	count := 0
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if f.Sample(x, y, Green) == 255 {
				count++
			}
		}
	}
	if count != 4 {
		t.Errorf("filled pixels = %d, want 4", count)
	}
}

func TestCloneIsDeep(t *testing.T) {
	f := New(2, 2)
	c := f.Clone()
	c.Set(0, 0, 1, 1, 1)

	if r, _, _ := f.At(0, 0); r != 0 {
		t.Error("mutating clone changed original")
	}
	if !f.SameSize(c) {
		t.Error("clone should have the same size")
	}
	if f.SameSize(New(2, 3)) {
		t.Error("2x2 and 2x3 should differ")
	}
}

func TestFromImageSameSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 7, G: 8, B: 9, A: 255})

	f := FromImage(img, 3, 2)
	if r, g, b := f.At(1, 1); r != 7 || g != 8 || b != 9 {
		t.Errorf("At(1,1) = (%d,%d,%d), want (7,8,9)", r, g, b)
	}
}

func TestFromImageResizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}

	f := FromImage(img, 128, 80)
	if f.Width != 128 || f.Height != 80 {
		t.Fatalf("size = %dx%d, want 128x80", f.Width, f.Height)
	}
	if g := f.Sample(64, 40, Green); g != 200 {
		t.Errorf("green after resize = %d, want 200", g)
	}
}
