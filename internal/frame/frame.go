// Package frame holds the fixed-size RGB pixel buffers sampled from the camera
package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Channels per pixel in a packed RGB buffer.
const Channels = 3

// Channel indexes within a pixel.
const (
	Red   = 0
	Green = 1
	Blue  = 2
)

// Frame is a W×H buffer of 8-bit RGB samples, row-major, 3 bytes per pixel.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates an all-black frame.
func New(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// FromRGB wraps a packed RGB buffer, checking its length against the dimensions.
func FromRGB(width, height int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if want := width * height * Channels; len(pix) != want {
		return nil, fmt.Errorf("rgb buffer is %d bytes, want %d for %dx%d", len(pix), want, width, height)
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FromImage samples img into a width×height frame, resizing when the bounds differ.
func FromImage(img image.Image, width, height int) *Frame {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Box)
		b = img.Bounds()
	}

	f := New(width, height)
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < height; y++ {
			row := nrgba.Pix[nrgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < width; x++ {
				si := x * 4
				f.Set(x, y, row[si], row[si+1], row[si+2])
			}
		}
		return f
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			f.Set(x, y, c.R, c.G, c.B)
		}
	}
	return f
}

func (f *Frame) offset(x, y int) int {
	return (y*f.Width + x) * Channels
}

// At returns the RGB samples at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := f.offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Sample returns a single channel sample at (x, y).
func (f *Frame) Sample(x, y, channel int) uint8 {
	return f.Pix[f.offset(x, y)+channel]
}

// Set writes the RGB samples at (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := f.offset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Fill paints the rectangle [x0,x1)×[y0,y1), clipped to the frame.
func (f *Frame) Fill(rect image.Rectangle, r, g, b uint8) {
	rect = rect.Intersect(image.Rect(0, 0, f.Width, f.Height))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			f.Set(x, y, r, g, b)
		}
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// SameSize reports whether both frames have identical dimensions.
func (f *Frame) SameSize(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height
}
