// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package convert implements the pixel and sample format conversions used by
// the filter graph and the thumbnail writer.
package convert

import (
	"fmt"
	"image/color"

	"github.com/ManuGH/xgtranscode/internal/media"
)

// Pixels converts a picture to another pixel format. Geometry is preserved.
// When the format already matches, src is returned unchanged.
func Pixels(src *media.Frame, dst media.PixelFormat) (*media.Frame, error) {
	if src.PixelFormat == dst {
		return src, nil
	}
	out, err := media.NewVideoFrame(dst, src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	out.CopyProps(src)
	read, err := reader(src)
	if err != nil {
		return nil, err
	}
	write, err := writer(out)
	if err != nil {
		return nil, err
	}
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			write(x, y, read(x, y))
		}
	}
	return out, nil
}

// Scale resizes a picture with nearest-neighbour sampling, keeping its
// pixel format.
func Scale(src *media.Frame, w, h int) (*media.Frame, error) {
	if src.Width == w && src.Height == h {
		return src, nil
	}
	out, err := media.NewVideoFrame(src.PixelFormat, w, h)
	if err != nil {
		return nil, err
	}
	out.CopyProps(src)
	srcPlanes, err := src.PixelFormat.Planes(src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	dstPlanes, _ := out.PixelFormat.Planes(w, h)
	for i, dp := range dstPlanes {
		sp := srcPlanes[i]
		bpp := dp.BytesPerPixel
		for y := 0; y < dp.Height; y++ {
			sy := y * sp.Height / dp.Height
			srow := src.Data[i][sy*src.Linesize[i]:]
			drow := out.Data[i][y*out.Linesize[i]:]
			for x := 0; x < dp.Width; x++ {
				sx := x * sp.Width / dp.Width
				copy(drow[x*bpp:x*bpp+bpp], srow[sx*bpp:sx*bpp+bpp])
			}
		}
	}
	return out, nil
}

// Flip mirrors a picture horizontally and/or vertically in place.
func Flip(f *media.Frame, horizontal, vertical bool) error {
	planes, err := f.PixelFormat.Planes(f.Width, f.Height)
	if err != nil {
		return err
	}
	for i, p := range planes {
		stride := f.Linesize[i]
		bpp := p.BytesPerPixel
		if horizontal {
			for y := 0; y < p.Height; y++ {
				row := f.Data[i][y*stride : y*stride+p.RowBytes()]
				for l, r := 0, p.Width-1; l < r; l, r = l+1, r-1 {
					for k := 0; k < bpp; k++ {
						row[l*bpp+k], row[r*bpp+k] = row[r*bpp+k], row[l*bpp+k]
					}
				}
			}
		}
		if vertical {
			tmp := make([]byte, p.RowBytes())
			for top, bot := 0, p.Height-1; top < bot; top, bot = top+1, bot-1 {
				a := f.Data[i][top*stride : top*stride+p.RowBytes()]
				b := f.Data[i][bot*stride : bot*stride+p.RowBytes()]
				copy(tmp, a)
				copy(a, b)
				copy(b, tmp)
			}
		}
	}
	return nil
}

type ycc struct{ y, cb, cr uint8 }

func reader(f *media.Frame) (func(x, y int) ycc, error) {
	switch f.PixelFormat {
	case media.PixelFormatGray:
		return func(x, y int) ycc {
			return ycc{f.Data[0][y*f.Linesize[0]+x], 128, 128}
		}, nil
	case media.PixelFormatRGB24:
		return func(x, y int) ycc {
			p := f.Data[0][y*f.Linesize[0]+3*x:]
			yy, cb, cr := color.RGBToYCbCr(p[0], p[1], p[2])
			return ycc{yy, cb, cr}
		}, nil
	case media.PixelFormatYUV444P:
		return func(x, y int) ycc {
			return ycc{
				f.Data[0][y*f.Linesize[0]+x],
				f.Data[1][y*f.Linesize[1]+x],
				f.Data[2][y*f.Linesize[2]+x],
			}
		}, nil
	case media.PixelFormatYUV420P:
		return func(x, y int) ycc {
			return ycc{
				f.Data[0][y*f.Linesize[0]+x],
				f.Data[1][(y/2)*f.Linesize[1]+x/2],
				f.Data[2][(y/2)*f.Linesize[2]+x/2],
			}
		}, nil
	default:
		return nil, fmt.Errorf("cannot read pixel format %q", string(f.PixelFormat))
	}
}

func writer(f *media.Frame) (func(x, y int, c ycc), error) {
	switch f.PixelFormat {
	case media.PixelFormatGray:
		return func(x, y int, c ycc) {
			f.Data[0][y*f.Linesize[0]+x] = c.y
		}, nil
	case media.PixelFormatRGB24:
		return func(x, y int, c ycc) {
			r, g, b := color.YCbCrToRGB(c.y, c.cb, c.cr)
			p := f.Data[0][y*f.Linesize[0]+3*x:]
			p[0], p[1], p[2] = r, g, b
		}, nil
	case media.PixelFormatYUV444P:
		return func(x, y int, c ycc) {
			f.Data[0][y*f.Linesize[0]+x] = c.y
			f.Data[1][y*f.Linesize[1]+x] = c.cb
			f.Data[2][y*f.Linesize[2]+x] = c.cr
		}, nil
	case media.PixelFormatYUV420P:
		return func(x, y int, c ycc) {
			f.Data[0][y*f.Linesize[0]+x] = c.y
			if x%2 == 0 && y%2 == 0 {
				f.Data[1][(y/2)*f.Linesize[1]+x/2] = c.cb
				f.Data[2][(y/2)*f.Linesize[2]+x/2] = c.cr
			}
		}, nil
	default:
		return nil, fmt.Errorf("cannot write pixel format %q", string(f.PixelFormat))
	}
}
