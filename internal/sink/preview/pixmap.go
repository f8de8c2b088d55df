package preview

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	xdraw "golang.org/x/image/draw"
)

type pixmapFormat struct {
	bitsPerPixel uint8
	scanlinePad  uint8
}

func findFormat(formats []xproto.Format, depth byte) (pixmapFormat, error) {
	for _, f := range formats {
		if f.Depth == depth {
			return pixmapFormat{bitsPerPixel: f.BitsPerPixel, scanlinePad: f.ScanlinePad}, nil
		}
	}
	return pixmapFormat{}, fmt.Errorf("no pixmap format for depth %d", depth)
}

// fit centers src inside a w x h window, keeping its aspect ratio
func fit(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return image.Rectangle{}
	}
	scale := float64(w) / float64(sw)
	if s := float64(h) / float64(sh); s < scale {
		scale = s
	}
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	x, y := (w-dw)/2, (h-dh)/2
	return image.Rect(x, y, x+dw, y+dh)
}

// scaleInto copies src into dst's rect with nearest-neighbor sampling
func scaleInto(dst *image.RGBA, rect image.Rectangle, src *image.RGBA) {
	if rect.Empty() {
		return
	}
	xdraw.NearestNeighbor.Scale(dst, rect, src, src.Bounds(), xdraw.Src, nil)
}

// zpixmap converts img to the server's ZPixmap layout: BGRx for 32bpp,
// BGR for 24bpp, rows padded to the scanline unit
func zpixmap(img *image.RGBA, f pixmapFormat, depth byte) ([]byte, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	bpp := int(f.bitsPerPixel) / 8
	if bpp != 3 && bpp != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bpp)
	}
	pad := int(f.scanlinePad) / 8
	if pad == 0 {
		pad = 1
	}
	stride := ((w*bpp + pad - 1) / pad) * pad

	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		row := y * stride
		for x := 0; x < w; x++ {
			s := img.PixOffset(x, y)
			d := row + x*bpp
			data[d] = img.Pix[s+2]
			data[d+1] = img.Pix[s+1]
			data[d+2] = img.Pix[s]
			if bpp == 4 && depth == 32 {
				data[d+3] = img.Pix[s+3]
			}
		}
	}
	return data, nil
}
