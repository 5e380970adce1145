/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package camerad

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
)

const (
	frameWidth  = 320
	frameHeight = 240
	frameCount  = 24
	jpegQuality = 60
)

var (
	frameOnce sync.Once
	frames    [][]byte
)

// sampleFrames hands back the looped clip: a dim "parking lot at
// night" scene with a drifting bright blob, so the stream visibly
// moves. Rendered once, served forever.
func sampleFrames() [][]byte {
	frameOnce.Do(renderFrames)
	return frames
}

func renderFrames() {
	frames = make([][]byte, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
		for y := 0; y < frameHeight; y++ {
			for x := 0; x < frameWidth; x++ {
				// static-ish background with scanline banding
				v := uint8(18 + (x*7+y*13+i*5)%23)
				img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v + 6, A: 255})
			}
		}
		// the moving blob, wrapping across the frame
		cx := (i * frameWidth) / frameCount
		cy := frameHeight/2 + (i%5)*8
		for dy := -12; dy <= 12; dy++ {
			for dx := -12; dx <= 12; dx++ {
				if dx*dx+dy*dy > 144 {
					continue
				}
				x, y := (cx+dx+frameWidth)%frameWidth, cy+dy
				if y < 0 || y >= frameHeight {
					continue
				}
				img.SetRGBA(x, y, color.RGBA{R: 210, G: 205, B: 180, A: 255})
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			// image.RGBA never fails to encode; keep the slice aligned anyway
			continue
		}
		frames = append(frames, buf.Bytes())
	}
}
