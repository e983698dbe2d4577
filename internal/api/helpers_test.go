package api

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strconv"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{20, 40, 60, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
