// Package sink содержит приемники кадров сессии просмотра: предпросмотр,
// снимки PNG и запись Y4M. Все приемники принимают кадры YUY2 и увеличивают
// их на множитель сессии методом ближайшего соседа.
//
// Приемники на OpenCV (окно, запись mp4v) собираются с тегом gocv.
package sink

import (
	"fmt"
	"image"
	"image/color"
)

// ToRGBA преобразует кадр YUY2 (Y0 U Y1 V) в RGBA, увеличивая его в scale раз.
// Коэффициенты BT.601 для ограниченного диапазона.
func ToRGBA(data []byte, width, height, scale int) (*image.RGBA, error) {
	if err := checkFrame(data, width, height); err != nil {
		return nil, err
	}
	if scale < 1 {
		scale = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	for y := 0; y < height; y++ {
		row := data[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x++ {
			pair := (x / 2) * 4
			luma := row[x*2]
			c := yuvToRGBA(luma, row[pair+1], row[pair+3])

			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetRGBA(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return img, nil
}

func yuvToRGBA(y, u, v byte) color.RGBA {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128

	r := (298*c + 409*e + 128) >> 8
	g := (298*c - 100*d - 208*e + 128) >> 8
	b := (298*c + 516*d + 128) >> 8
	return color.RGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: 0xff}
}

func clamp8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}

func checkFrame(data []byte, width, height int) error {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return fmt.Errorf("некорректное разрешение %dx%d", width, height)
	}
	if len(data) != width*height*2 {
		return fmt.Errorf("размер кадра %d байт не соответствует %dx%d", len(data), width, height)
	}
	return nil
}
