// Package matte removes near-white backgrounds by setting the alpha channel
// of bright pixels to zero. It approximates background removal without a
// segmentation model: deterministic, cheap, and safe to run on every preview.
package matte

import (
	"image"
	"image/color"

	"media-studio-server/modules/common/imagex"
)

// DefaultThreshold - channel brightness above which a pixel counts as white
const DefaultThreshold = 230

// Process - decode the image, make near-white pixels transparent and
// re-encode as PNG. Pixels where R, G and B all exceed threshold get alpha
// zero; every other pixel keeps its channels untouched, so re-applying the
// matte is a no-op. The input slice is never modified.
func Process(data []byte, threshold int) ([]byte, error) {
	src, _, err := imagex.Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if int(px.R) > threshold && int(px.G) > threshold && int(px.B) > threshold {
				px.A = 0
			}
			out.SetNRGBA(x, y, px)
		}
	}

	return imagex.EncodePNG(out)
}

// ProcessDataURL - matte an inline image. Decode failures (cross-origin
// sources, truncated payloads) degrade to the original input so the preview
// still renders.
func ProcessDataURL(url string, threshold int) string {
	data, _, err := imagex.DecodeDataURL(url)
	if err != nil {
		return url
	}
	matted, err := Process(data, threshold)
	if err != nil {
		return url
	}
	return imagex.EncodeDataURL(matted)
}
