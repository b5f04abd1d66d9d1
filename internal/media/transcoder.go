package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Defaults used when a Transcoder field is zero.
const (
	DefaultMaxWidth = 800
	DefaultQuality  = 70
)

// Transcoder re-encodes images as width-capped JPEG. Images narrower than
// MaxWidth are never upscaled. Transparent areas are flattened onto white.
type Transcoder struct {
	MaxWidth int
	Quality  int
}

func (t Transcoder) maxWidth() int {
	if t.MaxWidth <= 0 {
		return DefaultMaxWidth
	}
	return t.MaxWidth
}

func (t Transcoder) quality() int {
	if t.Quality <= 0 || t.Quality > 100 {
		return DefaultQuality
	}
	return t.Quality
}

// Encode decodes any registered image format from r and writes the
// transcoded JPEG to w. Errors wrap ErrTranscode.
func (t Transcoder) Encode(w io.Writer, r io.Reader) error {
	src, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrTranscode, err)
	}

	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: empty image", ErrTranscode)
	}
	if mw := t.maxWidth(); width > mw {
		height = max(1, height*mw/width)
		width = mw
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	if err := jpeg.Encode(w, dst, &jpeg.Options{Quality: t.quality()}); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrTranscode, err)
	}
	return nil
}

// TranscodeFile reads src and writes the JPEG rendition to dst. On failure
// dst is removed and src is left untouched.
func (t Transcoder) TranscodeFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%w: %v", ErrTranscode, cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	return t.Encode(out, in)
}
