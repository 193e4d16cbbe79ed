package photo

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
)

const jpegQuality = 80

var (
	ErrNotAnImage = apperr.New(apperr.KindValidation, "photo is not a decodable image")
	ErrTooLarge   = apperr.New(apperr.KindValidation, "photo is too large")
	ErrBadDataURL = apperr.New(apperr.KindValidation, "photo data is not valid base64")
)

// Compress decodes an image, fits it inside maxDim x maxDim and re-encodes it
// as JPEG. A maxDim of zero keeps the original size.
func Compress(raw []byte, maxDim int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, ErrNotAnImage.Message)
	}
	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, ErrNotAnImage.Message)
	}
	return buf.Bytes(), nil
}

// DecodeDataURL accepts "data:image/...;base64,<payload>" or a bare base64
// payload.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, ErrBadDataURL
		}
		s = payload
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, ErrBadDataURL.Message)
	}
	return out, nil
}
