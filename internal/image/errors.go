package image

import "errors"

var (
	ErrDownload  = errors.New("download failed")
	ErrBadDigest = errors.New("layer digest mismatch")
	ErrUnpack    = errors.New("layer unpack failed")
)
