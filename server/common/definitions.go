package common

import (
	"github.com/nomoresecretz/flymap/common/decoder"
)

type TagDecoder interface {
	GetOp(t decoder.Tag) string
	GetOpByName(name string) (decoder.Tag, bool)
	Tags() map[string]decoder.Tag
}

const (
	ClientBuffer = 50  // updates
	FrameBuffer  = 128 // frames
)
