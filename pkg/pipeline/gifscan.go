package pipeline

import (
	"encoding/binary"

	"github.com/matzehuels/overlay/pkg/errors"
)

// gifInfo is what a GIF's block structure reveals without decompressing any
// frame.
type gifInfo struct {
	Width       int   // logical screen
	Height      int   // logical screen
	Frames      int   // image descriptors
	FramePixels int64 // sum of frame rectangle areas
}

const (
	gifExtension  = 0x21
	gifDescriptor = 0x2C
	gifTrailer    = 0x3B
)

// scanGIF walks the blocks of a GIF stream, reading the logical screen and
// every image descriptor and skipping over colour tables and LZW data.
func scanGIF(data []byte) (gifInfo, error) {
	var info gifInfo
	if len(data) < 13 || (string(data[:6]) != "GIF87a" && string(data[:6]) != "GIF89a") {
		return info, errors.New(errors.ErrCodeDecode, "not a gif")
	}
	info.Width = int(binary.LittleEndian.Uint16(data[6:8]))
	info.Height = int(binary.LittleEndian.Uint16(data[8:10]))
	pos := 13 + colorTableSize(data[10])

	for {
		if pos >= len(data) {
			return info, errors.New(errors.ErrCodeDecode, "gif truncated after %d frames", info.Frames)
		}
		var err error
		switch data[pos] {
		case gifExtension:
			pos, err = skipSubBlocks(data, pos+2)
		case gifDescriptor:
			if pos+10 > len(data) {
				return info, errors.New(errors.ErrCodeDecode, "gif truncated in frame %d", info.Frames)
			}
			w := binary.LittleEndian.Uint16(data[pos+5 : pos+7])
			h := binary.LittleEndian.Uint16(data[pos+7 : pos+9])
			info.Frames++
			info.FramePixels += int64(w) * int64(h)
			// Descriptor, local colour table, LZW minimum code size.
			pos += 10 + colorTableSize(data[pos+9]) + 1
			pos, err = skipSubBlocks(data, pos)
		case gifTrailer:
			return info, nil
		default:
			return info, errors.New(errors.ErrCodeDecode, "gif: unknown block 0x%02x at offset %d", data[pos], pos)
		}
		if err != nil {
			return info, err
		}
	}
}

// colorTableSize is the byte length of the colour table announced by flags.
func colorTableSize(flags byte) int {
	if flags&0x80 == 0 {
		return 0
	}
	return 3 << (flags&0x07 + 1)
}

// skipSubBlocks returns the offset just past the data sub-blocks at pos.
func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return pos, errors.New(errors.ErrCodeDecode, "gif truncated in data block")
		}
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, nil
		}
		pos += n
	}
}
