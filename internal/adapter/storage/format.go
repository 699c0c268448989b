package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

const (
	// MagicBytes identifies datafiles.
	MagicBytes = "GEDQ"
	// FormatVersion is the current datafile version.
	FormatVersion uint8 = 1
	// HeaderSize is the size of [FileHeader] on disk.
	HeaderSize = 8
	// FrameHeaderSize is the size of the header preceding every frame
	// payload: flags, raw length and stored length.
	FrameHeaderSize = 9
	// MaxFrameSize bounds the payload of a single frame.
	MaxFrameSize = 64 << 20
)

// Frame flags.
const (
	// FlagCompressed marks an LZ4 block compressed payload.
	FlagCompressed uint8 = 1 << iota
)

// FileHeader is the first block of every datafile.
type FileHeader struct {
	Magic    [4]byte // "GEDQ"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes a datafile header to w.
func WriteHeader(w io.Writer) error {
	header := FileHeader{
		Magic:   [4]byte{MagicBytes[0], MagicBytes[1], MagicBytes[2], MagicBytes[3]},
		Version: FormatVersion,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates a datafile header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidHeader, err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("%w: expected magic %s, got %q", domain.ErrInvalidHeader, MagicBytes, header.Magic[:])
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrInvalidHeader, header.Version)
	}
	return &header, nil
}

// NewFrame builds a frame around a payload. rawLen is the payload length
// before compression.
func NewFrame(flags uint8, rawLen int, payload []byte) []byte {
	frame := make([]byte, FrameHeaderSize+len(payload))
	frame[0] = flags
	binary.LittleEndian.PutUint32(frame[1:5], uint32(rawLen))
	binary.LittleEndian.PutUint32(frame[5:9], uint32(len(payload)))
	copy(frame[FrameHeaderSize:], payload)
	return frame
}

// ParseFrame splits a frame into its parts.
func ParseFrame(frame []byte) (flags uint8, rawLen int, payload []byte, err error) {
	if len(frame) < FrameHeaderSize {
		return 0, 0, nil, domain.ErrTruncatedFrame
	}
	flags = frame[0]
	rawLen = int(binary.LittleEndian.Uint32(frame[1:5]))
	stored := int(binary.LittleEndian.Uint32(frame[5:9]))
	if stored != len(frame)-FrameHeaderSize {
		return 0, 0, nil, domain.ErrTruncatedFrame
	}
	return flags, rawLen, frame[FrameHeaderSize:], nil
}

// ReadFrame reads the next whole frame from r. It returns [io.EOF] when r
// ends between frames and [domain.ErrTruncatedFrame] when it ends inside one
// or the frame length is not plausible.
func ReadFrame(r io.Reader) ([]byte, error) {
	head := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, domain.ErrTruncatedFrame
	}
	rawLen := binary.LittleEndian.Uint32(head[1:5])
	stored := binary.LittleEndian.Uint32(head[5:9])
	if stored > MaxFrameSize || rawLen > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", domain.ErrTruncatedFrame, stored)
	}
	frame := make([]byte, FrameHeaderSize+int(stored))
	copy(frame, head)
	if _, err := io.ReadFull(r, frame[FrameHeaderSize:]); err != nil {
		return nil, domain.ErrTruncatedFrame
	}
	return frame, nil
}
