package sandbox

import "encoding/binary"

// Stream type tags in a multiplexed container output frame.
const (
	StreamStdout byte = 1
	StreamStderr byte = 2
)

// frameHeaderLen is the size of a frame header: one tag byte, three reserved
// bytes and a big-endian uint32 payload length.
const frameHeaderLen = 8

// Demux splits a multiplexed container output stream into stdout and stderr.
//
// Frames are read from the start of raw until a header or payload would run
// past the end; a truncated trailing frame is dropped. Frames tagged with
// anything other than stdout or stderr are skipped. If no frame contributes
// any text but raw is not empty, the whole buffer is returned as stdout so
// that unframed output (TTY mode, other engines) is not lost.
//
// Demux never fails.
func Demux(raw []byte) (stdout, stderr string) {
	var out, errOut []byte

	for offset := 0; offset+frameHeaderLen <= len(raw); {
		stream := raw[offset]
		size := binary.BigEndian.Uint32(raw[offset+4 : offset+frameHeaderLen])

		start := offset + frameHeaderLen
		if uint64(size) > uint64(len(raw)-start) {
			break
		}
		end := start + int(size)

		switch stream {
		case StreamStdout:
			out = append(out, raw[start:end]...)
		case StreamStderr:
			errOut = append(errOut, raw[start:end]...)
		}

		offset = end
	}

	if len(out) == 0 && len(errOut) == 0 && len(raw) > 0 {
		return string(raw), ""
	}

	return string(out), string(errOut)
}
