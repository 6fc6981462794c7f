package archive

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
)

// History byte ranges hold back-to-back independent gzip members with no
// framing between them. Members are located by scanning for the two-byte
// gzip magic header, which can false-positive on payload bytes; a member
// that fails to decompress therefore signals a bad boundary guess, reported
// as ErrCorruptMember so callers can degrade to a not-found outcome instead
// of crashing.
var ErrCorruptMember = errors.New("corrupt gzip member boundary")

const (
	gzipMagic1 = 0x1F
	gzipMagic2 = 0x8B
)

// EachMember invokes fn with the decompressed payload of every candidate
// member in buf, in order. fn returns true to stop the scan early.
func EachMember(buf []byte, fn func(payload []byte) (bool, error)) error {
	start := 0
	for start+2 < len(buf) && buf[start] == gzipMagic1 && buf[start+1] == gzipMagic2 {
		end := start + 2
		for {
			next := bytes.IndexByte(buf[end:], gzipMagic1)
			if next < 0 || end+next+1 == len(buf) {
				// No further header, the rest is one member.
				end = len(buf)
				break
			}
			end += next
			if buf[end+1] == gzipMagic2 {
				break
			}
			end++
		}

		payload, err := gunzip(buf[start:end])
		if err != nil {
			return ErrCorruptMember
		}
		stop, err := fn(payload)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		start = end
	}
	return nil
}

// SplitMembers decompresses every member of buf. Used where the full set is
// wanted rather than an early-exit scan.
func SplitMembers(buf []byte) ([][]byte, error) {
	var members [][]byte
	err := EachMember(buf, func(payload []byte) (bool, error) {
		members = append(members, payload)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func gunzip(member []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(member))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
