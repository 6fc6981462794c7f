package archive

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"
)

func gzipped(t *testing.T, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestSplitMembersTwoPayloads(t *testing.T) {
	buf := append(gzipped(t, "first record\n"), gzipped(t, "second record\n")...)

	members, err := SplitMembers(buf)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if string(members[0]) != "first record\n" || string(members[1]) != "second record\n" {
		t.Fatalf("payloads out of order: %q, %q", members[0], members[1])
	}
}

func TestSplitMembersSingle(t *testing.T) {
	members, err := SplitMembers(gzipped(t, "only\n"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(members) != 1 || string(members[0]) != "only\n" {
		t.Fatalf("members: %q", members)
	}
}

func TestEachMemberEarlyStop(t *testing.T) {
	buf := append(gzipped(t, "a"), gzipped(t, "b")...)
	buf = append(buf, gzipped(t, "c")...)

	var seen []string
	err := EachMember(buf, func(payload []byte) (bool, error) {
		seen = append(seen, string(payload))
		return string(payload) == "b", nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen[1] != "b" {
		t.Fatalf("early stop: %v", seen)
	}
}

func TestEachMemberCorruptBoundary(t *testing.T) {
	member := gzipped(t, "payload")
	// Truncate mid-member so the decompression of the guessed boundary fails.
	buf := append([]byte{}, member[:len(member)-4]...)
	buf = append(buf, gzipMagic1, gzipMagic2)
	buf = append(buf, member...)

	err := EachMember(buf, func([]byte) (bool, error) { return false, nil })
	if !errors.Is(err, ErrCorruptMember) {
		t.Fatalf("expected ErrCorruptMember, got %v", err)
	}
}

func TestEachMemberNonGzipBuffer(t *testing.T) {
	var calls int
	err := EachMember([]byte("plain text, no magic"), func([]byte) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil || calls != 0 {
		t.Fatalf("buffer without leading magic must scan nothing: calls=%d err=%v", calls, err)
	}
}
