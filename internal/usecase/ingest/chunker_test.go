package ingest

import (
	"strings"
	"testing"
)

func TestChunkText_ShortTextSingleWindow(t *testing.T) {
	chunks := chunkText("hello", 10, 2)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("expected single window, got %v", chunks)
	}
}

func TestChunkText_WindowsOverlap(t *testing.T) {
	text := "abcdefghij" // 10 runes
	chunks := chunkText(text, 4, 2)

	want := []string{"abcd", "cdef", "efgh", "ghij"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i] != w {
			t.Errorf("window %d: expected %q, got %q", i, w, chunks[i])
		}
	}
}

func TestChunkText_LastWindowNeverEmpty(t *testing.T) {
	// 11 runes with step 4: final window starts at 8 and holds 3 runes.
	chunks := chunkText("abcdefghijk", 4, 0)
	last := chunks[len(chunks)-1]
	if last == "" {
		t.Fatal("last window is empty")
	}
	if last != "ijk" {
		t.Errorf("expected trailing window %q, got %q", "ijk", last)
	}
}

func TestChunkText_MultibyteRunesNotSplit(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 20)
	chunks := chunkText(text, 50, 10)
	var rebuilt []rune
	for i, c := range chunks {
		runes := []rune(c)
		if i == 0 {
			rebuilt = append(rebuilt, runes...)
			continue
		}
		// Drop the overlapping prefix before concatenating.
		rebuilt = append(rebuilt, runes[10:]...)
	}
	if string(rebuilt) != text {
		t.Fatal("windows do not reassemble the original text")
	}
}

func TestChunkID(t *testing.T) {
	if got := chunkID("doc-1", 3); got != "doc-1::chunk::3" {
		t.Errorf("unexpected chunk ID %q", got)
	}
}
