package logging

import "testing"

func TestBufferKeepsMostRecent(t *testing.T) {
	buffer := NewBuffer(3)
	for _, message := range []string{"a", "b", "c", "d"} {
		buffer.Add(Entry{Message: message})
	}

	entries := buffer.List()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"b", "c", "d"}
	for i, entry := range entries {
		if entry.Message != want[i] {
			t.Fatalf("entry %d: expected %q, got %q", i, want[i], entry.Message)
		}
	}
}

func TestBufferEmptyList(t *testing.T) {
	buffer := NewBuffer(4)
	if entries := buffer.List(); entries != nil {
		t.Fatalf("expected nil list, got %v", entries)
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", buffer.Len())
	}
}
