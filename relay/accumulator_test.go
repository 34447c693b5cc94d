package relay

import "testing"

func TestAccumulatorCollectsDeltas(t *testing.T) {
	var acc accumulator

	deltas := acc.Feed([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Xin \"}}]}\n\n"))
	if len(deltas) != 1 || deltas[0] != "Xin " {
		t.Fatalf("unexpected deltas: %v", deltas)
	}

	deltas = acc.Feed([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"chào\"}}]}\n\ndata: [DONE]\n\n"))
	if len(deltas) != 1 || deltas[0] != "chào" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}

	if acc.Content() != "Xin chào" {
		t.Fatalf("unexpected content: %q", acc.Content())
	}
	if !acc.Done() {
		t.Fatalf("expected done after [DONE]")
	}
}

func TestAccumulatorHandlesSplitLines(t *testing.T) {
	var acc accumulator

	// A data line arriving split across two reads only yields its delta
	// once the newline completes it.
	deltas := acc.Feed([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"con"))
	if len(deltas) != 0 {
		t.Fatalf("expected no deltas for partial line, got %v", deltas)
	}

	deltas = acc.Feed([]byte("tent\":\"hi\"}}]}\n"))
	if len(deltas) != 1 || deltas[0] != "hi" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if acc.Done() {
		t.Fatalf("done without [DONE]")
	}
}

func TestAccumulatorSkipsMalformedAndComments(t *testing.T) {
	var acc accumulator

	deltas := acc.Feed([]byte(": keep-alive\n\ndata: {not json}\n\ndata: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n\n"))
	if len(deltas) != 1 || deltas[0] != "ok" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if acc.Content() != "ok" {
		t.Fatalf("unexpected content: %q", acc.Content())
	}
}
