package relay

import (
	"bytes"
	"encoding/json"
	"strings"
)

// accumulator incrementally parses the SSE bytes flowing through the
// relay, collecting the assistant's content deltas on the side. The
// relayed bytes themselves are never modified.
type accumulator struct {
	pending []byte
	content strings.Builder
	done    bool
}

// Feed consumes the next chunk of relayed bytes and returns the content
// deltas contained in the lines completed by it.
func (a *accumulator) Feed(p []byte) []string {
	a.pending = append(a.pending, p...)

	var deltas []string
	for {
		i := bytes.IndexByte(a.pending, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(a.pending[:i]))
		a.pending = a.pending[i+1:]

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			a.done = true
			continue
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta != nil && choice.Delta.Content != "" {
				deltas = append(deltas, choice.Delta.Content)
				a.content.WriteString(choice.Delta.Content)
			}
		}
	}
	return deltas
}

// Content returns the accumulated assistant text.
func (a *accumulator) Content() string {
	return a.content.String()
}

// Done reports whether the upstream terminator was seen.
func (a *accumulator) Done() bool {
	return a.done
}
