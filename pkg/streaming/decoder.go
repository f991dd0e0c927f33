// Package streaming decodes server-sent event chat streams into plain
// text deltas. The wire format is the OpenAI-compatible streaming shape:
// "data: {json}" lines carrying choices[0].delta.content, terminated by
// a "data: [DONE]" sentinel.
package streaming

import (
	"encoding/json"
	"strings"
)

// doneSentinel marks the end of a completion stream
const doneSentinel = "[DONE]"

type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder incrementally parses an SSE byte stream. Feed it raw chunks
// as they arrive from the network; it returns the content deltas
// completed by each chunk. Chunks may split events at arbitrary byte
// boundaries, including mid-line and mid-JSON.
type Decoder struct {
	buffer string
	done   bool
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Done reports whether the stream's end sentinel has been seen
func (d *Decoder) Done() bool {
	return d.done
}

// Feed appends a raw network chunk and returns any content deltas it
// completed, in stream order. A "data:" line whose JSON payload does
// not parse yet is pushed back into the buffer to await the rest of
// the event in a later chunk.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done {
		return nil
	}
	d.buffer += string(chunk)

	var deltas []string
	for {
		idx := strings.IndexByte(d.buffer, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(d.buffer[:idx], "\r")
		d.buffer = d.buffer[idx+1:]

		delta, retry, end := d.decodeLine(line)
		if end {
			d.done = true
			return deltas
		}
		if retry {
			// Incomplete JSON payload split across chunks: restore the
			// line and wait for more bytes.
			d.buffer = line + "\n" + d.buffer
			return deltas
		}
		if delta != "" {
			deltas = append(deltas, delta)
		}
	}
	return deltas
}

// Finish drains anything left in the buffer after the stream closes.
// Payloads that still do not parse are dropped rather than retried,
// since no more bytes are coming.
func (d *Decoder) Finish() []string {
	if d.done || d.buffer == "" {
		return nil
	}

	var deltas []string
	for _, line := range strings.Split(d.buffer, "\n") {
		line = strings.TrimSuffix(line, "\r")
		delta, _, end := d.decodeLine(line)
		if end {
			break
		}
		if delta != "" {
			deltas = append(deltas, delta)
		}
	}
	d.buffer = ""
	d.done = true
	return deltas
}

// decodeLine parses a single SSE line. retry is true when the payload
// looks like a truncated event worth waiting for.
func (d *Decoder) decodeLine(line string) (delta string, retry bool, end bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false, false
	}
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok {
		return "", false, false
	}
	// Some gateways pad the sentinel with whitespace.
	if strings.TrimSpace(payload) == doneSentinel {
		return "", false, true
	}

	var chunk chunkPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", true, false
	}
	if len(chunk.Choices) == 0 {
		return "", false, false
	}
	return chunk.Choices[0].Delta.Content, false, false
}
