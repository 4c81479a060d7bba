package executor

import "fmt"

// whatsAppLimit is the per-message body limit imposed by the WhatsApp
// transport.
const whatsAppLimit = 1600

// ChunkMessage splits body into ceil(len/1600) contiguous slices. A body
// within the limit comes back untouched as a single chunk; longer bodies
// get a "[Part i/N] " prefix on each slice so the recipient can reassemble
// them in order. The prefix rides on top of the slice, so a prefixed wire
// message can run slightly past the limit.
func ChunkMessage(body string) []string {
	if len(body) <= whatsAppLimit {
		return []string{body}
	}

	total := (len(body) + whatsAppLimit - 1) / whatsAppLimit
	chunks := make([]string, 0, total)
	for i := 0; i < total; i++ {
		start := i * whatsAppLimit
		end := start + whatsAppLimit
		if end > len(body) {
			end = len(body)
		}
		chunks = append(chunks, fmt.Sprintf("[Part %d/%d] %s", i+1, total, body[start:end]))
	}
	return chunks
}
