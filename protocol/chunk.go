// protocol/chunk.go
package protocol

// Split slices an encoded frame into write-sized chunks, in order.
// The final chunk may be shorter. maxChunkSize must be positive.
func Split(frame []byte, maxChunkSize int) [][]byte {
	if maxChunkSize <= 0 || len(frame) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, (len(frame)+maxChunkSize-1)/maxChunkSize)
	for len(frame) > maxChunkSize {
		chunks = append(chunks, frame[:maxChunkSize])
		frame = frame[maxChunkSize:]
	}
	return append(chunks, frame)
}

// Assembler accumulates notification chunks until the frame's own length
// field says the frame is complete. Transport boundaries carry no meaning.
//
// One Assembler serves one request at a time. Reset at the start of every
// request so a late chunk from a dead exchange cannot leak into the next.
type Assembler struct {
	layout Layout
	buf    []byte
}

// NewAssembler creates an empty assembler for the given layout.
func NewAssembler(layout Layout) *Assembler {
	return &Assembler{layout: layout}
}

// Feed appends one chunk. Once the buffered bytes reach the declared frame
// size it returns the complete frame and clears the buffer.
func (a *Assembler) Feed(chunk []byte) ([]byte, bool) {
	a.buf = append(a.buf, chunk...)

	total, ok := a.layout.DeclaredTotal(a.buf)
	if !ok || len(a.buf) < total {
		return nil, false
	}

	frame := a.buf[:total]
	a.buf = nil
	return frame, true
}

// Pending returns the number of buffered bytes.
func (a *Assembler) Pending() int { return len(a.buf) }

// Reset discards any partial buffer.
func (a *Assembler) Reset() { a.buf = nil }
