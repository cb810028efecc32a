package avc

// Scanner splits a continuous Annex-B byte stream into access units.
//
// The producing encoder is configured to insert access unit delimiters
// (NAL type 9), so a delimiter always marks the start of the next access
// unit. Returned slices alias the scanner's internal buffer, which is
// compacted and reused on the next Feed call: callers must not retain them.
type Scanner struct {
	buf []byte
}

// NewScanner creates a scanner with a preallocated buffer.
func NewScanner() *Scanner {
	return &Scanner{buf: make([]byte, 0, 256*1024)}
}

// Feed appends stream bytes and returns the complete access units they
// finish. The trailing, still-incomplete access unit stays buffered.
func (s *Scanner) Feed(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	// Locate the start positions of all access unit delimiters.
	var bounds []int
	offset := 0
	for offset < len(s.buf) {
		scLen := startCodeLen(s.buf[offset:])
		if scLen == 0 {
			offset++
			continue
		}
		if offset+scLen < len(s.buf) && s.buf[offset+scLen]&0x1F == NALUnitTypeAUD {
			bounds = append(bounds, offset)
		}
		offset += scLen
	}

	if len(bounds) < 2 {
		return nil
	}

	// Everything between consecutive delimiters is one access unit.
	units := make([][]byte, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		units = append(units, s.buf[bounds[i]:bounds[i+1]])
	}

	// Keep only the open access unit. The returned units alias the old
	// buffer, which is released once the delivery callback returns.
	tail := s.buf[bounds[len(bounds)-1]:]
	next := make([]byte, len(tail), cap(s.buf))
	copy(next, tail)
	s.buf = next

	return units
}

// Flush returns whatever is buffered as a final access unit, if any.
func (s *Scanner) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	last := s.buf
	s.buf = nil
	return last
}
