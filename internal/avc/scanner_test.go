package avc

import (
	"bytes"
	"testing"
)

func TestScannerSplitsOnDelimiters(t *testing.T) {
	s := NewScanner()

	unit1 := au(naluAUD, naluSPS, naluPPS, naluIDR)
	unit2 := au(naluAUD, naluNonIDR)
	unit3 := au(naluAUD, naluNonIDR)

	var stream bytes.Buffer
	stream.Write(unit1)
	stream.Write(unit2)
	stream.Write(unit3)

	units := s.Feed(stream.Bytes())
	if len(units) != 2 {
		t.Fatalf("Feed returned %d units, want 2 (the third is still open)", len(units))
	}
	if !bytes.Equal(units[0], unit1) {
		t.Errorf("unit 0 = %x, want %x", units[0], unit1)
	}
	if !bytes.Equal(units[1], unit2) {
		t.Errorf("unit 1 = %x, want %x", units[1], unit2)
	}

	if got := s.Flush(); !bytes.Equal(got, unit3) {
		t.Errorf("Flush() = %x, want %x", got, unit3)
	}
	if got := s.Flush(); got != nil {
		t.Errorf("second Flush() = %x, want nil", got)
	}
}

func TestScannerHandlesArbitraryChunking(t *testing.T) {
	unit1 := au(naluAUD, naluIDR)
	unit2 := au(naluAUD, naluNonIDR)

	var stream bytes.Buffer
	stream.Write(unit1)
	stream.Write(unit2)
	data := stream.Bytes()

	// Feed one byte at a time; a unit must surface exactly once, unchanged.
	s := NewScanner()
	var units [][]byte
	for i := range data {
		for _, u := range s.Feed(data[i : i+1]) {
			units = append(units, append([]byte(nil), u...))
		}
	}

	if len(units) != 1 {
		t.Fatalf("byte-at-a-time feed yielded %d units, want 1", len(units))
	}
	if !bytes.Equal(units[0], unit1) {
		t.Errorf("unit = %x, want %x", units[0], unit1)
	}
	if got := s.Flush(); !bytes.Equal(got, unit2) {
		t.Errorf("Flush() = %x, want %x", got, unit2)
	}
}

func TestScannerNoDelimiterYieldsNothing(t *testing.T) {
	s := NewScanner()
	if units := s.Feed(au(naluSPS, naluPPS, naluIDR)); len(units) != 0 {
		t.Errorf("stream without delimiters yielded %d units", len(units))
	}
}
