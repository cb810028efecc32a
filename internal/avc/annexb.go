package avc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// H.264 NAL unit types
const (
	NALUnitTypeNonIDR = 1
	NALUnitTypeIDR    = 5
	NALUnitTypeSEI    = 6
	NALUnitTypeSPS    = 7
	NALUnitTypePPS    = 8
	NALUnitTypeAUD    = 9
)

// AnnexB start codes
var (
	StartCode4 = []byte{0x00, 0x00, 0x00, 0x01}
	StartCode3 = []byte{0x00, 0x00, 0x01}
)

// SplitNALUs splits Annex-B data into raw NAL units (start codes stripped).
func SplitNALUs(annexB []byte) [][]byte {
	var nalus [][]byte

	offset := 0
	start := -1
	for offset < len(annexB) {
		scLen := startCodeLen(annexB[offset:])
		if scLen == 0 {
			offset++
			continue
		}
		if start >= 0 {
			nalus = append(nalus, annexB[start:offset])
		}
		offset += scLen
		start = offset
	}
	if start >= 0 && start < len(annexB) {
		nalus = append(nalus, annexB[start:])
	}

	return nalus
}

// NALType returns the type of a raw NAL unit (lower 5 bits of the header byte).
func NALType(nalu []byte) uint8 {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1F
}

// IsKeyFrame reports whether an Annex-B access unit contains an IDR slice.
func IsKeyFrame(accessUnit []byte) bool {
	for _, nalu := range SplitNALUs(accessUnit) {
		if NALType(nalu) == NALUnitTypeIDR {
			return true
		}
	}
	return false
}

// ExtractParameterSets returns the SPS and PPS NAL units found in an Annex-B
// access unit, without start codes. Either slice may be empty.
func ExtractParameterSets(accessUnit []byte) (sps, pps [][]byte) {
	for _, nalu := range SplitNALUs(accessUnit) {
		switch NALType(nalu) {
		case NALUnitTypeSPS:
			sps = append(sps, nalu)
		case NALUnitTypePPS:
			pps = append(pps, nalu)
		}
	}
	return sps, pps
}

// ConvertAnnexBToAVCC converts an Annex-B access unit to AVCC format
// (4-byte length-prefixed NAL units), the sample layout MP4 tracks expect.
// Parameter-set and AUD NAL units are dropped, since they live in the sample
// description rather than in samples.
func ConvertAnnexBToAVCC(accessUnit []byte) ([]byte, error) {
	var avcc bytes.Buffer
	nalCount := 0

	for _, nalu := range SplitNALUs(accessUnit) {
		switch NALType(nalu) {
		case NALUnitTypeSPS, NALUnitTypePPS, NALUnitTypeAUD:
			continue
		}
		var lenPrefix [4]byte
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(nalu)))
		avcc.Write(lenPrefix[:])
		avcc.Write(nalu)
		nalCount++
	}

	if nalCount == 0 {
		return nil, fmt.Errorf("no slice NAL units in access unit")
	}

	return avcc.Bytes(), nil
}

func startCodeLen(data []byte) int {
	if len(data) >= 4 && bytes.Equal(data[:4], StartCode4) {
		return 4
	}
	if len(data) >= 3 && bytes.Equal(data[:3], StartCode3) {
		return 3
	}
	return 0
}
