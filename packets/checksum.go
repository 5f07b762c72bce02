// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

// Checksum computes the RFC 1071 Internet checksum of data.
//
// Words are summed little-endian, so the result must be written back into the
// packet with binary.LittleEndian. The bytes that land on the wire are then the
// same as with the usual network-order computation.
func Checksum(data []byte) uint16 {
	var sum uint64
	even := len(data) &^ 1
	for i := 0; i < even; i += 2 {
		sum += uint64(data[i+1])<<8 | uint64(data[i])
	}
	if even < len(data) {
		sum += uint64(data[even])
	}
	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

// ValidChecksum reports whether data, checksum field included, sums to zero
func ValidChecksum(data []byte) bool {
	return Checksum(data) == 0
}
