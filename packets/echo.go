// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/gopacket/layers"
)

// EchoHeaderLen is the size of an ICMP echo header: type, code, checksum, id, seq
const EchoHeaderLen = 8

// NewEchoRequest builds an ICMP echo request carrying payload
func NewEchoRequest(id, seq uint16, payload []byte) []byte {
	msg := make([]byte, EchoHeaderLen+len(payload))
	msg[0] = layers.ICMPv4TypeEchoRequest
	msg[1] = 0
	binary.BigEndian.PutUint16(msg[4:], id)
	binary.BigEndian.PutUint16(msg[6:], seq)
	copy(msg[EchoHeaderLen:], payload)
	binary.LittleEndian.PutUint16(msg[2:], Checksum(msg))
	return msg
}

// TimestampPayload encodes t as seconds since the epoch in an 8 byte float
func TimestampPayload(t time.Time) []byte {
	secs := float64(t.UnixNano()) / float64(time.Second)
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(secs))
}
