// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package testutils

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte{}, buf.Bytes()...)
}

func ipv4Layer(src, dst netip.Addr, ttl uint8, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		Length:   20,
		TTL:      ttl,
		Id:       1234,
		Protocol: proto,
		SrcIP:    src.AsSlice(),
		DstIP:    dst.AsSlice(),
	}
}

// QuotedUDP returns the start of a UDP probe as a router quotes it back: the
// IPv4 header followed by the 8 byte UDP header
func QuotedUDP(t testing.TB, src, dst netip.Addr, ttl uint8, dstPort uint16) []byte {
	udpHeader := make([]byte, 8)
	binary.BigEndian.PutUint16(udpHeader[0:], 40000)
	binary.BigEndian.PutUint16(udpHeader[2:], dstPort)
	binary.BigEndian.PutUint16(udpHeader[4:], 8)
	return serialize(t, ipv4Layer(src, dst, ttl, layers.IPProtocolUDP), gopacket.Payload(udpHeader))
}

// QuotedEcho returns the start of an ICMP echo probe as a router quotes it back
func QuotedEcho(t testing.TB, src, dst netip.Addr, ttl uint8, id, seq uint16) []byte {
	echoHeader := make([]byte, 8)
	echoHeader[0] = layers.ICMPv4TypeEchoRequest
	binary.BigEndian.PutUint16(echoHeader[4:], id)
	binary.BigEndian.PutUint16(echoHeader[6:], seq)
	return serialize(t, ipv4Layer(src, dst, ttl, layers.IPProtocolICMPv4), gopacket.Payload(echoHeader))
}

// ICMPFrame builds an IPv4 frame from -> to carrying an ICMP message
func ICMPFrame(t testing.TB, from, to netip.Addr, typeCode layers.ICMPv4TypeCode, id, seq uint16, payload []byte) []byte {
	icmpLayer := &layers.ICMPv4{
		TypeCode: typeCode,
		Id:       id,
		Seq:      seq,
	}
	return serialize(t, ipv4Layer(from, to, 42, layers.IPProtocolICMPv4), icmpLayer, gopacket.Payload(payload))
}

// TTLExceeded builds the time exceeded message a router sends when it drops quoted
func TTLExceeded(t testing.TB, router, to netip.Addr, quoted []byte) []byte {
	typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, layers.ICMPv4CodeTTLExceeded)
	return ICMPFrame(t, router, to, typeCode, 0, 0, quoted)
}

// PortUnreachable builds the message a host sends back for a UDP datagram
// sent to a closed port
func PortUnreachable(t testing.TB, host, to netip.Addr, quoted []byte) []byte {
	typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort)
	return ICMPFrame(t, host, to, typeCode, 0, 0, quoted)
}

// EchoReply builds the answer to an ICMP echo request
func EchoReply(t testing.TB, host, to netip.Addr, id, seq uint16) []byte {
	typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)
	return ICMPFrame(t, host, to, typeCode, id, seq, []byte("DATADOG"))
}

// StripIPHeader drops the outer IPv4 header, the way datagram-oriented ICMP
// sockets hand frames over
func StripIPHeader(frame []byte) []byte {
	ihl := int(frame[0]&0x0f) * 4
	return append([]byte{}, frame[ihl:]...)
}
