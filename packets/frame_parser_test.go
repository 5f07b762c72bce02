// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-hoptrace/testutils"
)

func TestFrameParserTTLExceededUDP(t *testing.T) {
	quoted := testutils.QuotedUDP(t, localAddr, targetAddr, 4, 33434)
	frame := testutils.TTLExceeded(t, routerAddr, localAddr, quoted)

	for _, tt := range []struct {
		name  string
		frame []byte
		hasIP bool
	}{
		{"with ip header", frame, true},
		{"icmp only", testutils.StripIPHeader(frame), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewFrameParser()
			require.NoError(t, parser.Parse(tt.frame))
			assert.Equal(t, tt.hasIP, parser.HasIPHeader())
			assert.True(t, parser.IsTTLExceeded())
			assert.False(t, parser.IsDestinationUnreachable())
			assert.False(t, parser.IsEchoReply())
			assert.Equal(t, uint8(layers.ICMPv4CodeTTLExceeded), parser.Code())

			dgram, err := parser.GetEmbeddedDatagram()
			require.NoError(t, err)
			assert.Equal(t, localAddr, dgram.Src)
			assert.Equal(t, targetAddr, dgram.Dst)
			assert.Equal(t, layers.IPProtocolUDP, dgram.Protocol)
			assert.Equal(t, uint16(33434), dgram.DstPort)
		})
	}
}

func TestFrameParserPortUnreachable(t *testing.T) {
	quoted := testutils.QuotedUDP(t, localAddr, targetAddr, 9, 33434)
	frame := testutils.PortUnreachable(t, targetAddr, localAddr, quoted)

	parser := NewFrameParser()
	require.NoError(t, parser.Parse(frame))
	require.True(t, parser.IsDestinationUnreachable())
	require.Equal(t, uint8(layers.ICMPv4CodePort), parser.Code())

	dgram, err := parser.GetEmbeddedDatagram()
	require.NoError(t, err)
	require.Equal(t, targetAddr, dgram.Dst)
}

func TestFrameParserQuotedEcho(t *testing.T) {
	quoted := testutils.QuotedEcho(t, localAddr, targetAddr, 2, 0xbeef, 17)
	frame := testutils.TTLExceeded(t, routerAddr, localAddr, quoted)

	parser := NewFrameParser()
	require.NoError(t, parser.Parse(frame))

	dgram, err := parser.GetEmbeddedDatagram()
	require.NoError(t, err)
	require.Equal(t, layers.IPProtocolICMPv4, dgram.Protocol)
	require.Equal(t, uint16(0xbeef), dgram.EchoID)
	require.Equal(t, uint16(17), dgram.EchoSeq)
}

func TestFrameParserEchoReply(t *testing.T) {
	frame := testutils.EchoReply(t, targetAddr, localAddr, 0xbeef, 3)

	parser := NewFrameParser()
	require.NoError(t, parser.Parse(frame))
	require.True(t, parser.IsEchoReply())
	require.Equal(t, uint16(0xbeef), parser.ICMP4.Id)
	require.Equal(t, uint16(3), parser.ICMP4.Seq)

	_, err := parser.GetEmbeddedDatagram()
	require.ErrorIs(t, err, ErrNoEmbeddedDatagram)
}

func TestFrameParserShortQuote(t *testing.T) {
	// only the first 4 bytes of the inner IPv4 header were quoted
	quoted := testutils.QuotedUDP(t, localAddr, targetAddr, 1, 33434)[:4]
	frame := testutils.TTLExceeded(t, routerAddr, localAddr, quoted)

	parser := NewFrameParser()
	require.NoError(t, parser.Parse(frame))
	_, err := parser.GetEmbeddedDatagram()
	require.ErrorIs(t, err, ErrNoEmbeddedDatagram)
}

func TestFrameParserRejectsGarbage(t *testing.T) {
	parser := NewFrameParser()
	require.Error(t, parser.Parse(nil))
	require.Error(t, parser.Parse([]byte{0x45, 0x00, 0x00}))
}

func TestFrameParserReuse(t *testing.T) {
	parser := NewFrameParser()

	ttlFrame := testutils.TTLExceeded(t, routerAddr, localAddr, testutils.QuotedUDP(t, localAddr, targetAddr, 1, 33434))
	require.NoError(t, parser.Parse(ttlFrame))
	require.True(t, parser.IsTTLExceeded())

	require.NoError(t, parser.Parse(testutils.StripIPHeader(testutils.EchoReply(t, targetAddr, localAddr, 1, 1))))
	require.True(t, parser.IsEchoReply())
	require.False(t, parser.HasIPHeader())
}
