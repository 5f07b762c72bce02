// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/DataDog/datadog-hoptrace/common"
)

// ErrNoEmbeddedDatagram is returned when an ICMP message does not quote the
// datagram that triggered it, or quotes too little of it to be decoded
var ErrNoEmbeddedDatagram = errors.New("ICMP message carries no decodable original datagram")

// FrameParser decodes the frames read from a Source. It is not safe for
// concurrent use; the layers are reused between calls to Parse.
type FrameParser struct {
	IP4     layers.IPv4
	ICMP4   layers.ICMPv4
	Payload gopacket.Payload

	ipParser   *gopacket.DecodingLayerParser
	icmpParser *gopacket.DecodingLayerParser
	decoded    []gopacket.LayerType
	hasIP      bool
}

// NewFrameParser constructs a new FrameParser
func NewFrameParser() *FrameParser {
	p := &FrameParser{}
	p.ipParser = gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4, &p.IP4, &p.ICMP4, &p.Payload)
	p.ipParser.IgnoreUnsupported = true
	p.icmpParser = gopacket.NewDecodingLayerParser(layers.LayerTypeICMPv4, &p.ICMP4, &p.Payload)
	p.icmpParser.IgnoreUnsupported = true
	return p
}

// Parse decodes buf, which starts either at the IPv4 header or directly at
// the ICMP header
func (p *FrameParser) Parse(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("FrameParser: empty frame")
	}
	p.decoded = p.decoded[:0]
	p.hasIP = buf[0]>>4 == 4

	parser := p.icmpParser
	if p.hasIP {
		parser = p.ipParser
	}
	if err := parser.DecodeLayers(buf, &p.decoded); err != nil {
		return fmt.Errorf("FrameParser failed to decode frame: %w", err)
	}
	if !slices.Contains(p.decoded, layers.LayerTypeICMPv4) {
		return fmt.Errorf("FrameParser: frame is not ICMPv4 (decoded %v)", p.decoded)
	}
	return nil
}

// HasIPHeader reports whether the last parsed frame started at the IPv4 header
func (p *FrameParser) HasIPHeader() bool {
	return p.hasIP
}

// Type returns the ICMP type of the last parsed frame
func (p *FrameParser) Type() uint8 {
	return p.ICMP4.TypeCode.Type()
}

// Code returns the ICMP code of the last parsed frame
func (p *FrameParser) Code() uint8 {
	return p.ICMP4.TypeCode.Code()
}

// IsTTLExceeded returns true if the last parsed frame is an ICMP time exceeded message
func (p *FrameParser) IsTTLExceeded() bool {
	return p.Type() == layers.ICMPv4TypeTimeExceeded
}

// IsDestinationUnreachable returns true if the last parsed frame is an ICMP destination unreachable message
func (p *FrameParser) IsDestinationUnreachable() bool {
	return p.Type() == layers.ICMPv4TypeDestinationUnreachable
}

// IsEchoReply returns true if the last parsed frame is an ICMP echo reply
func (p *FrameParser) IsEchoReply() bool {
	return p.Type() == layers.ICMPv4TypeEchoReply
}

// EmbeddedDatagram is the start of the original datagram quoted by an ICMP
// error message
type EmbeddedDatagram struct {
	Src      netip.Addr
	Dst      netip.Addr
	Protocol layers.IPProtocol
	// DstPort is set when Protocol is UDP
	DstPort uint16
	// EchoID and EchoSeq are set when Protocol is ICMPv4 and the quoted
	// message is an echo request
	EchoID  uint16
	EchoSeq uint16
}

// GetEmbeddedDatagram decodes the datagram quoted by a time exceeded or
// destination unreachable message
func (p *FrameParser) GetEmbeddedDatagram() (EmbeddedDatagram, error) {
	if !p.IsTTLExceeded() && !p.IsDestinationUnreachable() {
		return EmbeddedDatagram{}, ErrNoEmbeddedDatagram
	}

	var inner layers.IPv4
	if err := inner.DecodeFromBytes(p.ICMP4.Payload, gopacket.NilDecodeFeedback); err != nil {
		return EmbeddedDatagram{}, fmt.Errorf("%w: %s", ErrNoEmbeddedDatagram, err)
	}
	src, _ := common.UnmappedAddrFromSlice(inner.SrcIP)
	dst, _ := common.UnmappedAddrFromSlice(inner.DstIP)
	dgram := EmbeddedDatagram{
		Src:      src,
		Dst:      dst,
		Protocol: inner.Protocol,
	}

	transport := inner.Payload
	switch inner.Protocol {
	case layers.IPProtocolUDP:
		if len(transport) < 4 {
			return dgram, fmt.Errorf("%w: quoted UDP header too short (%d bytes)", ErrNoEmbeddedDatagram, len(transport))
		}
		dgram.DstPort = binary.BigEndian.Uint16(transport[2:4])
	case layers.IPProtocolICMPv4:
		if len(transport) < EchoHeaderLen {
			return dgram, fmt.Errorf("%w: quoted ICMP header too short (%d bytes)", ErrNoEmbeddedDatagram, len(transport))
		}
		if transport[0] == layers.ICMPv4TypeEchoRequest {
			dgram.EchoID = binary.BigEndian.Uint16(transport[4:6])
			dgram.EchoSeq = binary.BigEndian.Uint16(transport[6:8])
		}
	}
	return dgram, nil
}
