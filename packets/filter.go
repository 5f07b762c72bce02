// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"golang.org/x/net/bpf"
)

// snapLen is returned by the filter on accept, it's larger than any ICMP frame
const snapLen = 0x40000

// icmpReplyFilter runs against frames starting at the IPv4 header and drops
// echo requests, which a raw ICMP socket sees for every ping leaving or
// reaching the host. Every other ICMP type is kept: the engine tells replies
// to its probes apart from unrelated messages, and an unrelated message must
// consume the probe slot rather than look like silence.
var icmpReplyFilter = []bpf.Instruction{
	// X <- IPv4 header length
	bpf.LoadMemShift{Off: 0},
	// A <- ICMP type
	bpf.LoadIndirect{Off: 0, Size: 1},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(layers.ICMPv4TypeEchoRequest), SkipTrue: 1},
	bpf.RetConstant{Val: snapLen},
	bpf.RetConstant{Val: 0},
}

// ICMPReplyFilter assembles the classic BPF program attached to the receive socket
func ICMPReplyFilter() ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(icmpReplyFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble ICMP reply filter: %w", err)
	}
	return raw, nil
}
