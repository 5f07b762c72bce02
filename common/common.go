// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package common contains defaults and helpers shared by the tracer, the CLI
// and the HTTP server
package common

import (
	"net/netip"
	"time"
)

const (
	DefaultProbeTimeout           = 2000 // msec
	DefaultPort                   = 33434
	DefaultProbesPerHop           = 3
	DefaultMinTTL                 = 1
	DefaultMaxTTL                 = 30
	DefaultMaxConsecutiveTimeouts = 10
	DefaultProtocol               = "udp"
	DefaultReverseDns             = false
	DefaultCollectSourcePublicIP  = false

	// MaxProbesPerHop bounds the number of markers a single hop can carry
	MaxProbesPerHop = 10
)

// Protocol is the kind of probe datagram sent at each TTL
type Protocol string

const (
	// ProtocolUDP sends zero-length UDP datagrams to a closed high port
	ProtocolUDP Protocol = "udp"
	// ProtocolICMP sends ICMP echo requests
	ProtocolICMP Protocol = "icmp"
)

// IsValid reports whether p is a supported probe protocol
func (p Protocol) IsValid() bool {
	return p == ProtocolUDP || p == ProtocolICMP
}

// DefaultTimeout returns DefaultProbeTimeout as a time.Duration
func DefaultTimeout() time.Duration {
	return DefaultProbeTimeout * time.Millisecond
}

// ConvertDurationToMs converts a duration to fractional milliseconds
func ConvertDurationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// UnmappedAddrFromSlice is the same as netip.AddrFromSlice but it also gets rid of mapped ipv6 addresses.
func UnmappedAddrFromSlice(slice []byte) (netip.Addr, bool) {
	addr, ok := netip.AddrFromSlice(slice)
	return addr.Unmap(), ok
}
