// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package localaddr finds the local address probes to a destination leave from
package localaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/DataDog/datadog-hoptrace/log"
)

// dialUDPFn is defined as variable to ease testing
var dialUDPFn = func(dst netip.AddrPort) (net.Conn, error) {
	return net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(dst))
}

// discardPort is only used to pick a route, nothing is ever sent to it
const discardPort = 9

// SourceAddrFor returns the local address the kernel would use to reach dst.
// The routing table is asked first, a connected UDP socket is the fallback.
func SourceAddrFor(dst netip.Addr) (netip.Addr, error) {
	if !dst.IsValid() {
		return netip.Addr{}, errors.New("invalid destination address")
	}
	dst = dst.Unmap()

	src, err := lookupOutboundRoute(dst)
	if err != nil {
		log.Tracef("route lookup for %s failed, dialing instead: %s", dst, err)
		src, err = sourceFromDial(dst)
		if err != nil {
			return netip.Addr{}, err
		}
	}
	return normalizeLoopbackSource(dst, src), nil
}

func sourceFromDial(dst netip.Addr) (netip.Addr, error) {
	conn, err := dialUDPFn(netip.AddrPortFrom(dst, discardPort))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to dial %s: %w", dst, err)
	}
	defer conn.Close()

	localUDPAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid address type for %s: want %T, got %T", conn.LocalAddr(), localUDPAddr, conn.LocalAddr())
	}
	return localUDPAddr.AddrPort().Addr().Unmap(), nil
}

// On macOS, dialing a loopback destination may report a non-loopback local
// address. Replies to loopback probes only ever come from loopback.
func normalizeLoopbackSource(dst, src netip.Addr) netip.Addr {
	if !dst.IsLoopback() || src.IsLoopback() {
		return src
	}
	if dst.Is4() {
		return netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	return netip.IPv6Loopback()
}
