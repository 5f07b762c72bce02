// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package localaddr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"syscall"

	"github.com/vishvananda/netlink"
)

type routeGetFunc func(dst net.IP) ([]netlink.Route, error)

// routeGet is defined as variable to ease testing
var routeGet routeGetFunc = netlink.RouteGet

func lookupOutboundRoute(dst netip.Addr) (netip.Addr, error) {
	routes, err := routeGet(dst.AsSlice())
	if err != nil {
		if isNetlinkOverflowError(err) {
			return netip.Addr{}, fmt.Errorf("netlink route lookup overflowed: %w", err)
		}
		return netip.Addr{}, fmt.Errorf("netlink route lookup failed: %w", err)
	}
	for _, r := range routes {
		if len(r.Src) == 0 {
			continue
		}
		src, ok := netip.AddrFromSlice(r.Src)
		if !ok {
			continue
		}
		return src.Unmap(), nil
	}
	return netip.Addr{}, fmt.Errorf("no route with a preferred source found for %s", dst)
}

// isNetlinkOverflowError matches the ERANGE some kernels return when the
// route dump does not fit in the receive buffer
func isNetlinkOverflowError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ERANGE) || strings.Contains(err.Error(), "numerical result out of range")
}
