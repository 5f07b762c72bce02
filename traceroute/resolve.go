// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

// Resolver looks up the addresses of a host, *net.Resolver implements it
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Target is the resolved destination of a trace
type Target struct {
	Hostname string
	Addr     netip.Addr
}

func resolveTarget(ctx context.Context, resolver Resolver, hostname string) (Target, error) {
	if addr, err := netip.ParseAddr(hostname); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return Target{}, &InvalidParamsError{Field: "hostname", Err: errors.New("only IPv4 targets are supported")}
		}
		return Target{Hostname: hostname, Addr: addr}, nil
	}

	addrs, err := resolver.LookupNetIP(ctx, "ip4", hostname)
	if err != nil {
		return Target{}, &DNSError{Host: hostname, Err: err}
	}
	for _, addr := range addrs {
		if addr = addr.Unmap(); addr.Is4() {
			return Target{Hostname: hostname, Addr: addr}, nil
		}
	}
	return Target{}, &DNSError{Host: hostname, Err: errors.New("no IPv4 address found")}
}

var defaultResolver Resolver = net.DefaultResolver
