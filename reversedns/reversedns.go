// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package reversedns resolves the PTR names of hop responders
package reversedns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DataDog/datadog-hoptrace/cache"
	"github.com/DataDog/datadog-hoptrace/log"
)

const (
	lookupTimeout = 5 * time.Second
	cacheExpire   = 10 * time.Minute
	cacheNS       = "rdns"
	// maxConcurrentLookups bounds LookupAll
	maxConcurrentLookups = 8
)

// LookupAddrFn is defined as variable to ease testing
var LookupAddrFn = net.DefaultResolver.LookupAddr

// GetReverseDnsForAddr returns the reverse DNS for the given address
func GetReverseDnsForAddr(ctx context.Context, addr netip.Addr) ([]string, error) {
	if !addr.IsValid() {
		return nil, errors.New("invalid IP address")
	}
	return GetReverseDns(ctx, addr.String())
}

// GetReverseDns returns the names of ipAddr without their trailing dot.
// Successful lookups, empty ones included, are cached.
func GetReverseDns(ctx context.Context, ipAddr string) ([]string, error) {
	return cache.GetWithExpiration(cache.Key(cacheNS, ipAddr), func() ([]string, error) {
		return lookup(ctx, ipAddr)
	}, cacheExpire)
}

// LookupAll resolves every address of ips concurrently. Addresses whose
// lookup failed or returned no name are absent from the result.
func LookupAll(ctx context.Context, ips []string) map[string][]string {
	var mu sync.Mutex
	names := make(map[string][]string, len(ips))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	seen := make(map[string]bool, len(ips))
	for _, ip := range ips {
		if seen[ip] {
			continue
		}
		seen[ip] = true

		g.Go(func() error {
			found, err := GetReverseDns(ctx, ip)
			if err != nil {
				log.Debugf("reverse DNS of %s: %s", ip, err)
			}
			if len(found) > 0 {
				mu.Lock()
				names[ip] = found
				mu.Unlock()
			}
			// a single failed lookup must not cancel the others
			return nil
		})
	}
	_ = g.Wait()
	return names
}

func lookup(ctx context.Context, ipAddr string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	raw, err := LookupAddrFn(ctx, ipAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get reverse dns: %w", err)
	}

	names := make([]string, 0, len(raw))
	for _, name := range raw {
		names = append(names, strings.TrimRight(name, "."))
	}
	return names, nil
}
