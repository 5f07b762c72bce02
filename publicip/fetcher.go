// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package publicip discovers the public IPv4 address the host is seen from
package publicip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	externalip "github.com/glendc/go-external-ip"

	"github.com/DataDog/datadog-hoptrace/cache"
	"github.com/DataDog/datadog-hoptrace/log"
)

// Fetcher returns the public IP of the host
type Fetcher interface {
	GetIP(ctx context.Context) (netip.Addr, error)
}

// PublicIPFetcher asks the IP checkers in turn and falls back on a weighted
// consensus of consensusVoters when none of them answers
type PublicIPFetcher struct {
	client    *http.Client
	checkers  []string
	consensus func() (netip.Addr, error)
}

var _ Fetcher = &PublicIPFetcher{}

// NewPublicIPFetcher returns a PublicIPFetcher using the default checkers
func NewPublicIPFetcher() *PublicIPFetcher {
	return &PublicIPFetcher{
		client:    &http.Client{Timeout: Timeout},
		checkers:  ipCheckers,
		consensus: externalConsensusIP,
	}
}

// GetIP returns the public IP, cached for a couple of hours
func (p *PublicIPFetcher) GetIP(ctx context.Context) (netip.Addr, error) {
	return cache.GetWithExpiration(cache.Key(cacheNamespace, "v4"), func() (netip.Addr, error) {
		ip, err := p.fetch(ctx)
		if err != nil {
			return netip.Addr{}, err
		}
		log.Debugf("Public IP fetched: %s", ip)
		return ip, nil
	}, cacheExpiration)
}

func (p *PublicIPFetcher) fetch(ctx context.Context) (netip.Addr, error) {
	for _, ipChecker := range p.checkers {
		ip, err := getPublicIPUsingIPChecker(ctx, p.client, ipChecker)
		if err != nil {
			log.Debugf("error fetching: %s, %s", ipChecker, err)
			continue
		}
		return ip, nil
	}
	if err := ctx.Err(); err != nil {
		return netip.Addr{}, err
	}

	log.Debugf("no IP checker answered, falling back on consensus")
	ip, err := p.consensus()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("no IP found: %w", err)
	}
	return ip, nil
}

func getPublicIPUsingIPChecker(ctx context.Context, client *http.Client, dest string) (netip.Addr, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 3 * time.Second

	operation := func() (netip.Addr, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest, nil)
		if err != nil {
			return netip.Addr{}, backoff.Permanent(fmt.Errorf("failed to create new request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("failed to fetch req: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("failed to read content: %w", err)
		}

		// client errors are not retried
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return netip.Addr{}, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return netip.Addr{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		tb := strings.TrimSpace(string(body))
		ip, err := netip.ParseAddr(tb)
		if err != nil {
			return netip.Addr{}, backoff.Permanent(errors.New("IP address not valid: " + tb))
		}
		return ip.Unmap(), nil
	}
	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(MaxTries))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("backoff retry error: %w", err)
	}
	return result, nil
}

func externalConsensusIP() (netip.Addr, error) {
	consensus := externalip.NewConsensus(externalip.DefaultConsensusConfig().WithTimeout(Timeout), nil)
	for _, v := range consensusVoters {
		if err := consensus.AddVoter(externalip.NewHTTPSource(v.uri), v.weight); err != nil {
			return netip.Addr{}, err
		}
	}
	if err := consensus.UseIPProtocol(4); err != nil {
		return netip.Addr{}, err
	}

	ip, err := consensus.ExternalIP()
	if err != nil {
		return netip.Addr{}, err
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid consensus IP %s", ip)
	}
	return addr.Unmap(), nil
}
