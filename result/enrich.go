// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package result

import (
	"context"

	"github.com/DataDog/datadog-hoptrace/reversedns"
)

// EnrichWithReverseDns fills the PTR names of the destination and of every
// hop responder. Lookup failures are skipped.
func (r *Results) EnrichWithReverseDns(ctx context.Context) {
	var ips []string
	if r.Destination.IP != "" {
		ips = append(ips, r.Destination.IP)
	}
	for _, hop := range r.Hops {
		ips = append(ips, hop.IPs...)
	}
	if len(ips) == 0 {
		return
	}

	names := reversedns.LookupAll(ctx, ips)
	if found, ok := names[r.Destination.IP]; ok {
		r.Destination.ReverseDns = found
	}
	for _, hop := range r.Hops {
		for _, ip := range hop.IPs {
			found, ok := names[ip]
			if !ok {
				continue
			}
			if hop.ReverseDns == nil {
				hop.ReverseDns = make(map[string][]string)
			}
			hop.ReverseDns[ip] = found
		}
	}
}
