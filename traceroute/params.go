// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-hoptrace/common"
)

// Params configures a single trace
type Params struct {
	// Hostname is a hostname or an IPv4 literal
	Hostname string
	Protocol common.Protocol
	// Port is the destination port of UDP probes
	Port   int
	MaxTTL int
	// Timeout bounds the wait for the reply to each probe
	Timeout                time.Duration
	ProbesPerHop           int
	MaxConsecutiveTimeouts int

	// ReverseDns and CollectSourcePublicIP only affect Traceroute.RunTraceroute
	ReverseDns            bool
	CollectSourcePublicIP bool
}

// NewParams returns the default Params for hostname
func NewParams(hostname string) Params {
	return Params{
		Hostname:               hostname,
		Protocol:               common.DefaultProtocol,
		Port:                   common.DefaultPort,
		MaxTTL:                 common.DefaultMaxTTL,
		Timeout:                common.DefaultTimeout(),
		ProbesPerHop:           common.DefaultProbesPerHop,
		MaxConsecutiveTimeouts: common.DefaultMaxConsecutiveTimeouts,
		ReverseDns:             common.DefaultReverseDns,
		CollectSourcePublicIP:  common.DefaultCollectSourcePublicIP,
	}
}

// Validate checks that every field is within range
func (p Params) Validate() error {
	switch {
	case p.Hostname == "":
		return &InvalidParamsError{Field: "hostname", Err: fmt.Errorf("a target is required")}
	case !p.Protocol.IsValid():
		return &InvalidParamsError{Field: "protocol", Err: fmt.Errorf("unsupported protocol %q", p.Protocol)}
	case p.Port < 1 || p.Port > 65535:
		return &InvalidParamsError{Field: "port", Err: fmt.Errorf("%d is not in [1, 65535]", p.Port)}
	case p.MaxTTL < common.DefaultMinTTL || p.MaxTTL > 255:
		return &InvalidParamsError{Field: "max-hops", Err: fmt.Errorf("%d is not in [%d, 255]", p.MaxTTL, common.DefaultMinTTL)}
	case p.Timeout <= 0:
		return &InvalidParamsError{Field: "timeout", Err: fmt.Errorf("%s is not positive", p.Timeout)}
	case p.ProbesPerHop < 1 || p.ProbesPerHop > common.MaxProbesPerHop:
		return &InvalidParamsError{Field: "queries", Err: fmt.Errorf("%d is not in [1, %d]", p.ProbesPerHop, common.MaxProbesPerHop)}
	case p.MaxConsecutiveTimeouts < 1:
		return &InvalidParamsError{Field: "max-consecutive-timeouts", Err: fmt.Errorf("%d is not positive", p.MaxConsecutiveTimeouts)}
	}
	return nil
}
