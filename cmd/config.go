// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

const envPrefix = "hoptrace"

// flag names, also used as viper keys
const (
	flagMaxHops                = "max-hops"
	flagTimeout                = "timeout"
	flagQueries                = "queries"
	flagMaxConsecutiveTimeouts = "max-consecutive-timeouts"
	flagPort                   = "port"
	flagProto                  = "proto"
	flagJSON                   = "json"
	flagReverseDns             = "reverse-dns"
	flagSourcePublicIP         = "source-public-ip"
	flagVerbose                = "verbose"
	flagLogLevel               = "log-level"
	flagConfig                 = "config"
)

func addTraceFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntP(flagMaxHops, "m", common.DefaultMaxTTL, "Maximum number of hops (TTL) to probe")
	flags.IntP(flagTimeout, "w", common.DefaultProbeTimeout, "Time to wait for each reply (ms)")
	flags.IntP(flagQueries, "q", common.DefaultProbesPerHop, "Number of probes per hop")
	flags.Int(flagMaxConsecutiveTimeouts, common.DefaultMaxConsecutiveTimeouts, "Stop after this many hops in a row without any reply")
	flags.IntP(flagPort, "p", common.DefaultPort, "Destination port of UDP probes")
	flags.StringP(flagProto, "P", common.DefaultProtocol, "Probe protocol (udp, icmp)")
	flags.Bool(flagJSON, false, "Print the results as JSON once the trace is over")
	flags.Bool(flagReverseDns, common.DefaultReverseDns, "Enrich IPs with Reverse DNS names")
	flags.Bool(flagSourcePublicIP, common.DefaultCollectSourcePublicIP, "Collect the public IP of this host")
	flags.BoolP(flagVerbose, "v", false, "verbose")
	flags.String(flagLogLevel, "", "Log level (error, warn, info, debug, trace), overrides --verbose")
	flags.String(flagConfig, "", "config file (yaml, json or toml)")
}

// newConfig layers flags over HOPTRACE_* environment variables over the
// config file over defaults
func newConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if cfgFile := v.GetString(flagConfig); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	return v, nil
}

func paramsFromConfig(v *viper.Viper, hostname string) traceroute.Params {
	params := traceroute.NewParams(hostname)
	params.Protocol = common.Protocol(strings.ToLower(v.GetString(flagProto)))
	params.Port = v.GetInt(flagPort)
	params.MaxTTL = v.GetInt(flagMaxHops)
	params.Timeout = time.Duration(v.GetInt(flagTimeout)) * time.Millisecond
	params.ProbesPerHop = v.GetInt(flagQueries)
	params.MaxConsecutiveTimeouts = v.GetInt(flagMaxConsecutiveTimeouts)
	params.ReverseDns = v.GetBool(flagReverseDns)
	params.CollectSourcePublicIP = v.GetBool(flagSourcePublicIP)
	return params
}
