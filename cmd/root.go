// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package cmd implements the hoptrace command line
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

type tracer interface {
	Trace(ctx context.Context, params traceroute.Params, observer traceroute.Observer) (*result.Results, error)
}

// newTracer is defined as variable to ease testing
var newTracer = func() tracer {
	return traceroute.NewTraceroute()
}

// NewCmdRoot creates the hoptrace command
func NewCmdRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hoptrace [target]",
		Short: "Trace the route to a host with TTL limited probes",
		Long: "hoptrace sends UDP datagrams or ICMP echo requests with increasing TTLs and\n" +
			"reports the routers answering with ICMP time exceeded. It needs raw sockets:\n" +
			"run it as root or grant it CAP_NET_RAW.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTrace,
	}
	addTraceFlags(rootCmd)
	rootCmd.AddCommand(newCmdVersion())
	return rootCmd
}

// Execute runs the hoptrace command and exits on failure
func Execute() {
	if err := NewCmdRoot().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runTrace(cmd *cobra.Command, args []string) error {
	v, err := newConfig(cmd)
	if err != nil {
		return reportError(cmd, err)
	}
	if err := setupLogging(v); err != nil {
		return reportError(cmd, err)
	}

	var target string
	if len(args) == 1 {
		target = args[0]
	} else {
		target, err = promptTarget(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return reportError(cmd, err)
		}
	}
	params := paramsFromConfig(v, target)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &printer{w: cmd.OutOrStdout()}
	jsonOutput := v.GetBool(flagJSON)
	var observer traceroute.Observer
	if !jsonOutput {
		observer = out
	}

	results, err := newTracer().Trace(ctx, params, observer)
	if err != nil {
		// keep the hops probed before a mid-trace failure
		if jsonOutput && results != nil {
			_ = writeJSON(cmd.OutOrStdout(), results)
		}
		return reportError(cmd, err)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	out.Finished(results)
	return nil
}

func writeJSON(w io.Writer, results *result.Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("JSON marshalling failed: %w", err)
	}
	return nil
}

// setupLogging keeps warnings visible unless a quieter level is asked for
func setupLogging(v *viper.Viper) error {
	level := log.LevelWarn
	if v.GetBool(flagVerbose) {
		level = log.LevelTrace
	}
	if name := v.GetString(flagLogLevel); name != "" {
		var err error
		level, err = log.ParseLogLevel(name)
		if err != nil {
			return err
		}
	}
	log.SetVerbose(true)
	log.SetLogLevel(level)
	return nil
}

func promptTarget(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter destination address (e.g. example.com): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read the target: %w", err)
	}
	target := strings.TrimSpace(line)
	if target == "" {
		return "", &traceroute.InvalidParamsError{Field: "hostname", Err: errors.New("a target is required")}
	}
	return target, nil
}

func reportError(cmd *cobra.Command, err error) error {
	(&printer{w: cmd.ErrOrStderr()}).Failed(err)
	return err
}
