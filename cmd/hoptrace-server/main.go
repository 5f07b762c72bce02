// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package main provides the hoptrace HTTP server binary
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/server"
)

func newCmdServer() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hoptrace-server",
		Short:        "Traceroute HTTP server",
		Long:         `HTTP server that provides traceroute functionality via REST API endpoints`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			v.SetEnvPrefix("hoptrace")
			v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			level, err := log.ParseLogLevel(v.GetString("log-level"))
			if err != nil {
				return err
			}
			log.SetLogLevel(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(v.GetInt64("max-concurrent"))
			addr := v.GetString("addr")
			log.Infof("Log level set to: %s", level)
			log.Infof("Example usage: curl 'http://localhost%s/traceroute?target=example.com&protocol=udp'", addr)
			return srv.Serve(ctx, addr)
		},
	}

	rootCmd.Flags().StringP("addr", "a", ":3765", "HTTP server address to listen on")
	rootCmd.Flags().StringP("log-level", "l", "info", "Log level (error, warn, info, debug, trace)")
	rootCmd.Flags().Int64("max-concurrent", server.DefaultMaxConcurrentTraces, "Maximum number of traces running at the same time")
	return rootCmd
}

func main() {
	if err := newCmdServer().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
