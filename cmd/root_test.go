// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

type fakeTracer struct {
	params  traceroute.Params
	calls   int
	err     error
	partial bool
}

func (f *fakeTracer) Trace(_ context.Context, params traceroute.Params, observer traceroute.Observer) (*result.Results, error) {
	f.calls++
	f.params = params
	if f.err != nil && !f.partial {
		return nil, f.err
	}
	target := netip.MustParseAddr("192.0.2.99")
	hop := traceroute.HopResult{
		TTL:     1,
		Addrs:   []netip.Addr{target},
		Probes:  []traceroute.ProbeMarker{{Kind: traceroute.MarkerReply, RTT: time.Millisecond}},
		Reached: true,
	}
	if observer != nil {
		observer.TraceStarted(traceroute.Target{Hostname: params.Hostname, Addr: target}, params)
		observer.HopDone(hop)
	}
	results := result.NewResults()
	results.RunID = "test-run"
	results.Params.MaxTTL = params.MaxTTL
	results.Destination = result.Destination{Hostname: params.Hostname, IP: target.String()}
	results.Hops = append(results.Hops, &result.Hop{TTL: 1, IPs: []string{target.String()}, Probes: []result.Probe{{Status: result.StatusReply, RTTMs: 1}}, Reached: true})
	results.Termination = traceroute.TerminationTargetReached.String()
	if f.err != nil {
		results.Termination = traceroute.TerminationError.String()
	}
	results.Normalize()
	return results, f.err
}

func runCmd(t *testing.T, fake *fakeTracer, stdin string, args ...string) (string, string, error) {
	t.Helper()
	original := newTracer
	t.Cleanup(func() { newTracer = original })
	newTracer = func() tracer { return fake }

	var stdout, stderr bytes.Buffer
	rootCmd := NewCmdRoot()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootDefaults(t *testing.T) {
	fake := &fakeTracer{}
	stdout, stderr, err := runCmd(t, fake, "", "example.com")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	assert.Equal(t, traceroute.NewParams("example.com"), fake.params)
	assert.Equal(t, "traceroute to example.com (192.0.2.99), 30 hops max, 2000 ms timeout\n\n"+
		"1    192.0.2.99      1.00 ms (target reached)\n", stdout)
}

func TestRootFlags(t *testing.T) {
	fake := &fakeTracer{}
	_, _, err := runCmd(t, fake, "", "-m", "12", "-w", "500", "-q", "2", "--max-consecutive-timeouts", "4",
		"-p", "40000", "-P", "ICMP", "--reverse-dns", "--source-public-ip", "example.com")
	require.NoError(t, err)

	assert.Equal(t, traceroute.Params{
		Hostname:               "example.com",
		Protocol:               common.ProtocolICMP,
		Port:                   40000,
		MaxTTL:                 12,
		Timeout:                500 * time.Millisecond,
		ProbesPerHop:           2,
		MaxConsecutiveTimeouts: 4,
		ReverseDns:             true,
		CollectSourcePublicIP:  true,
	}, fake.params)
}

func TestRootEnvironment(t *testing.T) {
	t.Setenv("HOPTRACE_MAX_HOPS", "7")
	t.Setenv("HOPTRACE_PROTO", "icmp")

	fake := &fakeTracer{}
	_, _, err := runCmd(t, fake, "", "-m", "9", "example.com")
	require.NoError(t, err)
	assert.Equal(t, 9, fake.params.MaxTTL, "flags win over the environment")
	assert.Equal(t, common.ProtocolICMP, fake.params.Protocol)
}

func TestRootConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "hoptrace.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("queries: 5\ntimeout: 750\n"), 0o600))

	fake := &fakeTracer{}
	_, _, err := runCmd(t, fake, "", "--config", cfg, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, fake.params.ProbesPerHop)
	assert.Equal(t, 750*time.Millisecond, fake.params.Timeout)
}

func TestRootMissingConfigFile(t *testing.T) {
	fake := &fakeTracer{}
	_, stderr, err := runCmd(t, fake, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "example.com")
	require.Error(t, err)
	assert.Contains(t, stderr, "failed to read config file")
	assert.Zero(t, fake.calls)
}

func TestRootJSON(t *testing.T) {
	fake := &fakeTracer{}
	stdout, _, err := runCmd(t, fake, "", "--json", "example.com")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "traceroute to", "hop lines are not streamed in JSON mode")

	var results result.Results
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	assert.Equal(t, "test-run", results.RunID)
	assert.Equal(t, "target_reached", results.Termination)
	assert.Equal(t, 1, results.Stats.HopCount)
}

func TestRootPromptsForTarget(t *testing.T) {
	fake := &fakeTracer{}
	stdout, _, err := runCmd(t, fake, "  example.org \n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Enter destination address (e.g. example.com): traceroute to example.org"), stdout)
	assert.Equal(t, "example.org", fake.params.Hostname)
}

func TestRootEmptyPrompt(t *testing.T) {
	fake := &fakeTracer{}
	_, stderr, err := runCmd(t, fake, "\n")
	var invalid *traceroute.InvalidParamsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "Error: invalid hostname: a target is required\n", stderr)
	assert.Zero(t, fake.calls)
}

func TestRootTraceError(t *testing.T) {
	fake := &fakeTracer{err: &traceroute.PrivilegeError{Err: errors.New("operation not permitted")}}
	stdout, stderr, err := runCmd(t, fake, "", "example.com")
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "Error: raw sockets require elevated privileges, run as root or grant CAP_NET_RAW\n", stderr)
}

func TestRootJSONKeepsPartialHops(t *testing.T) {
	fake := &fakeTracer{
		err:     &traceroute.CapabilityError{Op: "open the send socket for TTL 2", Err: errors.New("no buffer space available")},
		partial: true,
	}
	stdout, stderr, err := runCmd(t, fake, "", "--json", "example.com")
	require.Error(t, err)
	assert.Contains(t, stderr, "open the send socket for TTL 2")

	var got result.Results
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "error", got.Termination)
	require.Len(t, got.Hops, 1)
	assert.Equal(t, []string{"192.0.2.99"}, got.Hops[0].IPs)
}

func TestRootBadLogLevel(t *testing.T) {
	fake := &fakeTracer{}
	_, stderr, err := runCmd(t, fake, "", "--log-level", "chatty", "example.com")
	require.Error(t, err)
	assert.Contains(t, stderr, "chatty")
	assert.Zero(t, fake.calls)
}

func TestSetupLogging(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		showWarn  bool
		showDebug bool
	}{
		{name: "default flags", args: nil, showWarn: true, showDebug: false},
		{name: "verbose", args: []string{"-v"}, showWarn: true, showDebug: true},
		{name: "log level error", args: []string{"--log-level", "error"}, showWarn: false, showDebug: false},
		{name: "log level overrides verbose", args: []string{"-v", "--log-level", "warn"}, showWarn: true, showDebug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			stdlog.SetOutput(&buf)
			t.Cleanup(func() {
				stdlog.SetOutput(os.Stderr)
				log.SetVerbose(true)
				log.SetLogLevel(log.LevelWarn)
			})
			// a previous run may have left output disabled
			log.SetVerbose(false)

			cmd := NewCmdRoot()
			require.NoError(t, cmd.ParseFlags(tt.args))
			v, err := newConfig(cmd)
			require.NoError(t, err)
			require.NoError(t, setupLogging(v))

			log.Warnf("send failed for ttl %d", 3)
			log.Debugf("frame from %s", "192.0.2.1")

			assert.Equal(t, tt.showWarn, strings.Contains(buf.String(), "send failed for ttl 3"), buf.String())
			assert.Equal(t, tt.showDebug, strings.Contains(buf.String(), "frame from 192.0.2.1"), buf.String())
		})
	}
}

func TestRootTooManyArgs(t *testing.T) {
	fake := &fakeTracer{}
	_, _, err := runCmd(t, fake, "", "a.example", "b.example")
	require.Error(t, err)
	assert.Zero(t, fake.calls)
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCmd(t, &fakeTracer{}, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version: dev\n")
	assert.Contains(t, stdout, "Go Version: go")
}
