// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build integration && linux

package integration_tests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/server"
	"github.com/DataDog/datadog-hoptrace/testutils"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

func TestUnresolvableHost(t *testing.T) {
	params := localhostParams(common.ProtocolUDP)
	params.Hostname = "nonexistent-host-for-hoptrace.invalid"

	results, err := traceroute.NewTraceroute().RunTraceroute(context.Background(), params)
	require.Error(t, err)
	assert.Nil(t, results)

	var dnsErr *traceroute.DNSError
	assert.True(t, errors.As(err, &dnsErr), "expected a DNSError, got %T: %v", err, err)
	assert.Equal(t, traceroute.ErrCodeDNS, traceroute.ClassifyError(err).Code)
}

func TestInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*traceroute.Params)
	}{
		{"empty hostname", func(p *traceroute.Params) { p.Hostname = "" }},
		{"zero max ttl", func(p *traceroute.Params) { p.MaxTTL = 0 }},
		{"zero timeout", func(p *traceroute.Params) { p.Timeout = 0 }},
		{"zero probes", func(p *traceroute.Params) { p.ProbesPerHop = 0 }},
		{"unknown protocol", func(p *traceroute.Params) { p.Protocol = "sctp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := localhostParams(common.ProtocolUDP)
			tt.mutate(&params)

			_, err := traceroute.NewTraceroute().RunTraceroute(context.Background(), params)
			var invalid *traceroute.InvalidParamsError
			assert.True(t, errors.As(err, &invalid), "expected an InvalidParamsError, got %T: %v", err, err)
		})
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	ns := testutils.NewLoopbackNS(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var results *result.Results
	err := testutils.WithNS(ns, func() error {
		var err error
		results, err = traceroute.NewTraceroute().RunTraceroute(ctx, localhostParams(common.ProtocolUDP))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, traceroute.TerminationInterrupted.String(), results.Termination)
	assert.Empty(t, results.Hops)
}

func TestServerRejectsBadRequest(t *testing.T) {
	srv := httptest.NewServer(server.NewServer(server.DefaultMaxConcurrentTraces).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/traceroute?target=127.0.0.1&max-hops=0")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body traceroute.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, traceroute.ErrCodeInvalidRequest, body.Code)
}
