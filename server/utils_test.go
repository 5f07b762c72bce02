// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package server

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/datadog-hoptrace/common"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

func TestParseTracerouteParams(t *testing.T) {
	tests := []struct {
		name        string
		queryString string
		wantErr     string
		checkFunc   func(*testing.T, traceroute.Params)
	}{
		{
			name:        "missing target",
			queryString: "",
			wantErr:     "invalid target: missing required parameter",
		},
		{
			name:        "basic target only",
			queryString: "target=example.com",
			checkFunc: func(t *testing.T, p traceroute.Params) {
				assert.Equal(t, traceroute.NewParams("example.com"), p)
			},
		},
		{
			name:        "with protocol and port",
			queryString: "target=example.com&protocol=udp&port=53",
			checkFunc: func(t *testing.T, p traceroute.Params) {
				assert.Equal(t, common.ProtocolUDP, p.Protocol)
				assert.Equal(t, 53, p.Port)
			},
		},
		{
			name:        "with boolean flags",
			queryString: "target=8.8.8.8&reverse-dns=true&source-public-ip=1",
			checkFunc: func(t *testing.T, p traceroute.Params) {
				assert.True(t, p.ReverseDns)
				assert.True(t, p.CollectSourcePublicIP)
			},
		},
		{
			name:        "with numeric parameters",
			queryString: "target=test.com&max-hops=20&queries=5&timeout=5000&max-consecutive-timeouts=4",
			checkFunc: func(t *testing.T, p traceroute.Params) {
				assert.Equal(t, 20, p.MaxTTL)
				assert.Equal(t, 5, p.ProbesPerHop)
				assert.Equal(t, 5000*time.Millisecond, p.Timeout)
				assert.Equal(t, 4, p.MaxConsecutiveTimeouts)
			},
		},
		{
			name:        "non numeric value",
			queryString: "target=test.com&max-hops=lots",
			wantErr:     "invalid max-hops",
		},
		{
			name:        "out of range value",
			queryString: "target=test.com&max-hops=0",
			wantErr:     "invalid max-hops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse("/traceroute?" + tt.queryString)
			require.NoError(t, err)
			params, err := parseTracerouteParams(u)

			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFunc != nil {
				tt.checkFunc(t, params)
			}
		})
	}
}

func TestHelperFunctions(t *testing.T) {
	t.Run("getStringParam", func(t *testing.T) {
		query := map[string][]string{
			"key1": {"value1"},
		}
		assert.Equal(t, "value1", getStringParam(query, "key1", "default"))
		assert.Equal(t, "default", getStringParam(query, "missing", "default"))
	})

	t.Run("getIntParam", func(t *testing.T) {
		query := map[string][]string{
			"num": {"42"},
			"bad": {"not-a-number"},
		}
		got, err := getIntParam(query, "num", 10)
		require.NoError(t, err)
		assert.Equal(t, 42, got)

		got, err = getIntParam(query, "missing", 10)
		require.NoError(t, err)
		assert.Equal(t, 10, got)

		_, err = getIntParam(query, "bad", 10)
		var invalid *traceroute.InvalidParamsError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "bad", invalid.Field)
	})

	t.Run("getBoolParam", func(t *testing.T) {
		query := map[string][]string{
			"true":  {"true"},
			"false": {"false"},
			"bad":   {"not-a-bool"},
		}
		got, err := getBoolParam(query, "true", false)
		require.NoError(t, err)
		assert.True(t, got)

		got, err = getBoolParam(query, "false", true)
		require.NoError(t, err)
		assert.False(t, got)

		got, err = getBoolParam(query, "missing", true)
		require.NoError(t, err)
		assert.True(t, got)

		_, err = getBoolParam(query, "bad", true)
		assert.Error(t, err)
	})
}

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForCode(traceroute.ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusServiceUnavailable, statusForCode(traceroute.ErrCodeTimeout))
	assert.Equal(t, http.StatusInternalServerError, statusForCode(traceroute.ErrCodeDNS))
	assert.Equal(t, http.StatusInternalServerError, statusForCode(traceroute.ErrCodeDenied))
}
