// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package localaddr

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	net.Conn
	local  net.Addr
	closed bool
}

func (c *fakeConn) LocalAddr() net.Addr { return c.local }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestSourceAddrForLoopback(t *testing.T) {
	addr, err := SourceAddrFor(netip.MustParseAddr("127.0.0.1"))
	require.NoError(t, err)
	assert.True(t, addr.IsLoopback(), "source %s should be loopback", addr)
	assert.True(t, addr.Is4())
}

func TestSourceAddrForInvalid(t *testing.T) {
	_, err := SourceAddrFor(netip.Addr{})
	require.EqualError(t, err, "invalid destination address")
}

func TestSourceFromDial(t *testing.T) {
	original := dialUDPFn
	t.Cleanup(func() { dialUDPFn = original })

	tests := []struct {
		name    string
		local   net.Addr
		dialErr error
		want    netip.Addr
		wantErr string
	}{
		{
			name:  "udp local address",
			local: &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: 40000},
			want:  netip.MustParseAddr("192.0.2.10"),
		},
		{
			name:    "dial error",
			dialErr: errors.New("network is unreachable"),
			wantErr: "failed to dial 203.0.113.1: network is unreachable",
		},
		{
			name:    "not a udp address",
			local:   &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 40000},
			wantErr: "invalid address type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{local: tt.local}
			dialUDPFn = func(dst netip.AddrPort) (net.Conn, error) {
				assert.Equal(t, uint16(discardPort), dst.Port())
				if tt.dialErr != nil {
					return nil, tt.dialErr
				}
				return conn, nil
			}

			got, err := sourceFromDial(netip.MustParseAddr("203.0.113.1"))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, conn.closed, "the probe socket must be closed")
		})
	}
}

func TestNormalizeLoopbackSource(t *testing.T) {
	tests := []struct {
		name string
		dst  string
		src  string
		want string
	}{
		{"public destination untouched", "8.8.8.8", "192.0.2.10", "192.0.2.10"},
		{"loopback source untouched", "127.0.0.1", "127.0.0.2", "127.0.0.2"},
		{"v4 loopback forced", "127.0.0.1", "192.0.2.10", "127.0.0.1"},
		{"v6 loopback forced", "::1", "2001:db8::1", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLoopbackSource(netip.MustParseAddr(tt.dst), netip.MustParseAddr(tt.src))
			assert.Equal(t, netip.MustParseAddr(tt.want), got)
		})
	}
}
