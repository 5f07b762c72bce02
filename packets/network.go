// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/DataDog/datadog-hoptrace/common"
)

// SystemNetwork acquires real sockets from the operating system
type SystemNetwork struct{}

var _ Network = SystemNetwork{}

// OpenSource opens the raw ICMP receive socket for this platform
func (SystemNetwork) OpenSource() (Source, error) {
	return openSource()
}

// OpenSink opens a send socket for proto with the given outbound TTL
func (SystemNetwork) OpenSink(proto common.Protocol, ttl uint8) (Sink, error) {
	switch proto {
	case common.ProtocolUDP:
		return NewSinkUDP(ttl)
	case common.ProtocolICMP:
		return NewSinkICMP(ttl)
	default:
		return nil, fmt.Errorf("OpenSink: unsupported protocol %q", proto)
	}
}

// IsTimeout returns true if err is a read deadline expiry
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsPermissionError returns true if err comes from the OS refusing a raw socket
func IsPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM)
}
