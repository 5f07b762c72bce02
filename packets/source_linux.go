// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package packets

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DataDog/datadog-hoptrace/common"
)

// sourceLinux is a raw IPPROTO_ICMP socket. Frames read from it start at the
// IPv4 header.
type sourceLinux struct {
	sock    *os.File
	rawConn syscall.RawConn
}

var _ Source = &sourceLinux{}

// NewSourceLinux opens the raw ICMP receive socket and attaches the ICMP reply filter
func NewSourceLinux() (Source, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw ICMP socket: %w", err)
	}

	if err := attachFilter(fd); err != nil {
		unix.Close(fd)
		return nil, err
	}

	sock := os.NewFile(uintptr(fd), "icmp")
	rawConn, err := sock.SyscallConn()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to get raw connection: %w", err)
	}

	return &sourceLinux{
		sock:    sock,
		rawConn: rawConn,
	}, nil
}

func attachFilter(fd int) error {
	raw, err := ICMPReplyFilter()
	if err != nil {
		return err
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog); err != nil {
		return fmt.Errorf("failed to attach ICMP filter: %w", err)
	}
	return nil
}

// SetReadDeadline sets the deadline for the next ReadFrom
func (s *sourceLinux) SetReadDeadline(t time.Time) error {
	return s.sock.SetReadDeadline(t)
}

// ReadFrom reads one frame. It blocks until a frame arrives or the deadline passes.
func (s *sourceLinux) ReadFrom(buf []byte) (int, netip.Addr, error) {
	var (
		n    int
		from unix.Sockaddr
		err  error
	)
	readErr := s.rawConn.Read(func(fd uintptr) bool {
		n, from, err = unix.Recvfrom(int(fd), buf, 0)
		return !(err == syscall.EAGAIN || err == syscall.EWOULDBLOCK)
	})
	if readErr != nil {
		return 0, netip.Addr{}, readErr
	}
	if err != nil {
		return 0, netip.Addr{}, fmt.Errorf("recvfrom failed: %w", err)
	}

	sa4, ok := from.(*unix.SockaddrInet4)
	if !ok {
		return n, netip.Addr{}, errors.New("recvfrom returned a non IPv4 sender")
	}
	addr, _ := common.UnmappedAddrFromSlice(sa4.Addr[:])
	return n, addr, nil
}

// Close closes the socket
func (s *sourceLinux) Close() error {
	return s.sock.Close()
}

func openSource() (Source, error) {
	return NewSourceLinux()
}
