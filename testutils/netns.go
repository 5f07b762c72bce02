// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build linux

package testutils

import (
	"os"
	"runtime"
	"testing"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// WithNS executes the given function in the given network namespace, and then
// switches back to the previous namespace. fn runs on a locked OS thread:
// sockets it opens stay in ns even once WithNS returns.
func WithNS(ns netns.NsHandle, fn func() error) error {
	if ns == netns.None() {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prevNS, err := netns.Get()
	if err != nil {
		return err
	}
	defer prevNS.Close()

	if ns.Equal(prevNS) {
		return fn()
	}

	if err := netns.Set(ns); err != nil {
		return err
	}

	fnErr := fn()
	nsErr := netns.Set(prevNS)
	if fnErr != nil {
		return fnErr
	}
	return nsErr
}

// NewLoopbackNS creates a network namespace holding nothing but a loopback
// interface that is up. The test is skipped when not running as root.
func NewLoopbackNS(t testing.TB) netns.NsHandle {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("creating a network namespace requires root")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prevNS, err := netns.Get()
	if err != nil {
		t.Fatalf("failed to get the current namespace: %s", err)
	}
	defer prevNS.Close()

	// netns.New switches the calling thread to the new namespace
	ns, err := netns.New()
	if err != nil {
		t.Fatalf("failed to create a namespace: %s", err)
	}
	if err := netns.Set(prevNS); err != nil {
		t.Fatalf("failed to switch back to the original namespace: %s", err)
	}
	t.Cleanup(func() { ns.Close() })

	handle, err := netlink.NewHandleAt(ns)
	if err != nil {
		t.Fatalf("failed to open a netlink handle in the namespace: %s", err)
	}
	defer handle.Close()

	lo, err := handle.LinkByName("lo")
	if err != nil {
		t.Fatalf("failed to find the loopback interface: %s", err)
	}
	if err := handle.LinkSetUp(lo); err != nil {
		t.Fatalf("failed to bring the loopback interface up: %s", err)
	}
	return ns
}
