// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import "github.com/DataDog/datadog-hoptrace/common"

// Termination is the reason a trace ended
type Termination int

const (
	// TerminationNone means the trace is still running
	TerminationNone Termination = iota
	// TerminationTargetReached means the target itself answered a probe
	TerminationTargetReached
	// TerminationMaxHops means every TTL up to the maximum was probed
	TerminationMaxHops
	// TerminationConsecutiveTimeouts means too many hops in a row were silent
	TerminationConsecutiveTimeouts
	// TerminationInterrupted means the context was cancelled
	TerminationInterrupted
	// TerminationError means a socket could not be opened mid-trace
	TerminationError
)

func (t Termination) String() string {
	switch t {
	case TerminationNone:
		return "none"
	case TerminationTargetReached:
		return "target_reached"
	case TerminationMaxHops:
		return "max_hops"
	case TerminationConsecutiveTimeouts:
		return "consecutive_timeouts"
	case TerminationInterrupted:
		return "interrupted"
	case TerminationError:
		return "error"
	default:
		return "unknown"
	}
}

// HopOutcome summarizes the probes of one TTL for the stop policy
type HopOutcome int

const (
	// HopReplied means at least one probe got a usable reply
	HopReplied HopOutcome = iota
	// HopTimedOut means every probe hit its read deadline
	HopTimedOut
	// HopInconclusive means no usable reply but not every probe timed out
	HopInconclusive
)

// TraceState is the mutable part of a trace, threaded through the hop loop
type TraceState struct {
	// TTL is the next TTL to probe
	TTL                 int
	ConsecutiveTimeouts int
	// Seq numbers probes across the whole trace
	Seq         uint16
	Termination Termination
}

// NewTraceState returns the state of a trace that has not probed anything yet
func NewTraceState() TraceState {
	return TraceState{TTL: common.DefaultMinTTL}
}

// NextSeq returns the sequence number of the next probe
func (s *TraceState) NextSeq() uint16 {
	s.Seq++
	return s.Seq
}

// RecordHop applies the consecutive timeout policy to the outcome of the
// current TTL. It returns true when the trace must stop, in which case the
// hop is not reported.
func (s *TraceState) RecordHop(outcome HopOutcome, maxConsecutiveTimeouts int) bool {
	switch outcome {
	case HopTimedOut:
		s.ConsecutiveTimeouts++
	case HopReplied:
		s.ConsecutiveTimeouts = 0
	}
	if s.ConsecutiveTimeouts >= maxConsecutiveTimeouts {
		s.Termination = TerminationConsecutiveTimeouts
		return true
	}
	return false
}
