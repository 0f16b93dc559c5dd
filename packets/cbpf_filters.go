// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// snapLen is what the filter returns for accepted packets
const snapLen = 0x40000

// icmpReplyBody accepts first-fragment ICMPv4 time-exceeded or
// destination-unreachable messages whose IPv4 header starts at off. It is the
// equivalent of tcpdump's
// 'icmp and (icmp[icmptype] = icmp-timxceed or icmp[icmptype] = icmp-unreach)'
// once the link header has been checked. Every false branch lands on the
// final reject.
func icmpReplyBody(off uint32) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: off + 9, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipFalse: 7},
		// fragment offset
		bpf.LoadAbsolute{Off: off + 6, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 5},
		// X = IPv4 header length
		bpf.LoadMemShift{Off: off},
		bpf.LoadIndirect{Off: off, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 11, SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 3, SkipFalse: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	}
}

// icmpReplyProgram builds the reply filter for one framing
func icmpReplyProgram(framing Framing) []bpf.Instruction {
	off := uint32(framing.ipOffset())
	if framing.Ethernet {
		prog := []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipFalse: 9},
		}
		return append(prog, icmpReplyBody(off)...)
	}

	// without a link header the IP version nibble tells IPv4 apart
	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: off, Size: 1},
		bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: 0xf0},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x40, SkipFalse: 9},
	}
	return append(prog, icmpReplyBody(off)...)
}

// getClassicBPFFilter assembles the kernel prefilter for a framing
func getClassicBPFFilter(framing Framing) ([]bpf.RawInstruction, error) {
	raw, err := bpf.Assemble(icmpReplyProgram(framing))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble filter for %s framing: %w", framing, err)
	}
	return raw, nil
}
