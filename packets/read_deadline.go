// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packets

import (
	"time"
)

// getReadTimeout turns an absolute read deadline into the relative timeout a
// blocking read syscall takes. expired is true once the deadline has passed,
// in which case the read must not be attempted at all.
func getReadTimeout(deadline time.Time, now time.Time) (timeout time.Duration, expired bool) {
	const (
		defaultTimeout = 1000 * time.Millisecond
		minTimeout     = 1 * time.Millisecond
	)
	// always return a timeout because we don't want the syscall to block forever
	if deadline.IsZero() {
		return defaultTimeout, false
	}

	timeout = deadline.Sub(now)
	if timeout <= 0 {
		return 0, true
	}
	// sub-millisecond timeouts round down to "block forever" on some kernels
	if timeout < minTimeout {
		return minTimeout, false
	}
	return timeout, false
}
