// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux && !darwin

package packets

import (
	"fmt"
	"runtime"

	"github.com/DataDog/datalink-traceroute/iface"
)

// OpenHandle is not available on this platform
func OpenHandle(desc iface.Descriptor) (Handle, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
}
