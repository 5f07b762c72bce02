// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// hoptrace traces the route to a host with TTL limited probes
package main

import (
	"github.com/DataDog/datadog-hoptrace/cmd"
)

func main() {
	cmd.Execute()
}
