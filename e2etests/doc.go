// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package e2etests contains end-to-end tests for hoptrace. They build the
// hoptrace and hoptrace-server binaries, run them with elevated privileges
// against real targets and validate the JSON they produce.
package e2etests
