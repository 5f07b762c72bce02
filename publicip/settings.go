// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package publicip

import "time"

const (
	// MaxTries bounds the attempts made against a single IP checker
	MaxTries = 3
	// cacheExpiration is how long a discovered public IP is reused
	cacheExpiration = 2 * time.Hour
	cacheNamespace  = "publicip"
)

// Timeout bounds each HTTP request and the whole consensus vote
var Timeout = 2 * time.Second

// ipCheckers are asked in turn, the first valid answer wins
var ipCheckers = []string{
	"https://icanhazip.com/",
	"https://ipinfo.io/ip",
	"https://checkip.amazonaws.com/",
	"https://api.ipify.org/",
	"https://whatismyip.akamai.com/",
}

type voter struct {
	uri    string
	weight uint
}

// consensusVoters are polled together when every checker failed. TLS
// providers weigh more.
var consensusVoters = []voter{
	{"https://api.ipify.org", 3},
	{"https://ifconfig.co/ip", 3},
	{"http://myexternalip.com/raw", 1},
	{"http://ipecho.net/plain", 1},
	{"http://ifconfig.me/ip", 1},
	{"http://ident.me", 1},
	{"http://checkip.amazonaws.com", 1},
}
