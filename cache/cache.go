// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package cache memoizes slow lookups (reverse DNS, public IP) across traces
// of the same process
package cache

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultExpire = 5 * time.Minute
	defaultPurge  = 30 * time.Second
)

// Cache is shared by every caller of Get and GetWithExpiration
var Cache = cache.New(defaultExpire, defaultPurge)

// Key builds a namespaced cache key, e.g. Key("rdns", "192.0.2.1") is "rdns:192.0.2.1"
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// Get returns the value for key, calling cb on a miss. Successful results
// never expire.
func Get[T any](key string, cb func() (T, error)) (T, error) {
	return GetWithExpiration[T](key, cb, cache.NoExpiration)
}

// GetWithExpiration returns the value for key, calling cb on a miss. The
// result of cb is kept for expire unless cb failed: errors are never cached
// so the next call retries.
func GetWithExpiration[T any](key string, cb func() (T, error), expire time.Duration) (T, error) {
	if x, found := Cache.Get(key); found {
		if v, ok := x.(T); ok {
			return v, nil
		}
		// same key stored with another type, recompute
		Cache.Delete(key)
	}

	res, err := cb()
	if err == nil {
		Cache.Set(key, res, expire)
	}
	return res, err
}

// Forget drops key so the next lookup calls its callback again
func Forget(key string) {
	Cache.Delete(key)
}
