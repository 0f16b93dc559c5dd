// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package cache memoizes slow lookups made around a traceroute run, such as
// PTR records of hop addresses and the host's public IP
package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultExpire = 5 * time.Minute
	defaultPurge  = 30 * time.Second
)

// Namespaces keep unrelated lookups of the same subject apart
const (
	NamespaceReverseDns = "rdns"
	NamespacePublicIP   = "publicip"
)

// Cache is the process wide store
var Cache = cache.New(defaultExpire, defaultPurge)

// Key builds the cache key for subject inside namespace
func Key(namespace, subject string) string {
	return namespace + "|" + subject
}

// Get returns the value for 'key'.
//
// cache hit:
//
//	pull the value from the cache and returns it.
//
// cache miss:
//
//	call 'cb' function to get a new value. If the callback doesn't return an error the returned value is
//	cached with no expiration date and returned.
func Get[T any](key string, cb func() (T, error)) (T, error) {
	return GetWithExpiration(key, cb, cache.NoExpiration)
}

// GetWithExpiration is Get with an explicit lifetime for newly cached values.
// A cached value of another type counts as a miss and is replaced.
func GetWithExpiration[T any](key string, cb func() (T, error), expire time.Duration) (T, error) {
	if x, found := Cache.Get(key); found {
		if v, ok := x.(T); ok {
			return v, nil
		}
	}

	res, err := cb()
	// We don't cache errors
	if err == nil {
		Cache.Set(key, res, expire)
	}
	return res, err
}

// GetContext is GetWithExpiration for lookups that honour a context. Values
// computed after ctx is done are returned but not cached.
func GetContext[T any](ctx context.Context, key string, cb func(context.Context) (T, error), expire time.Duration) (T, error) {
	if x, found := Cache.Get(key); found {
		if v, ok := x.(T); ok {
			return v, nil
		}
	}

	res, err := cb(ctx)
	if err == nil && ctx.Err() == nil {
		Cache.Set(key, res, expire)
	}
	return res, err
}
