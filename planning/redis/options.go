//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"github.com/redis/go-redis/v9"
)

// Options is the options for the redis planning store.
type Options struct {
	url    string
	client redis.UniversalClient
	// keyPrefix is the prefix for all redis keys.
	// If set, all keys will be prefixed with this value followed by a colon.
	// For example, if keyPrefix is "myapp", key "sess:{id}" becomes "myapp:sess:{id}".
	keyPrefix string
}

// Option is the option for the redis planning store.
type Option func(*Options)

// WithRedisClientURL creates a redis client from URL and sets it to the store.
// Note: WithRedisClientURL has higher priority than WithRedisClient.
// If both are specified, WithRedisClientURL will be used.
func WithRedisClientURL(url string) Option {
	return func(opts *Options) {
		opts.url = url
	}
}

// WithRedisClient sets an existing redis client to the store.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(opts *Options) {
		opts.client = client
	}
}

// WithKeyPrefix sets the prefix for all redis keys written by the store.
func WithKeyPrefix(prefix string) Option {
	return func(opts *Options) {
		opts.keyPrefix = prefix
	}
}
