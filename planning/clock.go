//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package planning

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time. Injecting it keeps timestamp-dependent
// behavior (invite expiry, archival cutoffs, ordering tie-breaks)
// deterministic in tests.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator mints identifiers for new entities.
type IDGenerator interface {
	// NewID returns a new unique identifier.
	NewID() string
}

// UUIDGenerator returns an IDGenerator backed by random UUIDs.
func UUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string {
	return uuid.New().String()
}

// tokenByteLen is the entropy of an invite token. 32 bytes encode to 43
// URL-safe characters.
const tokenByteLen = 32

// TokenSource mints invite tokens. Tokens must be URL-safe and carry at
// least 256 bits of entropy.
type TokenSource interface {
	// NewToken returns a new invite token.
	NewToken() (string, error)
}

// RandomTokenSource returns a TokenSource backed by crypto/rand, producing
// 43-character base64 URL-safe tokens without padding.
func RandomTokenSource() TokenSource {
	return randomTokenSource{}
}

type randomTokenSource struct{}

func (randomTokenSource) NewToken() (string, error) {
	buf := make([]byte, tokenByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
