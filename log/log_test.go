//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

package log_test

import (
	"testing"

	"github.com/planloop/planloop-go/log"
)

func TestLog(t *testing.T) {
	original := log.Default
	defer func() {
		log.Default = original
	}()

	log.Default = &countLogger{}
	log.Debug("test")
	log.Debugf("test")
	log.Info("test")
	log.Infof("test")
	log.Warn("test")
	log.Warnf("test")
	log.Error("test")
	log.Errorf("test")
	log.Fatal("test")
	log.Fatalf("test")

	logger := log.Default.(*countLogger)
	if logger.calls != 10 {
		t.Fatalf("expected calls=10, got %d", logger.calls)
	}
}

type countLogger struct {
	calls int
}

func (c *countLogger) Debug(args ...any) { c.calls++ }
func (c *countLogger) Debugf(format string, args ...any) { c.calls++ }
func (c *countLogger) Info(args ...any) { c.calls++ }
func (c *countLogger) Infof(format string, args ...any) { c.calls++ }
func (c *countLogger) Warn(args ...any) { c.calls++ }
func (c *countLogger) Warnf(format string, args ...any) { c.calls++ }
func (c *countLogger) Error(args ...any) { c.calls++ }
func (c *countLogger) Errorf(format string, args ...any) { c.calls++ }
func (c *countLogger) Fatal(args ...any) { c.calls++ }
func (c *countLogger) Fatalf(format string, args ...any) { c.calls++ }
