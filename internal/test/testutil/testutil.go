// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testutil holds small helpers shared by the fundgov tests.
package testutil

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fundgov/event"
)

// Address returns a deterministic test identity whose last byte is n
func Address(n byte) common.Address {
	return common.BytesToAddress([]byte{n})
}

// WaitForCondition polls condition until it returns true or fails the test
// after timeout
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, msg)
}

// RequireReceive waits for a value on ch or fails the test after timeout
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
		var zero T
		return zero
	}
}

// RequireNoReceive fails the test if a value arrives on ch within duration
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	duration time.Duration,
	msg string,
) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value received on channel: %v: %s", v, msg)
		}
	case <-time.After(duration):
	}
}

// RequirePayload asserts that evt has the given type and returns its payload
func RequirePayload[T any](
	t *testing.T,
	evt event.Event,
	eventType event.EventType,
) T {
	t.Helper()
	require.Equal(t, eventType, evt.Type)
	payload, ok := evt.Data.(T)
	require.Truef(t, ok, "event payload is %T", evt.Data)
	return payload
}

// Logger returns a debug logger that writes through t.Log
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
