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

// Package clock provides the time source used to gate voting windows.
// Time is expressed in abstract units (seconds for the wall clock, whatever
// the caller chooses for the manual clock).
package clock

import (
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() uint64
}

// Wall reports the current Unix time in seconds
type Wall struct{}

func (Wall) Now() uint64 {
	return uint64(time.Now().Unix()) //nolint:gosec
}

// Manual is a clock that only moves when told to. It is safe for concurrent use
type Manual struct {
	now atomic.Uint64
}

func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Now() uint64 {
	return m.now.Load()
}

// Set moves the clock to the given time. Moving backwards is allowed
func (m *Manual) Set(now uint64) {
	m.now.Store(now)
}

// Advance moves the clock forward and returns the new time
func (m *Manual) Advance(delta uint64) uint64 {
	return m.now.Add(delta)
}
