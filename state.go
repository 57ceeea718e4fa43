// Copyright 2025 OpenPad Software
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

package openpad

import (
	"fmt"
	"sync/atomic"
)

// Phase is the sale lifecycle phase. Finalized and Canceled are terminal.
type Phase int

const (
	PhasePending Phase = iota
	PhaseActive
	PhaseFinalized
	PhaseCanceled
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	case PhaseFinalized:
		return "finalized"
	case PhaseCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

func phaseFromString(s string) (Phase, error) {
	switch s {
	case "pending":
		return PhasePending, nil
	case "active":
		return PhaseActive, nil
	case "finalized":
		return PhaseFinalized, nil
	case "canceled":
		return PhaseCanceled, nil
	default:
		return 0, fmt.Errorf("unknown phase %q", s)
	}
}

// guard is the non-reentrant lock covering every fund-moving entry point.
// It is an explicit flag rather than a mutex: an asset callback re-entering
// on the same goroutine must fail with ErrReentrantCall, not deadlock.
type guard struct {
	entered atomic.Bool
}

func (g *guard) enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *guard) exit() {
	g.entered.Store(false)
}
