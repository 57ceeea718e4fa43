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

package asset

import (
	"io"
	"log/slog"

	"github.com/holiman/uint256"
)

// Journal records asset moves so that a multi-step operation can be unwound
// when a later step fails. Unwind reverses completed moves in reverse order,
// restoring every touched balance to its pre-operation value.
type Journal struct {
	logger *slog.Logger
	moves  []journalMove
}

type journalMove struct {
	asset  Asset
	from   Address
	to     Address
	amount *uint256.Int
}

func NewJournal(logger *slog.Logger) *Journal {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Journal{logger: logger}
}

// Move executes a transfer and records it for a possible Unwind. The journal
// only records moves that succeeded.
func (j *Journal) Move(a Asset, from, to Address, amount *uint256.Int) error {
	if err := Move(a, from, to, amount); err != nil {
		return err
	}
	j.moves = append(j.moves, journalMove{
		asset:  a,
		from:   from,
		to:     to,
		amount: new(uint256.Int).Set(amount),
	})
	return nil
}

// Len returns the number of recorded moves.
func (j *Journal) Len() int {
	return len(j.moves)
}

// Unwind reverses all recorded moves, newest first, then clears the journal.
// A reversal that itself fails is logged and skipped; balances recorded
// earlier are still restored.
func (j *Journal) Unwind() {
	for i := len(j.moves) - 1; i >= 0; i-- {
		m := j.moves[i]
		if err := Move(m.asset, m.to, m.from, m.amount); err != nil {
			j.logger.Error(
				"failed to unwind asset move",
				"component", "asset",
				"symbol", m.asset.Symbol(),
				"from", string(m.from),
				"to", string(m.to),
				"amount", m.amount.String(),
				"error", err,
			)
		}
	}
	j.moves = nil
}

// Commit discards the unwind log, making the recorded moves permanent.
func (j *Journal) Commit() {
	j.moves = nil
}
