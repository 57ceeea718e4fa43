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

package whitelist

import (
	"errors"
	"fmt"
	"sync"

	"github.com/openpad-io/openpad/asset"
)

type Type int

const (
	TypeNone Type = iota
	TypeMerkle
	TypeNFT
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeMerkle:
		return "merkle"
	case TypeNFT:
		return "nft"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

var (
	ErrNotWhitelisted = errors.New("not whitelisted")
	// ErrQueryFailed reports that the NFT balance lookup itself failed.
	// This is a service fault, distinct from a zero balance.
	ErrQueryFailed = errors.New("whitelist query failed")
	ErrMissingRoot = errors.New("merkle root not set")
	ErrMissingNFT  = errors.New("nft contract not set")
)

// BalanceChecker answers NFT-ownership queries for TypeNFT whitelists.
type BalanceChecker interface {
	BalanceOf(addr asset.Address) (uint64, error)
}

// Verifier performs the stateless allowed/denied check for a contributor.
// The Merkle root is owner-mutable at any time, including mid-sale; there is
// no proof caching, so rotating the root immediately invalidates proofs for
// removed leaves.
type Verifier struct {
	typ  Type
	root []byte
	nft  BalanceChecker
	mu   sync.RWMutex
}

// NewNone builds a verifier that allows every address.
func NewNone() *Verifier {
	return &Verifier{typ: TypeNone}
}

// NewMerkle builds a verifier requiring a keccak-256 inclusion proof of the
// contributor address against root.
func NewMerkle(root []byte) (*Verifier, error) {
	if len(root) == 0 {
		return nil, ErrMissingRoot
	}
	return &Verifier{
		typ:  TypeMerkle,
		root: append([]byte(nil), root...),
	}, nil
}

// NewNFT builds a verifier requiring a nonzero balance on the given
// NFT contract.
func NewNFT(nft BalanceChecker) (*Verifier, error) {
	if nft == nil {
		return nil, ErrMissingNFT
	}
	return &Verifier{typ: TypeNFT, nft: nft}, nil
}

func (v *Verifier) Type() Type {
	return v.typ
}

// Root returns the current Merkle root, or nil for non-Merkle verifiers.
func (v *Verifier) Root() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.root == nil {
		return nil
	}
	return append([]byte(nil), v.root...)
}

// SetRoot replaces the Merkle root. Only valid for TypeMerkle.
func (v *Verifier) SetRoot(root []byte) error {
	if v.typ != TypeMerkle {
		return fmt.Errorf("cannot set root on %s whitelist", v.typ)
	}
	if len(root) == 0 {
		return ErrMissingRoot
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = append([]byte(nil), root...)
	return nil
}

// Allowed returns nil if addr passes the whitelist check, ErrNotWhitelisted
// if it is denied, or an ErrQueryFailed-wrapped error when the check itself
// could not be performed.
func (v *Verifier) Allowed(addr asset.Address, proof [][]byte) error {
	switch v.typ {
	case TypeNone:
		return nil
	case TypeMerkle:
		v.mu.RLock()
		root := v.root
		v.mu.RUnlock()
		if VerifyProof(root, LeafHash(addr), proof) {
			return nil
		}
		return ErrNotWhitelisted
	case TypeNFT:
		balance, err := v.nft.BalanceOf(addr)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}
		if balance == 0 {
			return ErrNotWhitelisted
		}
		return nil
	default:
		return fmt.Errorf("unknown whitelist type %d", int(v.typ))
	}
}
