// Package domain contains the value types of the swap pipeline.
package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// AssetKind tags an AssetRef.
type AssetKind uint8

const (
	assetUnset AssetKind = iota
	AssetNative
	AssetToken
)

// AssetRef is either the chain's native coin or an ERC20 token.
// The zero value is unset and is rejected by validation.
type AssetRef struct {
	kind    AssetKind
	address common.Address
}

// Native returns the native coin reference.
func Native() AssetRef {
	return AssetRef{kind: AssetNative}
}

// Token returns a token reference. The zero address is not a token.
func Token(addr common.Address) (AssetRef, error) {
	if addr == (common.Address{}) {
		return AssetRef{}, apperror.Validation(apperror.CodeInvalidAddress, "zero address is not a token")
	}
	return AssetRef{kind: AssetToken, address: addr}, nil
}

// MustToken is Token for addresses known at compile time.
func MustToken(hex string) AssetRef {
	ref, err := ParseAssetRef(hex)
	if err != nil || !ref.IsToken() {
		panic(fmt.Sprintf("domain: invalid token %q", hex))
	}
	return ref
}

// ParseAssetRef accepts "native", "eth" or a 0x-prefixed 20-byte hex address.
func ParseAssetRef(s string) (AssetRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AssetRef{}, apperror.Validation(apperror.CodeMissingField, "asset")
	}

	switch strings.ToLower(s) {
	case "native", "eth":
		return Native(), nil
	}

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return AssetRef{}, apperror.Validation(apperror.CodeInvalidAddress, fmt.Sprintf("%q lacks 0x prefix", s))
	}
	if !common.IsHexAddress(s) {
		return AssetRef{}, apperror.Validation(apperror.CodeInvalidAddress, fmt.Sprintf("%q is not a 20-byte hex address", s))
	}
	return Token(common.HexToAddress(s))
}

func (r AssetRef) Kind() AssetKind { return r.kind }
func (r AssetRef) IsSet() bool     { return r.kind != assetUnset }
func (r AssetRef) IsNative() bool  { return r.kind == AssetNative }
func (r AssetRef) IsToken() bool   { return r.kind == AssetToken }

// Address is the token contract, or the zero address for native.
func (r AssetRef) Address() common.Address { return r.address }

// Equal compares kind and address.
func (r AssetRef) Equal(other AssetRef) bool {
	return r.kind == other.kind && r.address == other.address
}

func (r AssetRef) String() string {
	switch r.kind {
	case AssetNative:
		return "native"
	case AssetToken:
		return r.address.Hex()
	default:
		return "unset"
	}
}
