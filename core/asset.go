package core

import (
	"github.com/pkg/errors"
)

// AssetTag restricts which banks may share one account.
type AssetTag uint8

const (
	AssetTagDefault AssetTag = iota
	// SOL can sit next to either of the others
	AssetTagSol
	// native stake, never mixed with default assets
	AssetTagStaked
)

func (t AssetTag) String() string {
	switch t {
	case AssetTagDefault:
		return "Default"
	case AssetTagSol:
		return "Sol"
	case AssetTagStaked:
		return "Staked"
	default:
		return "Unknown"
	}
}

func (t AssetTag) compatibleWith(other AssetTag) bool {
	switch {
	case t == AssetTagSol || other == AssetTagSol:
		return true
	default:
		return t == other
	}
}

// CheckAssetTagCompatibility fails when tag cannot join an account that
// already holds balances tagged with existing.
func CheckAssetTagCompatibility(tag AssetTag, existing []AssetTag) error {
	for _, e := range existing {
		if !tag.compatibleWith(e) {
			return errors.Wrapf(AssetTagMismatch, "%s bank cannot join an account holding %s", tag, e)
		}
	}
	return nil
}
