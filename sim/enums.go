package sim

import (
	"strings"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/pkg/errors"
)

type named interface {
	~uint8
	String() string
}

// parseEnum matches value against the String() of each candidate, ignoring
// case and spaces. An empty value yields def.
func parseEnum[T named](kind, value string, def T, candidates ...T) (T, error) {
	if value == "" {
		return def, nil
	}
	want := normalize(value)
	for _, c := range candidates {
		if normalize(c.String()) == want {
			return c, nil
		}
	}
	return def, errors.Errorf("unknown %s %q", kind, value)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

func parseOperationalState(value string) (core.BankOperationalState, error) {
	return parseEnum("operational state", value, core.BankOperationalStateOperational,
		core.BankOperationalStatePaused, core.BankOperationalStateOperational, core.BankOperationalStateReduceOnly)
}

func parseRiskTier(value string) (core.RiskTier, error) {
	return parseEnum("risk tier", value, core.Collateral, core.Collateral, core.Isolated)
}

func parseAssetTag(value string) (core.AssetTag, error) {
	return parseEnum("asset tag", value, core.AssetTagDefault, core.AssetTagDefault, core.AssetTagSol, core.AssetTagStaked)
}

func parseOracleSetup(value string) (core.OracleSetup, error) {
	return parseEnum("oracle setup", value, core.OracleSetupPythEma,
		core.OracleSetupPythEma, core.OracleSetupSwitchboardPull, core.OracleSetupStakedWithPythPush, core.OracleSetupMultiFeed)
}

func parseAccountFlag(value string) (core.AccountFlags, error) {
	if value == "" {
		return 0, errors.New("missing account flag")
	}
	return parseEnum("account flag", value, 0,
		core.DisabledFlag, core.InFlashloanFlag, core.FlashloanEnabledFlag, core.TransferAuthorityAllowedFlag)
}

func parseEmissionsMode(value string) (core.BankFlags, error) {
	switch normalize(value) {
	case "lending":
		return core.BankFlagsLendingActive, nil
	case "borrowing":
		return core.BankFlagsBorrowActive, nil
	case "both", "":
		return core.BankFlagsEmissionsActive, nil
	default:
		return 0, errors.Errorf("unknown emissions mode %q", value)
	}
}

func parseAction(value string) (core.ActionType, error) {
	var action core.ActionType
	if err := action.UnmarshalText([]byte(value)); err != nil {
		return 0, errors.Wrapf(err, "action %q", value)
	}
	return action, nil
}
