package core

import (
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type Group struct {
	Id       uuid.UUID `json:"id"`
	AdminKey string    `json:"adminKey"`

	Name        string `json:"name"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	Description string `json:"description"`

	StakedSettings *StakedSettings `json:"stakedSettings,omitempty"`
}

func NewGroup(clk clock.Clock, adminKey string, name string, description string) *Group {
	return &Group{
		Id:          uuid.Must(uuid.NewV4()),
		AdminKey:    adminKey,
		Name:        name,
		CreatedAt:   clk.Now().Unix(),
		UpdatedAt:   clk.Now().Unix(),
		Description: description,
	}
}

func (g *Group) SetStakedSettings(clk clock.Clock, settings StakedSettings) {
	g.StakedSettings = &settings
	g.UpdatedAt = clk.Now().Unix()
}

// AddPermissionlessStakedBank creates a staked bank from the group's template.
func (g *Group) AddPermissionlessStakedBank(clk clock.Clock, name, lstMint, stakePool string, mintDecimals int32, irc InterestRateConfig) (*Bank, error) {
	if g.StakedSettings == nil {
		return nil, errors.Wrapf(InvalidConfig, "group %s has no staked settings", g.Name)
	}
	return NewStakedBank(clk, g.Id, g.StakedSettings, name, lstMint, stakePool, mintDecimals, irc)
}

// PropagateStakedSettings pushes the group's template to every staked bank of the group.
func (g *Group) PropagateStakedSettings(banks BankSet) error {
	if g.StakedSettings == nil {
		return errors.Wrapf(InvalidConfig, "group %s has no staked settings", g.Name)
	}
	for _, bank := range banks {
		if bank.GroupId != g.Id || bank.BankConfig.AssetTag != AssetTagStaked {
			continue
		}
		if err := PropagateStakedSettings(g.StakedSettings, bank); err != nil {
			return err
		}
	}
	return nil
}
