package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// rulesFile mirrors the YAML layout of PAYROLL_RULES_FILE. Amounts are strings
// so they are never parsed through float64.
type rulesFile struct {
	StatutoryDeductionRate string            `yaml:"statutory_deduction_rate"`
	FlatBonus              string            `yaml:"flat_bonus"`
	RoleBonuses            map[string]string `yaml:"role_bonuses"`
	AguinaldoDivisor       string            `yaml:"aguinaldo_divisor"`
	Rounding               struct {
		Places *int32 `yaml:"places"`
		Mode   string `yaml:"mode"`
	} `yaml:"rounding"`
	Commission struct {
		Roles       []string `yaml:"roles"`
		DefaultRate string   `yaml:"default_rate"`
		Tiers       []struct {
			MinAchievedPct string `yaml:"min_achieved_pct"`
			Rate           string `yaml:"rate"`
		} `yaml:"tiers"`
	} `yaml:"commission"`
	PaymentDay int `yaml:"payment_day"`
	Workers    int `yaml:"workers"`
}

// ApplyRulesFile overrides the rules with every value present in the YAML file at path.
func (p *PayrollConfig) ApplyRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payroll rules file: %w", err)
	}
	return p.ApplyRules(data)
}

// ApplyRules overrides the rules with every value present in the YAML document.
func (p *PayrollConfig) ApplyRules(data []byte) error {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse payroll rules: %w", err)
	}

	if err := setDecimal(&p.StatutoryDeductionRate, rf.StatutoryDeductionRate, "statutory_deduction_rate"); err != nil {
		return err
	}
	if err := setDecimal(&p.FlatBonus, rf.FlatBonus, "flat_bonus"); err != nil {
		return err
	}
	if err := setDecimal(&p.AguinaldoDivisor, rf.AguinaldoDivisor, "aguinaldo_divisor"); err != nil {
		return err
	}
	if len(rf.RoleBonuses) > 0 {
		bonuses := make(map[string]decimal.Decimal, len(rf.RoleBonuses))
		for role, raw := range rf.RoleBonuses {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("role_bonuses.%s: %w", role, err)
			}
			bonuses[role] = d
		}
		p.RoleBonuses = bonuses
	}

	if rf.Rounding.Places != nil {
		p.Rounding.Places = *rf.Rounding.Places
	}
	if rf.Rounding.Mode != "" {
		mode, err := money.ParseRoundingMode(rf.Rounding.Mode)
		if err != nil {
			return fmt.Errorf("rounding.mode: %w", err)
		}
		p.Rounding.Mode = mode
	}

	if len(rf.Commission.Roles) > 0 {
		p.CommissionRoles = rf.Commission.Roles
	}
	if err := setDecimal(&p.DefaultCommissionRate, rf.Commission.DefaultRate, "commission.default_rate"); err != nil {
		return err
	}
	if len(rf.Commission.Tiers) > 0 {
		tiers := make([]CommissionTier, 0, len(rf.Commission.Tiers))
		for i, t := range rf.Commission.Tiers {
			minPct, err := decimal.NewFromString(t.MinAchievedPct)
			if err != nil {
				return fmt.Errorf("commission.tiers[%d].min_achieved_pct: %w", i, err)
			}
			rate, err := decimal.NewFromString(t.Rate)
			if err != nil {
				return fmt.Errorf("commission.tiers[%d].rate: %w", i, err)
			}
			tiers = append(tiers, CommissionTier{MinAchievedPct: minPct, Rate: rate})
		}
		sort.Slice(tiers, func(i, j int) bool {
			return tiers[i].MinAchievedPct.LessThan(tiers[j].MinAchievedPct)
		})
		p.CommissionTiers = tiers
	}

	if rf.PaymentDay != 0 {
		p.PaymentDay = rf.PaymentDay
	}
	if rf.Workers != 0 {
		p.Workers = rf.Workers
	}
	return nil
}

func setDecimal(dst *decimal.Decimal, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
