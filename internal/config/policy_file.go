package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the declarative policy description. Besides overriding limits it
// documents every rule the agent operates under, so it is kept human-readable.
type PolicyFile struct {
	Browser struct {
		Mode           string   `yaml:"mode"`
		AllowedDomains []string `yaml:"allowed_domains"`
	} `yaml:"browser"`
	Git struct {
		AllowedPrefixes []string `yaml:"allowed_prefixes"`
		MaxLOCDelta     int      `yaml:"max_loc_delta"`
	} `yaml:"git"`
	Swap struct {
		AllowedTokens []string `yaml:"allowed_tokens"`
		MaxUSDPerTx   float64  `yaml:"max_usd_per_tx"`
		DailyCapUSD   float64  `yaml:"daily_cap_usd"`
	} `yaml:"swap"`
	WalletSend struct {
		MaxSOLPerTx float64 `yaml:"max_sol_per_tx"`
		DailyCapSOL float64 `yaml:"daily_cap_sol"`
	} `yaml:"wallet_send"`
	Rules map[string]PolicyRuleDoc `yaml:"rules"`
}

// PolicyRuleDoc is the documentation block of one policy
type PolicyRuleDoc struct {
	Description string   `yaml:"description"`
	Rules       []string `yaml:"rules"`
}

// LoadPolicyFile reads a YAML policy file
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return &pf, nil
}

// Apply overlays every non-zero value of the file onto p
func (pf *PolicyFile) Apply(p *PolicyConfig) {
	if pf.Browser.Mode != "" {
		p.BrowserMode = strings.ToLower(pf.Browser.Mode)
	}
	if len(pf.Browser.AllowedDomains) > 0 {
		p.AllowedDomains = pf.Browser.AllowedDomains
	}
	if len(pf.Git.AllowedPrefixes) > 0 {
		p.AllowedGitPrefixes = pf.Git.AllowedPrefixes
	}
	if pf.Git.MaxLOCDelta > 0 {
		p.MaxLOCDelta = pf.Git.MaxLOCDelta
	}
	if len(pf.Swap.AllowedTokens) > 0 {
		tokens := make([]string, len(pf.Swap.AllowedTokens))
		for i, t := range pf.Swap.AllowedTokens {
			tokens[i] = strings.ToUpper(t)
		}
		p.AllowedTokens = tokens
	}
	if pf.Swap.MaxUSDPerTx > 0 {
		p.MaxSwapUSDPerTx = pf.Swap.MaxUSDPerTx
	}
	if pf.Swap.DailyCapUSD > 0 {
		p.DailySwapCapUSD = pf.Swap.DailyCapUSD
	}
	if pf.WalletSend.MaxSOLPerTx > 0 {
		p.MaxSOLPerTx = pf.WalletSend.MaxSOLPerTx
	}
	if pf.WalletSend.DailyCapSOL > 0 {
		p.DailySpendCapSOL = pf.WalletSend.DailyCapSOL
	}
}
