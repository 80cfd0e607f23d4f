package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/switchyard/proxy"
	"github.com/arloliu/switchyard/types"
)

// DefaultKey is the configuration key holding the data source settings.
const DefaultKey = "switchyard.data_source_config"

// Settings is the data source configuration document.
//
// The JSON field names are shared with the settings screen that writes it.
type Settings struct {
	// PrimarySource names the primary store. Legacy names "cloud", "mysql"
	// and "external_supabase" are accepted.
	PrimarySource string `json:"primarySource" yaml:"primarySource"`

	// UseManaged enables replication to the managed store when it is not primary.
	UseManaged bool `json:"useManaged" yaml:"useManaged"`

	// UseSelfHosted enables replication to the self-hosted store.
	UseSelfHosted bool `json:"useSelfHosted" yaml:"useSelfHosted"`

	// UseSecondaryManaged enables replication to the secondary managed store.
	UseSecondaryManaged bool `json:"useSecondaryManaged" yaml:"useSecondaryManaged"`

	SelfHostedHost     string `json:"selfHostedHost" yaml:"selfHostedHost"`
	SelfHostedPort     Port   `json:"selfHostedPort" yaml:"selfHostedPort"`
	SelfHostedUser     string `json:"selfHostedUser" yaml:"selfHostedUser"`
	SelfHostedPassword string `json:"selfHostedPassword" yaml:"selfHostedPassword"`
	SelfHostedDatabase string `json:"selfHostedDatabase" yaml:"selfHostedDatabase"`

	SecondaryManagedURL string `json:"secondaryManagedUrl" yaml:"secondaryManagedUrl"`
	SecondaryManagedKey string `json:"secondaryManagedKey" yaml:"secondaryManagedKey"`
}

// Port is a TCP port that decodes from a JSON number or a numeric string.
//
// The settings screen stores the port as typed text.
type Port int

// UnmarshalJSON accepts 3306, "3306" and "".
func (p *Port) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port %q", s)
	}
	*p = Port(n)

	return nil
}

// Parse decodes a settings document.
//
// Returns:
//   - *Settings: The decoded settings
//   - error: types.ErrConfigurationMissing for empty input,
//     types.ErrConfigurationMalformed for undecodable input
func Parse(data []byte) (*Settings, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, types.ErrConfigurationMissing
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfigurationMalformed, err)
	}

	return &s, nil
}

// SelfHostedTarget returns the proxy target of the self-hosted store.
func (s *Settings) SelfHostedTarget() proxy.Target {
	return proxy.Target{
		Host:     s.SelfHostedHost,
		Port:     int(s.SelfHostedPort),
		User:     s.SelfHostedUser,
		Password: s.SelfHostedPassword,
		Database: s.SelfHostedDatabase,
	}
}

// Configured reports whether kind has the connection parameters it needs.
// The managed store needs none.
func (s *Settings) Configured(kind types.StoreKind) bool {
	switch kind {
	case types.KindManaged:
		return true
	case types.KindSelfHosted:
		return s.SelfHostedTarget().Configured()
	case types.KindSecondaryManaged:
		return strings.TrimSpace(s.SecondaryManagedURL) != "" && s.SecondaryManagedKey != ""
	default:
		return false
	}
}

// useFlag returns the replication flag of kind.
func (s *Settings) useFlag(kind types.StoreKind) bool {
	switch kind {
	case types.KindManaged:
		return s.UseManaged
	case types.KindSelfHosted:
		return s.UseSelfHosted
	case types.KindSecondaryManaged:
		return s.UseSecondaryManaged
	default:
		return false
	}
}

// Descriptor describes one store in the current configuration.
type Descriptor struct {
	Kind types.StoreKind

	// Enabled reports whether the store receives replicated writes when it
	// is not primary. A store is enabled when its flag is set and it is
	// configured.
	Enabled bool

	// Configured reports whether connection parameters are present.
	Configured bool

	// Primary marks the store serving reads and authoritative writes.
	Primary bool
}

// Descriptors returns one descriptor per store kind, exactly one of them primary.
//
// A nil receiver describes the zero configuration.
func (s *Settings) Descriptors() []Descriptor {
	primary := SelectPrimary(s)
	eff := s
	if eff == nil {
		eff = &Settings{}
	}

	kinds := types.AllKinds()
	out := make([]Descriptor, len(kinds))
	for i, k := range kinds {
		configured := eff.Configured(k)
		out[i] = Descriptor{
			Kind:       k,
			Enabled:    eff.useFlag(k) && configured,
			Configured: configured,
			Primary:    k == primary,
		}
	}

	return out
}

// Targets returns the enabled stores other than primary, in kind order.
func (s *Settings) Targets(primary types.StoreKind) []types.StoreKind {
	var out []types.StoreKind
	for _, d := range s.Descriptors() {
		if d.Enabled && d.Kind != primary {
			out = append(out, d.Kind)
		}
	}

	return out
}

// SelectPrimary returns the primary store kind for s.
//
// The result is a total function of s: absent settings, unknown or empty
// primarySource, and a primary that lacks connection parameters all select
// types.KindManaged.
//
// Parameters:
//   - s: Settings, may be nil
//
// Returns:
//   - types.StoreKind: The primary store kind
func SelectPrimary(s *Settings) types.StoreKind {
	if s == nil {
		return types.KindManaged
	}

	kind, ok := types.ParseStoreKind(s.PrimarySource)
	if !ok || !s.Configured(kind) {
		return types.KindManaged
	}

	return kind
}
