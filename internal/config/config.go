package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"permitline/internal/domain"
)

// Config models permitline.yml.
type Config struct {
	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Municipalities []SeedMunicipality `yaml:"municipalities"`
}

// SeedMunicipality is the YAML shape of a municipality reference record,
// used to seed the registry on first run.
type SeedMunicipality struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	County              string   `yaml:"county"`
	Website             string   `yaml:"website"`
	PermitPortalURL     string   `yaml:"permit_portal_url"`
	ContactPhone        string   `yaml:"contact_phone"`
	ContactEmail        string   `yaml:"contact_email"`
	AverageApprovalDays int      `yaml:"average_approval_days"`
	DeckPermitFee       float64  `yaml:"deck_permit_fee"`
	InspectionFee       float64  `yaml:"inspection_fee"`
	Requirements        []string `yaml:"requirements"`
}

func (s SeedMunicipality) Municipality() domain.Municipality {
	return domain.Municipality{
		ID:                  s.ID,
		Name:                s.Name,
		County:              s.County,
		Website:             s.Website,
		PermitPortalURL:     s.PermitPortalURL,
		ContactPhone:        s.ContactPhone,
		ContactEmail:        s.ContactEmail,
		AverageApprovalDays: s.AverageApprovalDays,
		Fees: domain.FeeSchedule{
			DeckPermit:    s.DeckPermitFee,
			InspectionFee: s.InspectionFee,
		},
		Requirements: s.Requirements,
	}
}

// SeedMunicipalities returns the configured seed list as domain records.
func (c *Config) SeedMunicipalities() []domain.Municipality {
	out := make([]domain.Municipality, 0, len(c.Municipalities))
	for _, s := range c.Municipalities {
		out = append(out, s.Municipality())
	}
	return out
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", "sqlite", "json":
	default:
		return fmt.Errorf("storage.backend must be sqlite or json, got %q", c.Storage.Backend)
	}
	seen := map[string]bool{}
	for i, m := range c.Municipalities {
		if m.ID == "" {
			return fmt.Errorf("municipalities[%d]: id is required", i)
		}
		if m.Name == "" {
			return fmt.Errorf("municipality %s: name is required", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("municipality id %s appears twice", m.ID)
		}
		seen[m.ID] = true
		if m.AverageApprovalDays < 0 {
			return fmt.Errorf("municipality %s: average_approval_days must be >= 0", m.ID)
		}
	}
	return nil
}

// Backend returns the storage backend, defaulted to sqlite.
func (c *Config) Backend() string {
	if c.Storage.Backend == "" {
		return "sqlite"
	}
	return c.Storage.Backend
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "permitline.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in config, including the default municipality
// list the registry is seeded from on first run.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML for `pl config init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `storage:
  backend: sqlite

server:
  addr: 127.0.0.1:8787
  base_path: /v0

municipalities:
  - id: maplewood
    name: Maplewood
    county: Ramsey
    website: https://maplewoodmn.gov
    permit_portal_url: https://maplewoodmn.gov/permits
    contact_phone: "651-249-2300"
    average_approval_days: 10
    deck_permit_fee: 165
    inspection_fee: 85
    requirements:
      - Site plan showing setbacks
      - Deck framing and footing plan
      - Footings below 42 inch frost line

  - id: woodbury
    name: Woodbury
    county: Washington
    website: https://woodburymn.gov
    permit_portal_url: https://woodburymn.gov/building
    contact_phone: "651-714-3500"
    average_approval_days: 14
    deck_permit_fee: 210
    inspection_fee: 95
    requirements:
      - Site plan showing setbacks
      - Stamped plans for decks over 6 feet
      - Ledger attachment detail

  - id: eagan
    name: Eagan
    county: Dakota
    website: https://cityofeagan.com
    permit_portal_url: https://cityofeagan.com/permits
    contact_phone: "651-675-5675"
    average_approval_days: 7
    deck_permit_fee: 150
    inspection_fee: 75
    requirements:
      - Site plan showing setbacks
      - Deck framing and footing plan

  - id: plymouth
    name: Plymouth
    county: Hennepin
    website: https://plymouthmn.gov
    permit_portal_url: https://plymouthmn.gov/epermits
    contact_phone: "763-509-5430"
    average_approval_days: 21
    deck_permit_fee: 240
    inspection_fee: 100
    requirements:
      - Site plan showing setbacks
      - Deck framing and footing plan
      - Guardrail detail for decks over 30 inches
      - Erosion control plan near wetlands
`
