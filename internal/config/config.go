package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	// embedded zone database so timezone settings work everywhere
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// UnmarshalText parses duration strings like "1m30s" in TOML files.
func (d *Duration) UnmarshalText(b []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(b))
	return err
}

type Configuration struct {
	Locale            string     `json:"locale" toml:"locale" validate:"required,bcp47_language_tag"`
	Timezone          string     `json:"timezone" toml:"timezone" validate:"required,timezone"`
	WarningColor      string     `json:"warningColor" toml:"warningColor" validate:"required,hexcolor"`
	SeparatorColor    string     `json:"separatorColor" toml:"separatorColor" validate:"required,hexcolor"`
	SeparatorStroke   float64    `json:"separatorStroke" toml:"separatorStroke" validate:"gt=0"`
	SeparatorWidth    int        `json:"separatorWidth" toml:"separatorWidth" validate:"gt=0,lte=500"`
	SmallTextFactor   float64    `json:"smallTextFactor" toml:"smallTextFactor" validate:"gt=0,lte=1"`
	OrgLookup         string     `json:"orgLookup" toml:"orgLookup" validate:"oneof=cymru ptr none"`
	DnsServer         string     `json:"dnsServer" toml:"dnsServer" validate:"omitempty,hostname_port"`
	DnsConnectTimeout Duration   `json:"dnsConnectTimeout" toml:"dnsConnectTimeout"`
	DnsTimeout        Duration   `json:"dnsTimeout" toml:"dnsTimeout"`
	DnsCacheTimeout   Duration   `json:"dnsCacheTimeout" toml:"dnsCacheTimeout"`
	ImapConfig        IMAPConfig `json:"imap" toml:"imap"`
	BatchSize         int        `json:"batchSize" toml:"batchSize" validate:"gt=0"`
}

type IMAPConfig struct {
	Host       string   `json:"host" toml:"host" validate:"omitempty,hostname_port"`
	SSL        bool     `json:"ssl" toml:"ssl"`
	User       string   `json:"user" toml:"user" validate:"required_with=Host"`
	Pass       string   `json:"pass" toml:"pass" validate:"required_with=Host"`
	Folder     string   `json:"folder" toml:"folder" validate:"required_with=Host"`
	IgnoreCert bool     `json:"ignoreCert" toml:"ignoreCert"`
	Timeout    Duration `json:"timeout" toml:"timeout"`
}

// Defaults returns the configuration used when no config file is supplied.
func Defaults() Configuration {
	return Configuration{
		Locale:          "und",
		Timezone:        "UTC",
		WarningColor:    "#e53935",
		SeparatorColor:  "#9e9e9e",
		SeparatorStroke: 1,
		SeparatorWidth:  72,
		SmallTextFactor: 0.8,
		OrgLookup:       "cymru",
		DnsConnectTimeout: Duration{
			Duration: 1 * time.Second,
		},
		DnsTimeout: Duration{
			Duration: 5 * time.Second,
		},
		DnsCacheTimeout: Duration{
			Duration: 1 * time.Hour,
		},
		ImapConfig: IMAPConfig{
			Folder: "INBOX",
			Timeout: Duration{
				Duration: 30 * time.Second,
			},
		},
		BatchSize: 30,
	}
}

// Validate checks the configuration for invalid values.
func (c *Configuration) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location returns the time zone report dates are shown in.
func (c *Configuration) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// GetConfig reads a JSON or, for .toml files, TOML config on top of defaults
// and validates the result.
func GetConfig(defaults Configuration, f string) (*Configuration, error) {
	if f == "" {
		return nil, fmt.Errorf("please provide a valid config file")
	}

	b, err := os.ReadFile(f) // nolint: gosec
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(f), ".toml") {
		meta, err := toml.Decode(string(b), &defaults)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys %v", undecoded)
		}
	} else {
		reader := bytes.NewReader(b)
		decoder := json.NewDecoder(reader)
		decoder.DisallowUnknownFields()
		if err = decoder.Decode(&defaults); err != nil {
			return nil, err
		}
	}

	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	return &defaults, nil
}
