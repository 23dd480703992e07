// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefdirect/internal/audit"
	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/storage"
	"github.com/lukasdietrich/briefdirect/internal/transport"
	"github.com/lukasdietrich/briefdirect/internal/transport/imap"
)

// Config is the complete configuration. It is read once by the command layer and handed to the
// components as typed options.
type Config struct {
	Log       LogOptions        `mapstructure:"log"`
	Certs     certs.Options     `mapstructure:"certs"`
	Storage   StorageOptions    `mapstructure:"storage"`
	Audit     audit.Options     `mapstructure:"audit"`
	Transport transport.Options `mapstructure:"transport"`
	Metrics   metrics.Options   `mapstructure:"metrics"`
}

// LogOptions configure the global logger.
type LogOptions struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// StorageOptions configure the message archive and its index.
type StorageOptions struct {
	Messages storage.ArchiveOptions `mapstructure:"messages"`
	Database database.Options       `mapstructure:"database"`
}

var defaultPorts = map[models.TransportTag][2]int{
	// plain, implicit tls
	models.TransportPOP3: {110, 995},
	models.TransportIMAP: {143, 993},
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("certs.directory", "data/certs")
	v.SetDefault("certs.trust_anchors", "")
	v.SetDefault("certs.key_size", 2048)
	v.SetDefault("certs.validity_days", 365)

	v.SetDefault("storage.messages.foldername", "data/messages")
	v.SetDefault("storage.database.filename", "data/briefdirect.sqlite")
	v.SetDefault("storage.database.journalmode", "wal")

	v.SetDefault("audit.foldername", "data/audit")
	v.SetDefault("audit.database", true)

	v.SetDefault("transport.variant", string(models.TransportIMAP))
	v.SetDefault("transport.timeout", 60*time.Second)
	v.SetDefault("transport.connect_timeout", 10*time.Second)
	v.SetDefault("transport.degraded_latency", 2*time.Second)

	v.SetDefault("transport.mailbox.host", "")
	v.SetDefault("transport.mailbox.port", 0)
	v.SetDefault("transport.mailbox.username", "")
	v.SetDefault("transport.mailbox.password", "")
	v.SetDefault("transport.mailbox.tls", true)
	v.SetDefault("transport.mailbox.verify_tls", true)
	v.SetDefault("transport.mailbox.ca_file", "")
	v.SetDefault("transport.mailbox.folder", "INBOX")
	v.SetDefault("transport.mailbox.criteria", "UNSEEN")
	v.SetDefault("transport.mailbox.ack_action", imap.AckSeen)
	v.SetDefault("transport.mailbox.move_folder", "")

	v.SetDefault("transport.smtp.host", "")
	v.SetDefault("transport.smtp.port", 587)
	v.SetDefault("transport.smtp.username", "")
	v.SetDefault("transport.smtp.password", "")
	v.SetDefault("transport.smtp.starttls", true)
	v.SetDefault("transport.smtp.verify_tls", true)
	v.SetDefault("transport.smtp.hostname", "localhost")

	v.SetDefault("transport.gateway.url", "")
	v.SetDefault("transport.gateway.username", "")
	v.SetDefault("transport.gateway.password", "")
	v.SetDefault("transport.gateway.verify_tls", true)

	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// FromViper unmarshals and validates the configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("could not unmarshal configuration: %w", err)
	}

	c.applyDerivedDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// applyDerivedDefaults sets defaults, that depend on other values.
func (c *Config) applyDerivedDefaults() {
	t := &c.Transport
	t.Variant = strings.ToLower(strings.TrimSpace(t.Variant))

	if ports, ok := defaultPorts[models.TransportTag(t.Variant)]; ok && t.Mailbox.Port == 0 {
		if t.Mailbox.TLS {
			t.Mailbox.Port = ports[1]
		} else {
			t.Mailbox.Port = ports[0]
		}
	}
}

// Validate checks the configuration of the stores. The first violation is returned as a
// models.ValidationError.
func (c *Config) Validate() error {
	if c.Certs.Directory == "" {
		return models.NewValidationError("certs.directory", "is required")
	}

	if c.Certs.KeySize != 0 && c.Certs.KeySize < 2048 {
		return models.NewValidationError("certs.key_size", "must be at least 2048")
	}

	if c.Storage.Database.Filename == "" {
		return models.NewValidationError("storage.database.filename", "is required")
	}

	if c.Storage.Messages.Foldername == "" {
		return models.NewValidationError("storage.messages.foldername", "is required")
	}

	return nil
}

// ValidateTransport checks the configuration of the selected transport variant. It is only
// required by commands, that exchange messages.
func (c *Config) ValidateTransport() error {
	if c.Transport.Timeout < 0 || c.Transport.ConnectTimeout < 0 {
		return models.NewValidationError("transport.timeout", "must not be negative")
	}

	switch models.TransportTag(c.Transport.Variant) {
	case models.TransportPOP3, models.TransportIMAP:
		return c.validateMailbox()
	case models.TransportGateway:
		return c.validateGateway()
	default:
		return models.NewValidationError("transport.variant",
			fmt.Sprintf("unknown variant %q, expected pop3, imap or gateway", c.Transport.Variant))
	}
}

func (c *Config) validateMailbox() error {
	mailbox := c.Transport.Mailbox

	if mailbox.Host == "" {
		return models.NewValidationError("transport.mailbox.host", "is required")
	}

	if mailbox.Port <= 0 || mailbox.Port > 65535 {
		return models.NewValidationError("transport.mailbox.port", "is out of range")
	}

	if models.TransportTag(c.Transport.Variant) != models.TransportIMAP {
		return nil
	}

	excludesSeen, err := imap.ExcludesSeen(mailbox.Criteria)
	if err != nil {
		return models.NewValidationError("transport.mailbox.criteria", err.Error())
	}

	switch strings.ToLower(mailbox.AckAction) {
	case "", imap.AckSeen:
		// Acknowledged messages stay in the folder, so the criteria have to skip them.
		if !excludesSeen {
			return models.NewValidationError("transport.mailbox.criteria", "must include UNSEEN for ack action seen")
		}

		return nil
	case imap.AckDelete:
		return nil
	case imap.AckMove:
		if mailbox.MoveFolder == "" {
			return models.NewValidationError("transport.mailbox.move_folder", "is required for ack action move")
		}

		return nil
	default:
		return models.NewValidationError("transport.mailbox.ack_action",
			fmt.Sprintf("unknown ack action %q", mailbox.AckAction))
	}
}

func (c *Config) validateGateway() error {
	u, err := url.Parse(c.Transport.Gateway.URL)
	if err != nil || c.Transport.Gateway.URL == "" {
		return models.NewValidationError("transport.gateway.url", "is not a valid url")
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return models.NewValidationError("transport.gateway.url", "scheme must be http or https")
	}

	return nil
}
