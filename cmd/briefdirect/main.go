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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefdirect/internal/config"
	"github.com/lukasdietrich/briefdirect/internal/log"
)

const usageText = `
Usage:
  briefdirect [OPTIONS] COMMAND [ARGS]

  Exchange secure health messages over the Direct protocol.

Version:
  %s

Commands:
%s
Options:
%s
`

var (
	// Version is set at compile-time.
	Version string
)

type command interface {
	run(ctx context.Context, args []string) error
}

type commandSpec struct {
	usage string
	// transport marks commands, that need a valid transport configuration.
	transport bool
	init      func(*config.Config) (command, error)
}

var commands = map[string]commandSpec{
	"enroll": {
		usage: "Generate and store a certificate for a local address",
		init:  func(c *config.Config) (command, error) { return newEnrollCommand(c) },
	},
	"describe": {
		usage: "Describe stored certificates",
		init:  func(c *config.Config) (command, error) { return newDescribeCommand(c) },
	},
	"clean": {
		usage: "Delete archived messages, that are missing from the index",
		init:  func(c *config.Config) (command, error) { return newCleanCommand(c) },
	},
	"audit": {
		usage: "List recorded audit events",
		init:  func(c *config.Config) (command, error) { return newAuditCommand(c) },
	},
	"health": {
		usage:     "Check the health of the configured transport",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newHealthCommand(c) },
	},
	"receive": {
		usage:     "Fetch, decrypt and archive inbound messages",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newReceiveCommand(c) },
	},
	"send": {
		usage:     "Send one or more messages",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newSendCommand(c) },
	},
	"status": {
		usage:     "Query the delivery status of sent messages (gateway)",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newStatusCommand(c) },
	},
	"directory": {
		usage:     "Search the provider directory (gateway)",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newDirectoryCommand(c) },
	},
	"serve-metrics": {
		usage:     "Serve prometheus metrics and optionally poll for messages",
		transport: true,
		init:      func(c *config.Config) (command, error) { return newServeMetricsCommand(c) },
	},
}

func main() {
	var configFilename string

	flags := pflag.NewFlagSet("briefdirect", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.StringVarP(&configFilename, "config", "c", "", "Path to a configuration file")
	flags.Usage = printUsage(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatal().Err(err).Msg("could not parse flags")
	}

	commandName := flags.Arg(0)
	spec, ok := commands[commandName]
	if !ok {
		flags.Usage()
		os.Exit(2)
	}

	v := viper.New()
	config.SetDefaults(v)
	setupConfig(v, configFilename)

	cfg, err := config.FromViper(v)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogger(cfg.Log)
	printConfig(v)

	if spec.transport {
		if err := cfg.ValidateTransport(); err != nil {
			log.Fatal().Err(err).Msg("invalid transport configuration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.WithCommand(ctx, commandName)

	if err := runCommand(ctx, spec, cfg, flags.Args()[1:]); err != nil {
		stop()
		log.FatalContext(ctx).Err(err).Msg("command failed")
	}
}

func runCommand(ctx context.Context, spec commandSpec, cfg *config.Config, args []string) error {
	cmd, err := spec.init(cfg)
	if err != nil {
		return fmt.Errorf("could not initialize the application: %w", err)
	}

	return cmd.run(ctx, args)
}

func printUsage(flags *pflag.FlagSet) func() {
	return func() {
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}

		sort.Strings(names)

		var list strings.Builder
		for _, name := range names {
			fmt.Fprintf(&list, "  %-15s %s\n", name, commands[name].usage)
		}

		fmt.Fprintf(os.Stderr, usageText,
			Version,
			list.String(),
			flags.FlagUsages())
	}
}

func setupLogger(opts config.LogOptions) {
	if err := log.Setup(os.Stderr, opts.Level, opts.Pretty); err != nil {
		log.Fatal().Err(err).Msg("could not setup logger")
	}

	log.Debug().Str("level", opts.Level).Msg("logger ready")
}

func setupConfig(v *viper.Viper, filename string) {
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BRIEFDIRECT")

	if filename != "" {
		readConfig(v, filename)
	} else {
		log.Info().Msg("no config file provided. using environment only")
	}
}

func readConfig(v *viper.Viper, filename string) {
	log.Info().Str("filename", filename).Msg("loading configuration")
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Warn().Err(err).Msg("configuration file missing")
		} else {
			log.Fatal().Err(err).Msg("could not load configuration")
		}
	}
}

func printConfig(v *viper.Viper) {
	keys := v.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		value, _ := json.Marshal(v.Get(key))

		if strings.HasSuffix(key, "password") && v.GetString(key) != "" {
			value = []byte(`"********"`)
		}

		log.Debug().RawJSON("value", value).Msgf("%s", key)
	}
}
