// seehuhn.de/go/pdfstruct - tagged structure trees for PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
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

// Pdf-tag builds tagged PDF files from HTML or Markdown input and shows
// their structure trees.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	err := newRootCmd(&app{v: viper.New()}).Execute()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by all subcommands.
type app struct {
	v   *viper.Viper
	cfg *config
	log zerolog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pdf-tag",
		Short: "Build and inspect tagged PDF files",
		Long: `pdf-tag lays out HTML or Markdown documents into tagged PDF files.

Settings can be given as flags, in a YAML file (--config), or in
environment variables with the prefix PDFTAG_, for example PDFTAG_TARGET=2.0.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML file with default settings")
	flags.BoolP("verbose", "v", false, "show debug messages")
	flags.String("target", "1.7", "PDF version of the output")
	flags.String("role-map", "", "YAML file which maps custom roles to standard roles")

	root.AddCommand(a.newBuildCmd(), a.newTreeCmd(), a.newRolesCmd())
	return root
}

// setup reads the configuration and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	v := a.v
	v.SetEnvPrefix("PDFTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}
