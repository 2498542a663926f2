package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iammatthias/mysky.wtf/internal/bluesky"
	"github.com/iammatthias/mysky.wtf/internal/constellation"
	"github.com/iammatthias/mysky.wtf/internal/domain"
	"github.com/iammatthias/mysky.wtf/internal/identity"
)

const configName = ".mysky.yaml"

var (
	configFile string
	logger     = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "mysky",
	Short: "Command-line client for MySky",
	Long: `mysky reads and writes MySky records (profiles, top friends, blog posts,
bulletins, comments and photo albums) in AT Protocol repositories.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if viper.GetBool("debug") {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logger.Error("error executing command", "error", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $HOME/"+configName+")")
	RootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().String("entryway", bluesky.DefaultPDS, "PDS or entryway to sign in through")
	RootCmd.PersistentFlags().String("plc", identity.DefaultDirectory, "PLC directory URL")
	RootCmd.PersistentFlags().String("constellation", constellation.DefaultURL, "Constellation backlink index URL")
	RootCmd.PersistentFlags().String("site", domain.DefaultSiteURL, "public MySky URL used in publication links")

	for _, name := range []string{"debug", "entryway", "plc", "constellation", "site"} {
		viper.BindPFlag(name, RootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MYSKY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}
