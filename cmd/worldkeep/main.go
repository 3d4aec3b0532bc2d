package main

import (
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "worldkeep",
	Short: "Rotating backups for game server world data",
	Long: `worldkeep compresses a source directory into a timestamped zip and
distributes it to independently configured backup targets (a local
directory, a remote FTP server), keeping at most a configured number of
backups on each.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	logger = slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	if err := rootCmd.Execute(); err != nil {
		logger.Error("execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./worldkeep.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("worldkeep")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WORLDKEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind environment variables
	envVars := []string{
		"source_folder",
		"scratch_dir",
		"local.enabled",
		"local.folder",
		"local.max_backups",
		"local.interval_minutes",
		"ftp.enabled",
		"ftp.host",
		"ftp.port",
		"ftp.username",
		"ftp.password",
		"ftp.folder",
		"ftp.max_backups",
		"ftp.timeout_seconds",
		"ftp.interval_minutes",
	}
	for _, key := range envVars {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil {
		logger.Info("using config file", "file", viper.ConfigFileUsed())
	}
}
