package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/backup"
	"github.com/worldkeep/worldkeep/internal/config"
	"github.com/worldkeep/worldkeep/internal/orchestrator"
	"github.com/worldkeep/worldkeep/internal/target"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one backup cycle over all enabled targets",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "source folder to back up")
	_ = viper.BindPFlag("source_folder", runCmd.Flags().Lookup("source"))
}

func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}

	// An explicitly given config file is parsed strictly; a malformed file
	// is an error, not a silently empty config.
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Environment and flag overrides layer on top of the file.
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildTargets assembles the enabled targets in configuration order: local
// first, then FTP.
func buildTargets(cfg *config.Config) []target.Target {
	base := filepath.Base(filepath.Clean(cfg.SourceFolder))

	var targets []target.Target
	if cfg.Local.Enabled {
		targets = append(targets, target.NewLocal(
			"local", cfg.Local.Folder, base,
			backup.RetentionPolicy{MaxBackups: cfg.Local.MaxBackups},
		))
	}
	if cfg.FTP.Enabled {
		targets = append(targets, target.NewFTP("ftp", target.FTPConfig{
			Host:     cfg.FTP.Host,
			Port:     cfg.FTP.Port,
			User:     cfg.FTP.Username,
			Password: cfg.FTP.Password,
			Folder:   cfg.FTP.Folder,
			Timeout:  time.Duration(cfg.FTP.TimeoutSeconds) * time.Second,
		}, base, backup.RetentionPolicy{MaxBackups: cfg.FTP.MaxBackups}))
	}
	return targets
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	o := orchestrator.New(archive.New(cfg.ScratchDir), buildTargets(cfg), logger)
	summary, err := o.Run(cmd.Context(), cfg.SourceFolder)
	if summary != nil {
		logSummary(summary)
	}
	return err
}

func logSummary(s *orchestrator.Summary) {
	logger.Info("cycle finished", "artifact", s.Artifact, "bytes", s.Size)
	for _, r := range s.Results {
		attrs := []any{"target", r.TargetID, "outcome", string(r.Outcome)}
		if r.Stored.Name != "" {
			attrs = append(attrs, "stored", r.Stored.Name)
		}
		if len(r.Pruned) > 0 {
			attrs = append(attrs, "deleted", len(r.Pruned))
		}
		if len(r.PruneFailures) > 0 {
			attrs = append(attrs, "delete_failures", len(r.PruneFailures))
		}
		if r.Err != nil {
			attrs = append(attrs, "error", r.Err)
		}
		if r.Outcome == orchestrator.OutcomeSuccess {
			logger.Info("target summary", attrs...)
		} else {
			logger.Warn("target summary", attrs...)
		}
	}
}
