// Command retropix pixelates the configured textures of a game edition and
// swaps the edited asset containers into place with numbered backups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kastelan/retropix"
	"github.com/kastelan/retropix/swap"
)

type cliConfig struct {
	configPath   string
	edition      string
	resizeAmount float64
	blackShadows bool
	threshold    uint
	debugDir     string
	listEditions bool
	listBackups  bool
	restore      string
	maxWait      time.Duration
	verbose      bool
}

func parseFlags() cliConfig {
	var cfg cliConfig
	flag.StringVar(&cfg.configPath, "config", "config.json", "path to the configuration file")
	flag.StringVar(&cfg.edition, "edition", "", "edition to pixelate")
	flag.Float64Var(&cfg.resizeAmount, "resize", 0, "pixelation strength in (0, 1]; 0 uses the configured value")
	flag.BoolVar(&cfg.blackShadows, "black-shadows", false, "harden semi-transparent black shadows")
	flag.UintVar(&cfg.threshold, "shadow-threshold", 0, "alpha threshold for shadow hardening; 0 uses the default")
	flag.StringVar(&cfg.debugDir, "debug-dir", "", "export transformed textures as PNGs under this folder")
	flag.BoolVar(&cfg.listEditions, "list-editions", false, "print configured editions and exit")
	flag.BoolVar(&cfg.listBackups, "list-backups", false, "print backups for the edition's target folder and exit")
	flag.StringVar(&cfg.restore, "restore", "", "restore this backup file over its original and exit")
	flag.DurationVar(&cfg.maxWait, "max-wait", swap.DefaultMaxWait, "maximum time to wait for a locked file")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliConfig, logger *slog.Logger) error {
	conf, err := retropix.LoadConfig(cfg.configPath)
	if err != nil {
		return err
	}

	if cfg.listEditions {
		for _, name := range conf.Names() {
			fmt.Println(name)
		}
		return nil
	}

	opts := []retropix.Option{
		retropix.WithLogger(logger),
		retropix.WithProgress(func(ev retropix.ProgressEvent) {
			fmt.Fprintln(os.Stderr, ev)
		}),
		retropix.WithSwapOptions(swap.Options{MaxWait: cfg.maxWait}),
	}
	if cfg.threshold > 0 {
		opts = append(opts, retropix.WithShadowThreshold(uint8(cfg.threshold)))
	}
	if cfg.debugDir != "" {
		opts = append(opts, retropix.WithDebugDir(cfg.debugDir))
	}

	pipeline, err := retropix.New(opts...)
	if err != nil {
		return err
	}

	if cfg.restore != "" {
		original := backupOriginal(cfg.restore)
		return pipeline.Manager().Restore(cfg.restore, original)
	}

	edition, err := conf.Edition(cfg.edition)
	if err != nil {
		return err
	}

	if cfg.listBackups {
		backups, err := swap.FindBackups(edition.TargetFolder)
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Printf("%s\t%s\n", b.Path, b.ModTime.Format(time.DateTime))
		}
		return nil
	}

	blackShadows := cfg.blackShadows || retropix.EnvBool(retropix.EnvBlackShadows)

	ctx := context.Background()
	replacements, err := pipeline.ProcessEdition(ctx, edition, cfg.resizeAmount, blackShadows)
	if err != nil {
		return err
	}
	if len(replacements) == 0 {
		logger.Info("no files were processed", "edition", edition.Name)
		return nil
	}

	replaced, failed := pipeline.ReplaceAll(ctx, replacements)
	fmt.Fprintf(os.Stderr, "replaced %d/%d files\n", replaced, len(replacements))
	for _, f := range failed {
		fmt.Fprintf(os.Stderr, "failed: %s (temp kept at %s)\n", f.Original, f.Temp)
	}
	return nil
}

// backupOriginal strips the ".backupNNN" suffix from a backup path.
func backupOriginal(backup string) string {
	if i := len(backup) - len(".backup000"); i > 0 && backup[i:i+len(".backup")] == ".backup" {
		return backup[:i]
	}
	return backup
}
