// Command socialctl запускает сбор и аналитику из терминала.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"social-pulse/internal/adapters/repo"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
	applog "social-pulse/internal/infra/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli — состояние, общее для всех подкоманд.
type cli struct {
	cfg     config.AppConfig
	log     zerolog.Logger
	verbose bool
	dataDir string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "socialctl",
		Short:         "Сбор и аналитика постов Facebook, Instagram и YouTube",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadE()
			if err != nil {
				return err
			}
			if c.dataDir != "" {
				cfg.DataDir = c.dataDir
			}
			c.cfg = cfg
			c.log = applog.NewConsoleLogger(cmd.ErrOrStderr(), c.verbose)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "подробный журнал")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "каталог результатов (по умолчанию DATA_DIR)")

	root.AddCommand(newCollectCmd(c))
	root.AddCommand(newAnalyzeCmd(c))
	root.AddCommand(newAuditCmd(c))
	root.AddCommand(newFilesCmd(c))
	return root
}

func parsePlatformFlag(raw string) (domain.Platform, error) {
	if raw == "" {
		return "", nil
	}
	p, ok := domain.ParsePlatform(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, raw)
	}
	return p, nil
}

// loadPosts читает посты из файла или из последнего сохранения платформы.
// Платформа файла без флага определяется по первому посту.
func (c *cli) loadPosts(args []string, platform domain.Platform) (domain.Platform, []domain.Post, string, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		if platform == "" {
			return "", nil, "", fmt.Errorf("укажите файл или --platform")
		}
		latest, err := repo.NewFiles(c.cfg.DataDir).Latest(platform)
		if err != nil {
			return "", nil, "", fmt.Errorf("%s: %w", platform, err)
		}
		path = latest
	}
	posts, err := repo.LoadPosts(path)
	if err != nil {
		return "", nil, "", err
	}
	if platform == "" && len(posts) > 0 {
		platform = posts[0].Platform
	}
	c.log.Debug().Str("path", path).Int("posts", len(posts)).Msg("socialctl: посты загружены")
	return platform, posts, path, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
