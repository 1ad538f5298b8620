package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"cdrip/internal/cdrom"
	"cdrip/internal/config"
	"cdrip/internal/logging"
	"cdrip/internal/notifications"
	"cdrip/internal/ripping"
	"cdrip/internal/store"
)

type commandContext struct {
	configFlag string
	deviceFlag string

	// Seams replaced by tests.
	opener      func(cfg *config.Config) ripping.Opener
	ejector     cdrom.Ejector
	driveStatus cdrom.StatusFunc
	notifier    func(cfg *config.Config) notifications.Service

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{
		opener: func(cfg *config.Config) ripping.Opener {
			return ripping.DriveOpener(time.Duration(cfg.Drive.ReadyTimeout) * time.Second)
		},
		ejector:     cdrom.NewEjector(),
		driveStatus: cdrom.CheckDriveStatus,
		notifier:    notifications.NewService,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if device := strings.TrimSpace(c.deviceFlag); device != "" {
			cfg.Drive.Device = device
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerFor(cfg *config.Config) *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg)
}

func (c *commandContext) newRipper(cfg *config.Config, st *store.Store, onEvent ripping.EventFunc) *ripping.Ripper {
	return ripping.New(cfg, st, c.loggerFor(cfg),
		ripping.WithOpener(c.opener(cfg)),
		ripping.WithEjector(c.ejector),
		ripping.WithNotifier(c.notifier(cfg)),
		ripping.WithEventFunc(onEvent),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
