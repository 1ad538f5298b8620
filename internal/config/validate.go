package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDrive() error {
	if c.Drive.Device == "" {
		return errors.New("drive.device must be set (or export CDRIP_DEVICE)")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.ParanoiaMode < 0 || c.Extraction.ParanoiaMode > maxParanoiaMode {
		return fmt.Errorf("extraction.paranoia_mode must be between 0 and %d", maxParanoiaMode)
	}
	if c.Extraction.MaxRetries < 0 || c.Extraction.MaxRetries > maxRetries {
		return fmt.Errorf("extraction.max_retries must be between 0 and %d", maxRetries)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.RetentionDays < 0 {
		return errors.New("daemon.retention_days must be >= 0")
	}
	if _, err := cron.ParseStandard(c.Daemon.RetentionSchedule); err != nil {
		return fmt.Errorf("daemon.retention_schedule: %w", err)
	}
	return nil
}
