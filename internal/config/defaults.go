package config

const (
	defaultOutputDir         = "~/Music/cdrip"
	defaultLogDir            = "~/.local/share/cdrip/logs"
	defaultStateDir          = "~/.local/share/cdrip"
	defaultDevice            = "/dev/sr0"
	defaultReadyTimeout      = 60
	defaultParanoiaMode      = 3
	defaultMaxRetries        = 20
	defaultNeverSkip         = true
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNotifyTimeout     = 10
	defaultAPIBind           = "127.0.0.1:7488"
	defaultRetentionDays     = 90
	defaultRetentionSchedule = "@daily"

	maxParanoiaMode = 3
	maxRetries      = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Drive: Drive{
			Device:       defaultDevice,
			ReadyTimeout: defaultReadyTimeout,
		},
		Extraction: Extraction{
			ParanoiaMode: defaultParanoiaMode,
			MaxRetries:   defaultMaxRetries,
			NeverSkip:    defaultNeverSkip,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Rip:            true,
			Errors:         true,
		},
		Daemon: Daemon{
			APIBind:           defaultAPIBind,
			RetentionDays:     defaultRetentionDays,
			RetentionSchedule: defaultRetentionSchedule,
		},
	}
}
