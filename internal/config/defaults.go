package config

const (
	defaultDataDir                = "~/.local/share/taskq"
	defaultLogDir                 = "~/.local/share/taskq/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultMainLane               = "main"
	defaultSmallJobsLane          = "small_jobs"
	defaultRetryLimit             = 5
	maxRetryLimit                 = 100 // matches the enqueue API bound
	defaultBackoffBaseSeconds     = 30
	defaultBackoffMaxSeconds      = 3600
	defaultBackoffMultiplier      = 2.0
	defaultRetentionDays          = 7
	defaultCleanupIntervalMinutes = 60
	defaultErrorRetryInterval     = 10
	defaultHTTPLookupTimeout      = 30
	defaultHTTPLookupUserAgent    = "taskq/dev"
	defaultNtfyRequestTimeout     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			Lanes:                  []string{defaultMainLane, defaultSmallJobsLane},
			DefaultLane:            defaultMainLane,
			RetryLimit:             defaultRetryLimit,
			BackoffBaseSeconds:     defaultBackoffBaseSeconds,
			BackoffMaxSeconds:      defaultBackoffMaxSeconds,
			BackoffMultiplier:      defaultBackoffMultiplier,
			RetentionDays:          defaultRetentionDays,
			CleanupIntervalMinutes: defaultCleanupIntervalMinutes,
			ErrorRetryInterval:     defaultErrorRetryInterval,
		},
		HTTPLookup: HTTPLookup{
			TimeoutSeconds: defaultHTTPLookupTimeout,
			UserAgent:      defaultHTTPLookupUserAgent,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			TaskFailed:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
