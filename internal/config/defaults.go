package config

const (
	defaultDataDir            = "~/.local/share/foreman"
	defaultLogDir             = "~/.local/share/foreman/logs"
	defaultAPIBind            = "127.0.0.1:7610"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultQueuePollInterval  = 10
	defaultStatusCheckTimeout = 5
	defaultErrorRetryInterval = 5
	defaultRequestTimeout     = 10
	defaultObserverBuffer     = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			StatusCheckTimeout: defaultStatusCheckTimeout,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		StatusSource: StatusSource{
			RequestTimeout: defaultRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
		},
		Broadcast: Broadcast{
			ObserverBuffer: defaultObserverBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
