package config

const (
	defaultSerialDevice       = "/dev/ttyUSB0"
	defaultSerialBaudRate     = 9600
	defaultRetryDelayMillis   = 1000
	defaultSerialHotplug      = true
	defaultPIDFile            = "/tmp/serialapps.pid"
	defaultStdoutLog          = "/dev/null"
	defaultStderrLog          = "/dev/null"
	defaultWorkDir            = "/"
	defaultStopPollMillis     = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultConfigPath         = "~/.config/serialapps/config.toml"
	defaultProjectConfigName  = "serialapps.toml"
	envSerialDeviceOverride   = "SERIALAPPS_DEVICE"
	envSerialBaudRateOverride = "SERIALAPPS_BAUD_RATE"
)

// defaultApps is the stock application registry. Code N launches defaultApps[N].
var defaultApps = []string{
	"dia",
	"gimp",
	"gthumb",
	"cheese",
	"gcalctool",
	"gedit",
	"file-roller",
	"vlc",
	"seahorse",
	"gnome-dictionary",
	"gucharmap",
	"rhythmbox",
	"soundconverter",
	"gnome-sound-recorder",
	"gnome-volume-control",
	"firefox",
	"pidgin",
	"evolution",
	"skype",
	"gftp",
	"gwget",
	"liferea",
	"transmission",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	apps := make([]string, len(defaultApps))
	copy(apps, defaultApps)
	return Config{
		Apps: apps,
		Serial: Serial{
			Device:           defaultSerialDevice,
			BaudRate:         defaultSerialBaudRate,
			RetryDelayMillis: defaultRetryDelayMillis,
			Hotplug:          defaultSerialHotplug,
		},
		Daemon: Daemon{
			PIDFile:        defaultPIDFile,
			StdoutLog:      defaultStdoutLog,
			StderrLog:      defaultStderrLog,
			WorkDir:        defaultWorkDir,
			StopPollMillis: defaultStopPollMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
