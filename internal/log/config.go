package log

const (
	FormatText = "text"
	FormatJSON = "json"

	DefaultPattern = "%time [%level] %msg %field\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

type Config struct {
	Level   string     `mapstructure:"level" yaml:"level"`
	Format  string     `mapstructure:"format" yaml:"format"`
	Pattern string     `mapstructure:"pattern" yaml:"pattern"`
	Time    string     `mapstructure:"time" yaml:"time"`
	File    FileConfig `mapstructure:"file" yaml:"file"`
}

// FileConfig enables a rotated log file next to stderr. Empty Path disables it.
type FileConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  FormatText,
		Pattern: DefaultPattern,
		Time:    DefaultTime,
		File: FileConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}
