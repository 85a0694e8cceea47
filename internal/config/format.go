package config

// LogFormat represents the output format of log lines
type LogFormat string

const (
	// LogFormatConsole renders human-readable key=value lines
	LogFormatConsole LogFormat = "console"

	// LogFormatJSON renders one JSON object per line
	LogFormatJSON LogFormat = "json"
)

// IsValid checks if the format is known
func (f LogFormat) IsValid() bool {
	return f == LogFormatConsole || f == LogFormatJSON
}

// String returns the string representation
func (f LogFormat) String() string {
	return string(f)
}
