package config

// FeePerWordNicks is the engine's default fee rate: 32_768 nicks per word
// (0.5 NOCK), per spec §4.4.
const FeePerWordNicks = 32_768

// Defaults returns the engine's default configuration.
func Defaults() *Config {
	return &Config{
		Version:                  1,
		Home:                     DefaultHome(),
		FeePerWord:               FeePerWordNicks,
		TxExpiryMinutes:          30,
		RequestExpirationMinutes: 5,
		DefaultAutoLockMinutes:   0,
		SyncIntervalSeconds:      10,
		AgeScryptWorkFactor:      18,
		Logging: LoggingConfig{
			Level: "error",
			File:  "",
		},
	}
}
