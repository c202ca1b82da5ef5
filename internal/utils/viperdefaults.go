package utils

import "github.com/spf13/viper"

// Set the viper defaults for a soundbridge stream session.
// For use in cmd, as well as several examples.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("device", "")
	viper.SetDefault("samplerate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("bits", 16)
	viper.SetDefault("periodms", 10)
	viper.SetDefault("bufferms", 500)
}
