package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/soundbridge-audio/soundbridge/internal/utils"
	"github.com/soundbridge-audio/soundbridge/pkg/audioclient"
	"github.com/soundbridge-audio/soundbridge/pkg/format"
	"github.com/soundbridge-audio/soundbridge/pkg/hardware"
)

func LoadConfig(configFilePath string) {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else if os.IsNotExist(err) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}

// ConfigureLogger points slog at the configured level and file, panicking on
// a bad configuration since nothing can be reported without a logger.
func ConfigureLogger() *os.File {
	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	return logFilePointer
}

// StreamConfig assembles the stream creation parameters from the loaded
// configuration for the given flow.
func StreamConfig(flow hardware.Flow) audioclient.StreamConfig {
	return audioclient.StreamConfig{
		Device: viper.GetString("device"),
		Flow:   flow,
		Share:  audioclient.ShareModeShared,
		Format: format.New(
			format.FamilyPCM,
			viper.GetUint32("samplerate"),
			viper.GetUint16("channels"),
			viper.GetUint16("bits"),
		),
		Period:   time.Duration(viper.GetInt("periodms")) * time.Millisecond,
		Duration: time.Duration(viper.GetInt("bufferms")) * time.Millisecond,
	}
}
