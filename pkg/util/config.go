package util

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ReadConfig loads path into v, or ./data/config.* when path is empty. a missing default file is not an error.
func ReadConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./data/")
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}
