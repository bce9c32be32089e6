// Package config loads taskchain configuration.
//
// It uses Viper to read a config.yml, layers environment variables and an
// optional .env file (loaded with godotenv) on top, and unmarshals the result
// into a struct. Environment variables map onto nested keys by splitting on
// underscores, so RUN_STRATEGY sets run.strategy and EXECUTOR_WORKERS sets
// executor.workers.
//
// # Usage
//
//	var cfg config.Config
//	if err := config.LoadConfig("taskchain", &cfg); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
