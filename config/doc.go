// Package config provides application configuration management.
//
// The config package loads the application's configuration from a YAML file
// and CODEIDE_* environment variables using viper. It covers the HTTP server,
// sandbox limits, logging, the file store and per-language runtime images.
//
// Usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Execution timeout: %s\n", cfg.GetTimeout())
package config
