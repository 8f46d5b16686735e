// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files, a .env file and SCRIPTBOX_* environment
// variables. It covers the transport, the script sandbox, the package
// resolver (feed, cache location, target platform, skip policy) and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Package feed: %s\n", cfg.Resolver.Source.URL)
package config
