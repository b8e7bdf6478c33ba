// Package config provides loading and environment overlay for rescue
// configuration. It exposes a Default() baseline, JSON/YAML file loading,
// a RESCUE_* environment overlay and validation.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/rescue.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
package config
