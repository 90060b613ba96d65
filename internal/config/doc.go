// Package config provides configuration management for albumpdf.
//
// This package handles:
//   - Loading settings from YAML or JSON files with viper
//   - ALBUMPDF_* environment overrides
//   - Default configuration values and validation
//   - Saving settings back to disk
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Pages under ./temp/img/{album_id}/{page}.jpg
//	// Documents under ./temp/img/{album_id}.pdf
//	// 3 attempts per request, 1s..10s backoff
//
// # Loading from File
//
//	settings, err := config.Load("/etc/albumpdf/config.yaml")
//	if err != nil {
//	    // invalid file or failed validation
//	}
//
// A missing file is not an error; defaults and environment apply.
//
// # Saving Settings
//
//	err := config.DefaultSettings().Save("config.yaml")
package config
