// Package config provides configuration loading and defaults for ppcwatch.
package config

import (
	"github.com/blackwell-systems/ppcwatch/internal/batch"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// DefaultConfigDir is the default location for ppcwatch configuration.
const DefaultConfigDir = "~/.config/ppcwatch"

// DefaultDBName is the filename for the SQLite evaluation history.
const DefaultDBName = "ppcwatch.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment variable overrides, e.g.
// PPCWATCH_BID_MAX_CHANGE_LIMIT.
const EnvPrefix = "PPCWATCH"

// DefaultMinClicks is the data sufficiency threshold shared by every
// component unless overridden per component.
const DefaultMinClicks = ppc.DefaultMinClicks

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}

// DefaultBatch holds the default batch settings.
var DefaultBatch = Batch{
	Workers: batch.DefaultWorkers,
}
