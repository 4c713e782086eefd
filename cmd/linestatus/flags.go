package main

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"linestatus/internal/config"
)

// runFlags are the overlay options. Anything set on the command line wins
// over the config file.
type runFlags struct {
	color          string
	position       string
	orientation    string
	name           string
	initial        float64
	defaultElement string
	multi          bool
	debug          bool
	headless       bool
	no9p           bool
	pollInterval   time.Duration
	thickness      int
	logFile        string
}

var flagAliases = map[string]string{
	"line-color": "color",
	"pos":        "position",
	"orient":     "orientation",
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.color, "color", "c", "", "Line colour as RRGGBB (default FFA500)")
	fs.StringVarP(&f.position, "position", "p", "", "Position: right, bottom, left, top or X,Y")
	fs.StringVarP(&f.orientation, "orientation", "o", "", "Orientation: vertical or horizontal")
	fs.StringVar(&f.name, "name", "", "Element name in single-element mode")
	fs.Float64Var(&f.initial, "initial", 0, "Initial value, 0.0-1.0")
	fs.StringVar(&f.defaultElement, "default-element", "", "Element addressed by bare N commands")
	fs.BoolVar(&f.multi, "multi", false, "Show volume and brightness")
	fs.BoolVarP(&f.debug, "debug", "d", false, "Debug mode: thicker black lines")
	fs.BoolVar(&f.headless, "headless", false, "Do not draw, only log redraws")
	fs.BoolVar(&f.no9p, "no-9p", false, "Do not serve the 9P status filesystem")
	fs.DurationVar(&f.pollInterval, "poll-interval", 0, "Update poll interval (50ms-1s, default 100ms)")
	fs.IntVar(&f.thickness, "thickness", 1, "Line thickness in cells")
	fs.StringVar(&f.logFile, "log-file", "", "Log file (default: stderr when headless, a file in the runtime dir otherwise)")
}

// normalizeFlag maps the short spellings --line-color, --pos and --orient.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// apply merges the flags that were set into cfg and validates the result.
func (f *runFlags) apply(cfg *config.Config, fs *pflag.FlagSet, channelType string) error {
	g := &cfg.General
	if channelType != "" {
		g.Type = channelType
	}
	if fs.Changed("poll-interval") {
		g.PollInterval = f.pollInterval
	}
	if fs.Changed("debug") {
		g.Debug = f.debug
	}
	if fs.Changed("headless") {
		g.Headless = f.headless
	}
	if fs.Changed("log-file") {
		g.LogFile = f.logFile
	}
	if fs.Changed("default-element") {
		g.DefaultElement = f.defaultElement
	}
	if fs.Changed("no-9p") {
		cfg.Server.Enabled = !f.no9p
	}

	if len(cfg.Elements) == 0 {
		cfg.Elements = config.DefaultConfig().Elements
	}
	if f.multi {
		cfg.Elements = config.MultiPreset()
	} else if fs.Changed("name") {
		if len(cfg.Elements) > 1 {
			return fmt.Errorf("--name only applies to a single element")
		}
		cfg.Elements[0].Name = f.name
	}

	// Element flags modify the first element
	if len(cfg.Elements) > 0 {
		e := &cfg.Elements[0]
		if fs.Changed("color") {
			e.Color = f.color
		}
		if fs.Changed("orientation") {
			e.Orientation = f.orientation
			if !fs.Changed("position") {
				e.Position = ""
			}
		}
		if fs.Changed("position") {
			e.Position = f.position
		}
		if fs.Changed("initial") {
			v := f.initial
			e.Initial = &v
		}
	}

	return cfg.Validate()
}
