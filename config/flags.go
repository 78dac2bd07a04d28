package config

import (
	"flag"
	"io"
	"strings"
)

// configPath returns the value of -c / -config, if present.
func configPath(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || (name != "c" && name != "config") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// parseFlags applies command-line overrides:
//
//	-c string     YAML config file (read earlier by LoadConfig)
//	-a string     HTTP port
//	-store string document store backend (dynamo|memory)
//	-radius float default search radius, km
//	-stride int   sponsored entry stride
func parseFlags(c *Config, args []string) error {
	fs := flag.NewFlagSet("roomie_server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var ignored string
	fs.StringVar(&ignored, "c", "", "config file")
	fs.StringVar(&ignored, "config", "", "config file")
	fs.StringVar(&c.Port, "a", c.Port, "http port")
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "document store backend")
	fs.Float64Var(&c.Feed.RadiusKm, "radius", c.Feed.RadiusKm, "default search radius in km")
	fs.IntVar(&c.Feed.AdStride, "stride", c.Feed.AdStride, "sponsored entry stride")

	return fs.Parse(args)
}
