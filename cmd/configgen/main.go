package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/danmuck/stridelink/internal/config"
)

func main() {
	format := flag.String("format", "toml", "config format: toml|yaml")
	output := flag.String("output", "", "output path for config template (defaults to stridelink.<format>)")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "stridelink.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s (%d devices)", *input, len(cfg.Devices))
		return
	}

	target := *output
	if target == "" {
		target = "stridelink." + strings.ToLower(*format)
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *format, filepath.Clean(target))
}
