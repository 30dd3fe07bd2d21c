// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package util carries the shared command-line plumbing: koanf-based
// configuration layering and the metrics server bootstrap.
package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

type ConfConfig struct {
	Dump      bool   `koanf:"dump"`
	EnvPrefix string `koanf:"env-prefix"`
	File      string `koanf:"file"`
}

var ConfConfigDefault = ConfConfig{
	Dump:      false,
	EnvPrefix: "",
	File:      "",
}

func ConfConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".dump", ConfConfigDefault.Dump, "print out currently active configuration file")
	f.String(prefix+".env-prefix", ConfConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
	f.String(prefix+".file", ConfConfigDefault.File, "name of configuration file")
}

// BeginCommonParse parses the command line and layers configuration sources
// into a koanf instance: flag defaults first, then the configuration file,
// then prefixed environment variables, with explicitly set flags on top.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Fprint(os.Stderr, f.FlagUsagesWrapped(80))
			return nil, errors.New("help requested")
		}
	}
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, errors.Errorf("unexpected argument: %s", f.Arg(0))
	}

	k := koanf.New(".")
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "error loading flag defaults")
	}

	if path := k.String("conf.file"); path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error loading configuration file %s", path)
		}
	}
	if prefix := k.String("conf.env-prefix"); prefix != "" {
		err := k.Load(env.Provider(prefix+"_", ".", func(key string) string {
			// ENVPREFIX_CHAIN_MIN__EXIT__PERIOD -> chain.min-exit-period
			key = strings.ToLower(strings.TrimPrefix(key, prefix+"_"))
			key = strings.ReplaceAll(key, "__", "-")
			return strings.ReplaceAll(key, "_", ".")
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "error loading environment variables")
		}
	}

	// Explicitly set flags beat the file and the environment.
	changed := make(map[string]interface{})
	f.Visit(func(fl *flag.Flag) {
		changed[fl.Name] = fl.Value.String()
	})
	if len(changed) > 0 {
		if err := k.Load(confmap.Provider(changed, "."), nil); err != nil {
			return nil, errors.Wrap(err, "error applying command-line overrides")
		}
	}
	return k, nil
}

// EndCommonParse unmarshals the layered configuration into config.
func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := koanf.UnmarshalConf{Tag: "koanf"}
	if err := k.UnmarshalWithConf("", config, decoderConfig); err != nil {
		return errors.Wrap(err, "error parsing configuration")
	}
	return nil
}

// DumpConfig prints the active configuration as JSON and exits, with the
// dump trigger itself scrubbed so the output can be reused as a file.
func DumpConfig(k *koanf.Koanf) error {
	err := k.Load(confmap.Provider(map[string]interface{}{
		"conf.dump": false,
	}, "."), nil)
	if err != nil {
		return errors.Wrap(err, "error removing extra parameters before dump")
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return errors.Wrap(err, "unable to marshal config file to JSON")
	}
	fmt.Println(string(c))
	os.Exit(0)
	return nil
}
