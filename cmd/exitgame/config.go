// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package main

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/plasmalabs/exitgame/cmd/util"
)

type ExitGameConfig struct {
	Conf     util.ConfConfig `koanf:"conf"`
	LogLevel int             `koanf:"log-level"`

	Persistent PersistentConfig `koanf:"persistent"`
	Chain      ChainConfig      `koanf:"chain"`
	HTTP       HTTPConfig       `koanf:"http"`

	Metrics       bool                     `koanf:"metrics"`
	MetricsServer util.MetricsServerConfig `koanf:"metrics-server"`
}

type PersistentConfig struct {
	Path string `koanf:"path"`
}

type ChainConfig struct {
	MinExitPeriod      uint64 `koanf:"min-exit-period"`
	ChildBlockInterval uint64 `koanf:"child-block-interval"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
	Port int    `koanf:"port"`
}

var ExitGameConfigDefault = ExitGameConfig{
	Conf:     util.ConfConfigDefault,
	LogLevel: int(log.LvlInfo),
	Persistent: PersistentConfig{
		Path: "",
	},
	Chain: ChainConfig{
		MinExitPeriod:      604_800, // one week, in seconds
		ChildBlockInterval: 1000,
	},
	HTTP: HTTPConfig{
		Addr: "127.0.0.1",
		Port: 8080,
	},
	Metrics:       false,
	MetricsServer: util.MetricsServerConfigDefault,
}

func ExitGameConfigAddOptions(f *flag.FlagSet) {
	util.ConfConfigAddOptions("conf", f)
	f.Int("log-level", ExitGameConfigDefault.LogLevel, "log level")
	f.String("persistent.path", ExitGameConfigDefault.Persistent.Path, "directory of the exit record database, empty for in-memory")
	f.Uint64("chain.min-exit-period", ExitGameConfigDefault.Chain.MinExitPeriod, "minimum exit period in seconds")
	f.Uint64("chain.child-block-interval", ExitGameConfigDefault.Chain.ChildBlockInterval, "block number interval between non-deposit child blocks")
	f.String("http.addr", ExitGameConfigDefault.HTTP.Addr, "API server address")
	f.Int("http.port", ExitGameConfigDefault.HTTP.Port, "API server port")
	f.Bool("metrics", ExitGameConfigDefault.Metrics, "enable metrics")
	util.MetricsServerAddOptions("metrics-server", f)
}

func ParseExitGame(_ context.Context, args []string) (*ExitGameConfig, error) {
	f := flag.NewFlagSet("", flag.ContinueOnError)

	ExitGameConfigAddOptions(f)

	k, err := util.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}

	var config ExitGameConfig
	if err := util.EndCommonParse(k, &config); err != nil {
		return nil, err
	}

	if config.Conf.Dump {
		if err := util.DumpConfig(k); err != nil {
			return nil, err
		}
	}
	return &config, nil
}
