// Command trainconfig inspects and validates pretraining run configurations.
//
// Usage: trainconfig [flags] <command> <config.yaml>
//
// Commands:
//
//	validate         Check the configuration, including the parallelism
//	                 topology when -world_size (or TRAINCONFIG_WORLD_SIZE)
//	                 is given.
//	summary          Print a table summarizing the run: parameter count,
//	                 batch sizes, token budget, schedule and topology.
//	render           Write the canonical YAML serialization to stdout, with
//	                 -set overrides applied.
//	fetch-tokenizer  Download the tokenizer artifact the configuration
//	                 references and print its local directory.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/trainconfig"
	"github.com/gomlx/trainconfig/hub"
	"github.com/janpfeifer/must"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"
)

var (
	flagWorldSize = flag.Int("world_size", 0,
		"Number of devices of the target cluster. When set, validation checks that "+
			"parallelism.dp*tp*pp matches. Defaults to $TRAINCONFIG_WORLD_SIZE.")
	flagSet = flag.String("set", "",
		"Overrides applied after parsing, as \"<path>=<value>\" pairs separated by \";\", "+
			"e.g. -set=\"tokens.micro_batch_size=4;parallelism.dp=8\". "+
			"An entry \"file:overrides.txt\" reads overrides from a file.")
	flagDotEnv = flag.String("dotenv", ".env",
		"Optional file with TRAINCONFIG_* environment variables, loaded at startup if present.")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"Usage: trainconfig [flags] <validate|summary|render|fetch-tokenizer> <config.yaml>\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}
	command, configPath := args[0], args[1]

	if err := godotenv.Load(*flagDotEnv); err != nil && !os.IsNotExist(err) {
		klog.Warningf("failed to load %q: %v", *flagDotEnv, err)
	}
	env := must.M1(trainconfig.EnvFromProcess())

	cfg, err := trainconfig.ParseFile(configPath)
	if err != nil {
		fatalf("%+v", err)
	}
	env.Apply(cfg)
	if *flagSet != "" {
		applied := must.M1(trainconfig.ApplySettings(cfg, *flagSet))
		for _, path := range applied {
			klog.V(1).Infof("override applied: %s", path)
		}
	}

	worldSize := *flagWorldSize
	if worldSize == 0 {
		worldSize = env.WorldSize
	}

	switch command {
	case "validate":
		if err := validate(cfg, worldSize); err != nil {
			fatalf("%s: %v", configPath, err)
		}
		if worldSize > 0 {
			fmt.Printf("%s: valid for %d devices (dp=%d tp=%d pp=%d)\n",
				configPath, worldSize, cfg.Parallelism.DP, cfg.Parallelism.TP, cfg.Parallelism.PP)
		} else {
			fmt.Printf("%s: valid\n", configPath)
		}
	case "summary":
		if err := validate(cfg, worldSize); err != nil {
			fatalf("%s: %v", configPath, err)
		}
		printSummary(cfg, env)
	case "render":
		if err := validate(cfg, worldSize); err != nil {
			fatalf("%s: %v", configPath, err)
		}
		must.M(cfg.Save(os.Stdout))
	case "fetch-tokenizer":
		if err := cfg.Validate(); err != nil {
			fatalf("%s: %v", configPath, err)
		}
		dir, err := hub.ResolveTokenizer(&cfg.Tokenizer, env.CacheDir, env.HubToken)
		if err != nil {
			fatalf("%+v", err)
		}
		fmt.Println(dir)
	default:
		fatalf("unknown command %q, see 'trainconfig -help'", command)
	}
}

func validate(cfg *trainconfig.Config, worldSize int) error {
	if worldSize > 0 {
		return cfg.ValidateForWorldSize(worldSize)
	}
	return cfg.Validate()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
