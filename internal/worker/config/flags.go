package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/flagx"
)

// parseFlags populates selected worker Config fields from command-line flags.
//
// Supported flags:
//
//	-d string      PostgreSQL DSN
//	-rpc string    chain JSON-RPC endpoint
//	-chain string  chain name recorded in certificates
//	-n int         required confirmations
//	-i int         poll interval, seconds
//	-w int         max confirmation wait, seconds
//	-r int         max retries
//	-k string      hex-encoded certificate signing key
//	-certs string  certificate storage directory
//	-brokers string comma-separated Kafka brokers
//	-topic string  Kafka jobs topic
//	-redis string  Redis address for the processing lease (empty disables it)
//	-m string      metrics listen address
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - Interval flags are accepted as integers in seconds and converted to
//     time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-d", "-rpc", "-chain", "-n", "-i", "-w", "-r", "-k", "-certs", "-brokers", "-topic", "-redis", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.ChainRPCEndpoint, "rpc", config.ChainRPCEndpoint, "chain JSON-RPC endpoint")
	fs.StringVar(&config.ChainName, "chain", config.ChainName, "chain name")

	fs.IntVar(&config.RequiredConfirmations, "n", config.RequiredConfirmations, "required confirmations")
	pollInterval := fs.Int("i", int(config.PollInterval.Seconds()), "poll interval (in seconds)")
	maxWait := fs.Int("w", int(config.MaxConfirmationWait.Seconds()), "max confirmation wait (in seconds)")
	fs.IntVar(&config.MaxRetries, "r", config.MaxRetries, "max retries")

	fs.StringVar(&config.SigningKeyHex, "k", config.SigningKeyHex, "certificate signing key (hex)")
	fs.StringVar(&config.CertStoragePath, "certs", config.CertStoragePath, "certificate storage directory")

	brokers := fs.String("brokers", strings.Join(config.KafkaBrokers, ","), "Kafka brokers (comma-separated)")
	fs.StringVar(&config.KafkaTopic, "topic", config.KafkaTopic, "Kafka jobs topic")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address for processing lease")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics listen address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// The interval flags are whole seconds, so writing them back
	// unconditionally would truncate a finer-grained duration from the JSON
	// overlay. Convert only the flags that were actually passed.
	visited := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { visited[f.Name] = true })

	if visited["i"] {
		config.PollInterval = time.Duration(*pollInterval) * time.Second
	}
	if visited["w"] {
		config.MaxConfirmationWait = time.Duration(*maxWait) * time.Second
	}
	if *brokers != "" {
		config.KafkaBrokers = strings.Split(*brokers, ",")
	}
}
