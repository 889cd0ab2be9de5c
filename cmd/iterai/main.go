// Command iterai demonstrates the refinement engine: create a root node from
// a prompt, refine it along two directions, synthesize the refinements, and
// score every version.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/iterai/iterai-go/dag"
	"github.com/iterai/iterai-go/dag/emit"
	"github.com/iterai/iterai-go/dag/store"
)

var (
	flagConfig  string
	flagStorage string
	flagModel   string
	flagBackend string
	flagVerbose bool
	flagTrace   bool
)

func main() {
	root := &cobra.Command{
		Use:   "iterai",
		Short: "Iterative refinement and synthesis of LLM outputs",
		Long: `iterai maintains a DAG of LLM-generated text versions. Each node holds a
plan, an output, and a diff against its parents; refinements add single-parent
children and syntheses combine several versions into one.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.config/iterai/config.yaml)")
	root.PersistentFlags().StringVar(&flagStorage, "storage", "", "storage root (default from config)")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "model name (default from config)")
	root.PersistentFlags().StringVar(&flagBackend, "store", "fs", "storage backend: fs, sqlite, or mysql")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&flagTrace, "trace", false, "emit events as OpenTelemetry spans instead of log lines")

	root.AddCommand(newDemoCmd())
	root.AddCommand(newShowCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the CLI logger; --verbose enables debug output.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if flagVerbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// newEngine wires an Engine from the CLI flags: config, storage backend,
// event emitter, and metrics.
func newEngine(logger *zap.Logger, metrics *dag.Metrics) (*dag.Engine, *dag.Config, error) {
	cfg, err := dag.LoadConfig(flagConfig)
	if err != nil {
		return nil, nil, err
	}

	opts := []dag.Option{dag.WithMetrics(metrics)}

	var emitter emit.Emitter = emit.NewZapEmitter(logger)
	if flagTrace {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		emitter = emit.NewOTelEmitter(tp.Tracer("iterai"))
	}
	opts = append(opts, dag.WithEmitter(emitter))

	storagePath := flagStorage
	if storagePath == "" {
		storagePath = cfg.StoragePath()
	}
	switch flagBackend {
	case "fs", "":
		// Engine default; respects the resolved storage path.
		fsStore, err := store.NewFSStore(storagePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dag.WithStore(fsStore))
	case "sqlite":
		sqliteStore, err := store.NewSQLiteStore(storagePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dag.WithStore(sqliteStore))
	case "mysql":
		mysqlStore, err := store.NewMySQLStore(storagePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dag.WithStore(mysqlStore))
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", flagBackend)
	}

	engine, err := dag.NewEngine(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// newMetrics registers engine metrics on a fresh registry so repeated CLI
// runs never collide with the default registry state.
func newMetrics() (*dag.Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	return dag.NewMetrics(registry), registry
}
