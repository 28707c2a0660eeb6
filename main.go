package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	orchestratorx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/orchestrator"
	specialistx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/agents/specialist"
	contractx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/contract"
	lifecyclex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/lifecycle"
	llmx "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/llm"
	statex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/state"
	storex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/store"
	billingx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/billing"
	configx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/config"
	logx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/logger"
	postgresx "github.com/tanpawarit/Foundation-Campaign-Synthesis/pkg/postgres"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"

	runStoreNone    = "none"
	runStoreUpstash = "upstash"
	runStoreObject  = "object"
)

// AppConfig selects which adapters the binary wires. Loaded with the APP prefix.
type AppConfig struct {
	Store    string `split_words:"true" default:"memory"`
	RunStore string `split_words:"true" default:"none"`
	Billing  bool   `default:"false"`
}

var (
	envFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "synth",
	Short:         "Turn foundation data into a campaign plan and manage its lifecycle",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)
		conf, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return err
		}
		logx.Init(*conf)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	rootCmd.AddCommand(synthesizeCmd(), campaignCmd(), moveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the adapters built from the environment for one command invocation.
type app struct {
	conf        AppConfig
	persistence contractx.PersistenceAdapter
	closers     []func() error
}

func newApp(ctx context.Context) (*app, error) {
	conf, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, err
	}
	a := &app{conf: *conf}

	switch strings.ToLower(conf.Store) {
	case storeMemory:
		a.persistence = storex.NewMemory()
	case storePostgres:
		dbConf, err := configx.New[postgresx.Config]("DATABASE")
		if err != nil {
			return nil, err
		}
		db, err := postgresx.Open(ctx, *dbConf)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		pg, err := storex.NewPostgres(db)
		if err != nil {
			return nil, err
		}
		if err := pg.CreateSchema(ctx); err != nil {
			return nil, err
		}
		a.persistence = pg
	default:
		return nil, fmt.Errorf("unknown APP_STORE %q", conf.Store)
	}
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func (a *app) runStore() (statex.RunStore, error) {
	switch strings.ToLower(a.conf.RunStore) {
	case "", runStoreNone:
		return nil, nil
	case runStoreUpstash:
		conf, err := configx.New[statex.UpstashRedisConfig]("RUNSTORE_UPSTASH")
		if err != nil {
			return nil, err
		}
		return statex.NewUpstashRedisStore(*conf)
	case runStoreObject:
		conf, err := configx.New[statex.ObjectStoreConfig]("RUNSTORE_OBJECT")
		if err != nil {
			return nil, err
		}
		return statex.NewObjectRunStore(*conf)
	default:
		return nil, fmt.Errorf("unknown APP_RUN_STORE %q", a.conf.RunStore)
	}
}

func (a *app) backend(ctx context.Context, conf llmx.Config) (contractx.InferenceBackend, error) {
	switch strings.ToLower(strings.TrimSpace(conf.Provider)) {
	case llmx.ProviderOpenRouter:
		return llmx.NewEinoBackend(llmx.OpenRouterFactory(conf)), nil
	case llmx.ProviderOpenAI:
		return llmx.NewOpenAIBackend(conf)
	case llmx.ProviderGemini:
		return llmx.NewGeminiBackend(ctx, conf)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", contractx.ErrValidation, conf.Provider)
	}
}

func (a *app) orchestrator(ctx context.Context, recorder contractx.InferenceRecorder) (*orchestratorx.Orchestrator, error) {
	llmConf, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	router, err := llmx.NewRouter(*llmConf)
	if err != nil {
		return nil, err
	}
	backend, err := a.backend(ctx, *llmConf)
	if err != nil {
		return nil, err
	}
	registry, err := specialistx.NewRegistry(backend)
	if err != nil {
		return nil, err
	}
	runs, err := a.runStore()
	if err != nil {
		return nil, err
	}
	synthConf, err := configx.New[orchestratorx.Config]("SYNTHESIS")
	if err != nil {
		return nil, err
	}

	opts := synthConf.Options()
	opts.Recorder = recorder
	opts.Persistence = a.persistence
	opts.RunStore = runs
	return orchestratorx.New(registry, router, opts)
}

func (a *app) lifecycle() (*lifecyclex.Manager, error) {
	if strings.ToLower(a.conf.Store) != storePostgres {
		return nil, errors.New("campaign commands need a durable store, set APP_STORE=postgres")
	}
	var opts []lifecyclex.Option
	if a.conf.Billing {
		conf, err := configx.New[billingx.Config]("BILLING")
		if err != nil {
			return nil, err
		}
		client, err := billingx.NewClient(*conf)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lifecyclex.WithGate(client))
	}
	return lifecyclex.NewManager(a.persistence, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
