package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/automerge/internal/cfg"
	"github.com/simplesurance/automerge/internal/condition"
	"github.com/simplesurance/automerge/internal/githubclt"
	"github.com/simplesurance/automerge/internal/logfields"
	"github.com/simplesurance/automerge/internal/merge"
	"github.com/simplesurance/automerge/internal/mergequeue"
	"github.com/simplesurance/automerge/internal/prcontext"
	"github.com/simplesurance/automerge/internal/retry"
	"github.com/simplesurance/automerge/internal/stringutils"
)

const appName = "automerge"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
	DryRun      *bool
	Worker      *bool
	Rule        *string
	Repository  *string
	PullRequest *int
	Cancel      *bool
	Missing     *[]string
}

var args arguments

const defConfigFile = "/etc/automerge/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the automerge configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
		DryRun: pflag.Bool(
			"dry-run",
			false,
			"simulate operations that change pull requests on GitHub",
		),
		Worker: pflag.Bool(
			"worker",
			false,
			"run the merge queue worker until a termination signal is received",
		),
		Rule: pflag.String(
			"rule",
			"",
			"name of the rule whose merge action is evaluated",
		),
		Repository: pflag.String(
			"repository",
			"",
			"repository of the pull request, in the format OWNER/REPOSITORY",
		),
		PullRequest: pflag.Int(
			"pr",
			0,
			"number of the pull request",
		),
		Cancel: pflag.Bool(
			"cancel",
			false,
			"cancel the merge action instead of running it",
		),
		Missing: pflag.StringArray(
			"missing",
			nil,
			"condition that is not satisfied by the pull request, can be specified multiple times,\n"+
				"when unset the unsatisfied conditions are evaluated from the rule",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\n", appName)
		fmt.Fprintf(os.Stderr, "Evaluate the merge action of a rule for a pull request or run the merge queue worker.\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Load(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustInitStore(ctx context.Context, config *cfg.MergeQueue) mergequeue.Store {
	switch config.Backend {
	case cfg.BackendMemory:
		return mergequeue.NewMemoryStore()

	case cfg.BackendRedis:
		clt := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Username: config.RedisUsername,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})

		goodbye.Register(func(context.Context, os.Signal) {
			if err := clt.Close(); err != nil {
				logger.Warn("closing redis client failed", zap.Error(err))
			}
		})

		return mergequeue.NewRedisStore(clt, config.KeyPrefix)

	case cfg.BackendPostgres, cfg.BackendSQLite:
		db, err := mergequeue.OpenDatabase(config.Backend, config.DatabaseDSN)
		exitOnErr("could not open merge queue database", err)

		sqlDB, err := db.DB()
		exitOnErr("could not open merge queue database", err)

		goodbye.Register(func(context.Context, os.Signal) {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("closing database connection failed", zap.Error(err))
			}
		})

		store, err := mergequeue.NewSQLStore(ctx, db)
		exitOnErr("could not initialize merge queue database", err)

		return store

	default:
		exitOnErr("could not initialize merge queue", fmt.Errorf("unsupported backend: %q", config.Backend))
		return nil
	}
}

func mustParseRepository(in string) (string, string) {
	owner, repo, found := strings.Cut(in, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		fmt.Fprintf(os.Stderr, "ERROR: --repository must be in the format OWNER/REPOSITORY, is: %q\n", in)
		os.Exit(2)
	}

	return owner, repo
}

func toMergeConditions(conds []*condition.Condition) []merge.Condition {
	result := make([]merge.Condition, 0, len(conds))
	for _, c := range conds {
		result = append(result, c)
	}

	return result
}

func evaluateRule(
	ctx context.Context,
	config *cfg.Config,
	clt githubclt.API,
	queue *mergequeue.Queue,
	retryer *retry.Retryer,
) merge.Outcome {
	rule, err := config.Rule(*args.Rule)
	exitOnErr("could not find rule", err)

	mergeCfg, err := rule.MergeConfig()
	exitOnErr(fmt.Sprintf("rule %s", rule.Name), err)

	action, err := merge.NewAction(mergeCfg, clt, queue, merge.WithBotLogin(config.GithubBotLogin))
	exitOnErr("could not initialize merge action", err)

	owner, repo := mustParseRepository(*args.Repository)

	prCtx, err := prcontext.New(ctx, clt, retryer, owner, repo, *args.PullRequest)
	exitOnErr("could not retrieve pull request", err)

	var missing []*condition.Condition
	if len(*args.Missing) > 0 {
		missing, err = condition.ParseAll(*args.Missing)
		exitOnErr("could not parse --missing conditions", err)
	} else {
		conds, err := rule.ParsedConditions()
		exitOnErr(fmt.Sprintf("rule %s: could not parse conditions", rule.Name), err)

		missing = condition.Unsatisfied(prCtx.Pull(), conds)
	}

	logger.Debug(
		"evaluating merge action",
		logfields.Rule(rule.Name),
		zap.Strings("missing_conditions", conditionStrings(missing)),
		zap.Bool("cancel", *args.Cancel),
	)

	if *args.Cancel || len(missing) > 0 {
		return action.Cancel(ctx, prCtx, toMergeConditions(missing))
	}

	return action.Run(ctx, prCtx, toMergeConditions(missing))
}

func conditionStrings(conds []*condition.Condition) []string {
	result := make([]string, 0, len(conds))
	for _, c := range conds {
		result = append(result, c.String())
	}

	return result
}

func printOutcome(out merge.Outcome) {
	fmt.Printf("status:  %s\n", out.Status)
	fmt.Printf("summary: %s\n", out.Summary)

	if out.Detail != "" {
		fmt.Printf("detail:\n%s\n", stringutils.IndentString(out.Detail, "  "))
	}
}

func runWorker(config *cfg.Config, clt githubclt.API, queue *mergequeue.Queue, retryer *retry.Retryer) {
	worker := mergequeue.NewWorker(
		queue,
		clt,
		retryer,
		mergequeue.WithInterval(config.MergeQueue.WorkerIntervalDuration()),
		mergequeue.WithClaimTTL(config.MergeQueue.ClaimTimeoutDuration()),
		mergequeue.WithConcurrency(config.MergeQueue.WorkerConcurrency),
	)

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping merge queue worker",
			logfields.Event("merge_queue_worker_stopping"),
		)
		worker.Stop()
	})

	if config.HTTPListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/queue", queue.HTTPHandlerList)
		logger.Info(
			"registered metrics and queue listing http endpoints",
			logfields.Event("http_handlers_registered"),
			zap.Strings("endpoints", []string{"/metrics", "/queue"}),
		)

		startHTTPServer(config.HTTPListenAddr, mux)
	}

	worker.Start()

	select {}
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	if !*args.Worker && (*args.Rule == "" || *args.Repository == "" || *args.PullRequest <= 0) {
		fmt.Fprintf(os.Stderr, "ERROR: either --worker or --rule, --repository and --pr must be specified\n")
		os.Exit(2)
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_bot_login", config.GithubBotLogin),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("merge_queue.backend", config.MergeQueue.Backend),
		zap.String("merge_queue.redis_addr", config.MergeQueue.RedisAddr),
		zap.String("merge_queue.redis_password", hide(config.MergeQueue.RedisPassword)),
		zap.String("merge_queue.database_dsn", hide(config.MergeQueue.DatabaseDSN)),
		zap.Int("rules", len(config.Rules)),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	var githubClient githubclt.API = githubclt.New(config.GithubAPIToken)
	if *args.DryRun {
		githubClient = githubclt.NewDryClient(githubClient, logger)
	}

	retryer := retry.NewRetryer()
	goodbye.Register(func(context.Context, os.Signal) {
		retryer.Stop()
	})

	ctx := context.Background()
	queue := mergequeue.NewQueue(mustInitStore(ctx, &config.MergeQueue))

	if *args.Worker {
		runWorker(config, githubClient, queue, retryer)
		return
	}

	printOutcome(evaluateRule(ctx, config, githubClient, queue, retryer))

	goodbye.Exit(ctx, 0)
}
