package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/appsignal/appsignal-wrap/checkin"
	"github.com/appsignal/appsignal-wrap/errorreport"
	"github.com/appsignal/appsignal-wrap/internal/hostname"
	"github.com/appsignal/appsignal-wrap/logs"
	"github.com/appsignal/appsignal-wrap/transport"
	"github.com/appsignal/appsignal-wrap/wrap"
)

func main() {
	log := newLogger()
	defer log.Sync()

	app := &cli.App{
		Name:      "appsignal-wrap",
		Usage:     "track the execution of an arbitrary process with AppSignal",
		UsageText: "appsignal-wrap [options] -- <command> [args...]",
		Description: "Executes the given command, passing through its standard input, " +
			"output, and error, forwarding signals to it, and exiting with its exit " +
			"code, while sending its output as logs and tracking its lifetime with " +
			"check-ins and failure reports.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "The AppSignal app-level push API key.",
				EnvVars: []string{"APPSIGNAL_APP_PUSH_API_KEY"},
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "The log group to send logs to. Defaults to \"process\".",
			},
			&cli.StringFlag{
				Name:    "log-source",
				Usage:   "The log source API key to send logs with. Defaults to the app-level key's \"application\" source.",
				EnvVars: []string{"APPSIGNAL_LOG_SOURCE_API_KEY"},
			},
			&cli.StringFlag{
				Name:  "cron",
				Usage: "The identifier to send cron check-ins with: a start check-in when the command starts, and a finish check-in if it succeeds.",
			},
			&cli.StringFlag{
				Name:  "heartbeat",
				Usage: "The identifier to send heartbeat check-ins with, periodically, for the lifetime of the command.",
			},
			&cli.StringFlag{
				Name:  "error",
				Usage: "The action name to report failures under. Defaults to the cron or heartbeat identifier, or the command's name.",
			},
			&cli.BoolFlag{
				Name:  "no-stdout",
				Usage: "Do not send standard output as logs.",
			},
			&cli.BoolFlag{
				Name:  "no-stderr",
				Usage: "Do not send standard error as logs.",
			},
			&cli.BoolFlag{
				Name:  "no-log",
				Usage: "Do not send any logs.",
			},
			&cli.BoolFlag{
				Name:  "no-error",
				Usage: "Do not send failure reports when the command fails.",
			},
			&cli.StringFlag{
				Name:  "digest",
				Usage: "Override the random digest that correlates this invocation's telemetry.",
			},
			&cli.StringFlag{
				Name:    "revision",
				Usage:   "The app revision to attach to log messages.",
				EnvVars: []string{"APPSIGNAL_APP_REVISION"},
			},
			&cli.StringFlag{
				Name:    "hostname",
				Usage:   "Override the hostname reported with logs and failure reports.",
				EnvVars: []string{"APPSIGNAL_HOSTNAME"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Hidden:  true,
				Value:   "https://appsignal-endpoint.net",
				EnvVars: []string{"APPSIGNAL_PUBLIC_ENDPOINT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := buildConfig(ctx, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("appsignal-wrap: %s", err), 2)
			}

			wrapper := wrap.New(cfg,
				wrap.WithLogger(log),
				wrap.WithSender(transport.NewClient(log)),
			)

			code, err := wrapper.Run()
			if err != nil {
				return err
			}
			if code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}

// buildConfig assembles the wrapper configuration from the parsed flags,
// validating flag combinations and warning about those that silently
// disable telemetry.
func buildConfig(ctx *cli.Context, log *zap.SugaredLogger) (wrap.Config, error) {
	command := ctx.Args().Slice()
	if len(command) == 0 {
		return wrap.Config{}, errors.New("no command given; pass one after --")
	}

	apiKey := ctx.String("api-key")
	logSource := ctx.String("log-source")

	if apiKey == "" {
		if ctx.IsSet("cron") || ctx.IsSet("heartbeat") {
			return wrap.Config{}, errors.New("--cron and --heartbeat require --api-key")
		}
		if ctx.IsSet("error") {
			return wrap.Config{}, errors.New("--error requires --api-key")
		}
		if logSource == "" {
			return wrap.Config{}, errors.New("--api-key is required unless --log-source is given")
		}
	}

	endpoint := ctx.String("endpoint")

	digest := ctx.String("digest")
	if digest == "" {
		digest = uuid.NewString()
	}

	host := ctx.String("hostname")
	if host == "" {
		host = hostname.Get()
	}

	origin := logs.OriginFromArgs(ctx.Bool("no-log"), ctx.Bool("no-stdout"), ctx.Bool("no-stderr"))
	errorEnabled := apiKey != "" && !ctx.Bool("no-error")

	warnDisabled(ctx, log, origin, errorEnabled)

	cfg := wrap.Config{Command: command}

	if origin != logs.OriginNone {
		logKey := logSource
		if logKey == "" {
			logKey = apiKey
		}
		group := ctx.String("log")
		if group == "" {
			group = "process"
		}
		attributes := map[string]string{
			"appsignal-wrap-digest": digest,
			"command":               strings.Join(command, " "),
		}
		if revision := ctx.String("revision"); revision != "" {
			attributes["revision"] = revision
		}
		cfg.Logs = &logs.Config{
			APIKey:     logKey,
			Endpoint:   endpoint,
			Hostname:   host,
			Group:      group,
			Origin:     origin,
			Attributes: attributes,
		}
	}

	if identifier := ctx.String("cron"); identifier != "" {
		cfg.Cron = &checkin.CronConfig{
			CheckIn: checkin.Config{APIKey: apiKey, Endpoint: endpoint, Identifier: identifier},
			Digest:  digest,
		}
	}

	if identifier := ctx.String("heartbeat"); identifier != "" {
		cfg.Heartbeat = &checkin.HeartbeatConfig{
			CheckIn: checkin.Config{APIKey: apiKey, Endpoint: endpoint, Identifier: identifier},
		}
	}

	if errorEnabled {
		cfg.Error = &errorreport.Config{
			APIKey:   apiKey,
			Endpoint: endpoint,
			Action:   errorAction(ctx, command),
			Hostname: host,
			Digest:   digest,
		}
	}

	return cfg, nil
}

// errorAction resolves the action name failure reports are filed under.
func errorAction(ctx *cli.Context, command []string) string {
	if action := ctx.String("error"); action != "" {
		return action
	}
	if identifier := ctx.String("cron"); identifier != "" {
		return identifier
	}
	if identifier := ctx.String("heartbeat"); identifier != "" {
		return identifier
	}
	return filepath.Base(command[0])
}

func warnDisabled(ctx *cli.Context, log *zap.SugaredLogger, origin logs.Origin, errorEnabled bool) {
	if origin != logs.OriginNone {
		return
	}

	var using string
	switch {
	case ctx.Bool("no-log"):
		using = "--no-log"
	case ctx.Bool("no-stdout") && ctx.Bool("no-stderr"):
		using = "--no-stdout and --no-stderr"
	default:
		return
	}

	if ctx.IsSet("log") {
		log.Warnf("using %s alongside --log; no logs will be sent to AppSignal", using)
	} else if ctx.IsSet("log-source") {
		log.Warnf("using %s alongside --log-source; no logs will be sent to AppSignal", using)
	}

	if ctx.String("cron") == "" && ctx.String("heartbeat") == "" && !errorEnabled {
		log.Warnf("using %s without check-ins or error reporting; no data will be sent to AppSignal", using)
	}
}

// newLogger builds the wrapper's own diagnostic logger. It writes to
// standard error only, keeping the child's mirrored standard output
// byte-clean. The level comes from APPSIGNAL_LOG_LEVEL, defaulting to info.
func newLogger() *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if value := os.Getenv("APPSIGNAL_LOG_LEVEL"); value != "" {
		if parsed, err := zapcore.ParseLevel(value); err == nil {
			level = parsed
		}
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	return zap.New(core).Named("appsignal-wrap").Sugar()
}
