package main

import (
	"context"
	"os"
	"time"

	"github.com/jingkaihe/rulesmgr/pkg/config"
	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/telemetry"
	"github.com/jingkaihe/rulesmgr/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracingShutdownTimeout = 5 * time.Second

// shutdownTracing flushes spans; replaced by initTracing when tracing is on.
var shutdownTracing telemetry.ShutdownFunc = func(context.Context) error { return nil }

// initTracing installs the tracer provider described by cfg.
func initTracing(ctx context.Context, cfg config.TracingConfig) error {
	shutdown, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        cfg.Enabled,
		ServiceName:    "rulesmgr",
		ServiceVersion: version.Get().Version,
		SamplerType:    cfg.Sampler,
		SamplerRatio:   cfg.Ratio,
	})
	if err != nil {
		return err
	}
	shutdownTracing = shutdown
	return nil
}

// flushTracing pushes pending spans out, even when ctx is already cancelled.
func flushTracing(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracingShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to flush traces")
	}
}

// withTracing wraps the Run of cmd and of all its subcommands in a
// cli.command span.
func withTracing(cmd *cobra.Command) *cobra.Command {
	for _, sub := range cmd.Commands() {
		withTracing(sub)
	}
	if cmd.Run == nil {
		return cmd
	}

	originalRun := cmd.Run
	cmd.Run = func(cmd *cobra.Command, args []string) {
		ctx, span := telemetry.Tracer("rulesmgr.cli").Start(
			cmd.Context(),
			"cli.command",
			trace.WithAttributes(commandAttributes(cmd, args)...),
		)
		defer span.End()

		cmd.SetContext(ctx)
		originalRun(cmd, args)
		span.SetStatus(codes.Ok, "")
	}
	return cmd
}

func commandAttributes(cmd *cobra.Command, args []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.Name()),
		attribute.String("command.path", cmd.CommandPath()),
		attribute.Int("args.count", len(args)),
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
	})
	return attrs
}

// exitWithError marks the command span failed, flushes traces and exits, as
// deferred span ends never run past os.Exit.
func exitWithError(ctx context.Context, err error) {
	telemetry.RecordError(ctx, err)
	trace.SpanFromContext(ctx).End()
	flushTracing(ctx)
	os.Exit(1)
}
