/*
Package log provides structured logging for sheetsite using zerolog.

The package wraps zerolog with a global logger, field-tagged child loggers
and an Errorf helper for one-line failures. Every other package
logs through it, so level and output format are controlled in one place
(the serve command wires them from the config file).

# Log Levels

Debug:
  - Per-call traces: throttled store calls, cache hits, signal batches
  - Example: "store call completed table=pages"

Info:
  - Lifecycle: server started, configuration loaded, signals flushed

Warn:
  - Tolerated content problems: smart-quoted JSON that still fails to parse,
    dangling layout ids, unknown component types, mock fallback in use

Error:
  - Transport failures and dropped writes (leads, signal batches)

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stdout,
	})

Component Loggers:

	logger := log.WithComponent("resolver")
	logger.Warn().Str("slug", slug).Msg("remote store unreachable, using mock content")

Context Logger Helpers:

	pageLog := log.WithSlug("/areas/bondi")
	pageLog.Debug().Msg("page resolved")

	tableLog := log.WithTable("signals")
	tableLog.Error().Err(err).Msg("insert failed")

Before Init is called the logger writes JSON to stderr, so packages used from
tests log without any setup.
*/
package log
