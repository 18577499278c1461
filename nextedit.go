// Package nextedit assembles a suggestion provider from host-supplied
// capabilities.
//
// CreateProvider binds the host's workspace, fetcher, token supplier and
// telemetry sender into a capability builder together with the default
// factories for everything else (API client, remote edit engine, reporter,
// metrics). Required capabilities that the host leaves unset surface as a
// *capability.ConfigurationError naming the capability.
package nextedit

import (
	"log/slog"

	"github.com/ggoodman/nextedit-go/auth"
	"github.com/ggoodman/nextedit-go/capability"
	"github.com/ggoodman/nextedit-go/config"
	"github.com/ggoodman/nextedit-go/exclusion"
	"github.com/ggoodman/nextedit-go/fetch"
	"github.com/ggoodman/nextedit-go/ghapi"
	"github.com/ggoodman/nextedit-go/internal/logctx"
	"github.com/ggoodman/nextedit-go/internal/metrics"
	"github.com/ggoodman/nextedit-go/langctx"
	"github.com/ggoodman/nextedit-go/remoteedit"
	"github.com/ggoodman/nextedit-go/suggestion"
	"github.com/ggoodman/nextedit-go/telemetry"
	"github.com/ggoodman/nextedit-go/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Options are the host's capabilities. Workspace, Fetcher, Tokens and
// TelemetrySender are required.
type Options struct {
	Workspace       workspace.View
	Fetcher         fetch.Fetcher
	Tokens          auth.TokenProvider
	TelemetrySender telemetry.Sender

	// LogHandler receives structured logs. Nil discards them.
	LogHandler      slog.Handler
	Exclusion       exclusion.Policy
	LanguageContext langctx.Provider
	// Config defaults to the zero Config, which selects built-in defaults.
	Config *config.Config
	// Engine replaces the remote edit engine.
	Engine suggestion.EditEngine
	// MetricsRegisterer enables Prometheus metrics.
	MetricsRegisterer prometheus.Registerer
}

var (
	keyLogger    = capability.NewKey[*slog.Logger]("logger")
	keyWorkspace = capability.NewKey[workspace.View]("workspace")
	keyFetcher   = capability.NewKey[fetch.Fetcher]("fetcher")
	keyTokens    = capability.NewKey[auth.TokenProvider]("tokens")
	keySender    = capability.NewKey[telemetry.Sender]("telemetrySender")
	keyExclusion = capability.NewKey[exclusion.Policy]("exclusion")
	keyLangCtx   = capability.NewKey[langctx.Provider]("languageContext")
	keyConfig    = capability.NewKey[*config.Config]("config")
	keyMetrics   = capability.NewKey[*metrics.Collector]("metrics")
	keyClient    = capability.NewKey[*ghapi.Client]("apiClient")
	keyService   = capability.NewKey[*ghapi.Service]("apiService")
	keyReporter  = capability.NewKey[*telemetry.Reporter]("telemetryReporter")
	keyEngine    = capability.NewKey[suggestion.EditEngine]("editEngine")
)

var providerFactory = capability.Factory[*suggestion.Provider]{
	Deps: []capability.Dependency{keyEngine, keyWorkspace, keyReporter, keyLogger, keyMetrics},
	New: func(s capability.Scope) (*suggestion.Provider, error) {
		engine, err := capability.Get(s, keyEngine)
		if err != nil {
			return nil, err
		}
		ws, err := capability.Get(s, keyWorkspace)
		if err != nil {
			return nil, err
		}
		reporter, err := capability.Get(s, keyReporter)
		if err != nil {
			return nil, err
		}
		log, err := capability.Get(s, keyLogger)
		if err != nil {
			return nil, err
		}
		m, err := capability.Get(s, keyMetrics)
		if err != nil {
			return nil, err
		}
		return suggestion.NewProvider(engine, ws, reporter,
			suggestion.WithLogger(log.With(slog.String("component", "suggestion"))),
			suggestion.WithMetrics(m),
		), nil
	},
}

// CreateProvider composes a suggestion provider from opts. Callers must Close
// it to release the engine's workspace subscription.
func CreateProvider(opts Options) (*suggestion.Provider, error) {
	r, err := compose(opts)
	if err != nil {
		return nil, err
	}
	return capability.CreateInstance(r, providerFactory)
}

// CreateAPIService composes the validated API service from opts. Only
// Fetcher and Tokens are required.
func CreateAPIService(opts Options) (*ghapi.Service, error) {
	if opts.Workspace == nil {
		opts.Workspace = workspace.NewMemory()
	}
	if opts.TelemetrySender == nil {
		opts.TelemetrySender = telemetry.SenderFunc(func(string, map[string]string, map[string]float64) {})
	}
	r, err := compose(opts)
	if err != nil {
		return nil, err
	}
	return capability.Resolve(r, keyService)
}

func compose(opts Options) (*capability.Resolver, error) {
	log := slog.New(logctx.Wrap(opts.LogHandler))
	b := capability.NewBuilder(capability.WithLogger(log))

	capability.DefineValue(b, keyLogger, log)
	if opts.Workspace != nil {
		capability.DefineValue(b, keyWorkspace, opts.Workspace)
	}
	if opts.Fetcher != nil {
		capability.DefineValue(b, keyFetcher, opts.Fetcher)
	}
	if opts.Tokens != nil {
		capability.DefineValue(b, keyTokens, opts.Tokens)
	}
	if opts.TelemetrySender != nil {
		capability.DefineValue(b, keySender, opts.TelemetrySender)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	capability.DefineValue(b, keyConfig, cfg)

	excl := opts.Exclusion
	if excl == nil {
		excl = exclusion.Null{}
		if len(cfg.Exclude) > 0 {
			excl = exclusion.Patterns(cfg.Exclude)
		}
	}
	capability.DefineValue(b, keyExclusion, excl)

	lc := opts.LanguageContext
	if lc == nil {
		lc = langctx.Null{}
	}
	capability.DefineValue(b, keyLangCtx, lc)

	capability.Define(b, keyMetrics, capability.Factory[*metrics.Collector]{
		New: func(capability.Scope) (*metrics.Collector, error) {
			if opts.MetricsRegisterer == nil {
				return nil, nil
			}
			return metrics.New("nextedit", opts.MetricsRegisterer)
		},
	})
	capability.Define(b, keyClient, clientFactory)
	capability.Define(b, keyService, serviceFactory)
	capability.Define(b, keyReporter, reporterFactory)
	if opts.Engine != nil {
		capability.DefineValue(b, keyEngine, opts.Engine)
	} else {
		capability.Define(b, keyEngine, engineFactory)
	}

	return b.Seal()
}

var clientFactory = capability.Factory[*ghapi.Client]{
	Deps: []capability.Dependency{keyFetcher, keyConfig, keyLogger, keyMetrics},
	New: func(s capability.Scope) (*ghapi.Client, error) {
		f, err := capability.Get(s, keyFetcher)
		if err != nil {
			return nil, err
		}
		cfg, err := capability.Get(s, keyConfig)
		if err != nil {
			return nil, err
		}
		log, err := capability.Get(s, keyLogger)
		if err != nil {
			return nil, err
		}
		m, err := capability.Get(s, keyMetrics)
		if err != nil {
			return nil, err
		}
		opts := []ghapi.Option{
			ghapi.WithLogger(log.With(slog.String("component", "ghapi"))),
			ghapi.WithDotcomURL(cfg.DotcomURL),
			ghapi.WithAgentsURL(cfg.AgentsURL),
			ghapi.WithUserAgent(cfg.UserAgent),
			ghapi.WithRateLimit(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		}
		if cfg.APIVersion != "" {
			opts = append(opts, ghapi.WithAPIVersion(cfg.APIVersion))
		}
		if m != nil {
			opts = append(opts, ghapi.WithMetrics(m))
		}
		return ghapi.New(f, opts...), nil
	},
}

var serviceFactory = capability.Factory[*ghapi.Service]{
	Deps: []capability.Dependency{keyClient, keyTokens, keyLogger},
	New: func(s capability.Scope) (*ghapi.Service, error) {
		c, err := capability.Get(s, keyClient)
		if err != nil {
			return nil, err
		}
		tokens, err := capability.Get(s, keyTokens)
		if err != nil {
			return nil, err
		}
		log, err := capability.Get(s, keyLogger)
		if err != nil {
			return nil, err
		}
		return ghapi.NewService(c, tokens, ghapi.WithServiceLogger(log.With(slog.String("component", "ghapi")))), nil
	},
}

var reporterFactory = capability.Factory[*telemetry.Reporter]{
	Deps: []capability.Dependency{keySender, keyLogger},
	New: func(s capability.Scope) (*telemetry.Reporter, error) {
		sender, err := capability.Get(s, keySender)
		if err != nil {
			return nil, err
		}
		log, err := capability.Get(s, keyLogger)
		if err != nil {
			return nil, err
		}
		return telemetry.NewReporter(sender, telemetry.WithLogger(log.With(slog.String("component", "telemetry")))), nil
	},
}

var engineFactory = capability.Factory[suggestion.EditEngine]{
	Deps: []capability.Dependency{keyClient, keyTokens, keyExclusion, keyLangCtx, keyWorkspace, keyConfig, keyLogger},
	New: func(s capability.Scope) (suggestion.EditEngine, error) {
		c, err := capability.Get(s, keyClient)
		if err != nil {
			return nil, err
		}
		tokens, err := capability.Get(s, keyTokens)
		if err != nil {
			return nil, err
		}
		excl, err := capability.Get(s, keyExclusion)
		if err != nil {
			return nil, err
		}
		lc, err := capability.Get(s, keyLangCtx)
		if err != nil {
			return nil, err
		}
		ws, err := capability.Get(s, keyWorkspace)
		if err != nil {
			return nil, err
		}
		cfg, err := capability.Get(s, keyConfig)
		if err != nil {
			return nil, err
		}
		log, err := capability.Get(s, keyLogger)
		if err != nil {
			return nil, err
		}
		return remoteedit.New(c, tokens, remoteedit.Config{
			CompletionsURL: cfg.CompletionsURL,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
		},
			remoteedit.WithLogger(log.With(slog.String("component", "remoteedit"))),
			remoteedit.WithExclusion(excl),
			remoteedit.WithLanguageContext(lc),
			remoteedit.WithWorkspace(ws),
		), nil
	},
}
