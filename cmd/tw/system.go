package main

import (
	"fmt"
	"io"

	"github.com/tradewind/tradewind/internal/agent"
	"github.com/tradewind/tradewind/internal/bus"
	"github.com/tradewind/tradewind/internal/catalog"
	"github.com/tradewind/tradewind/internal/compliance"
	"github.com/tradewind/tradewind/internal/config"
	"github.com/tradewind/tradewind/internal/learning"
	"github.com/tradewind/tradewind/internal/negotiation"
	"github.com/tradewind/tradewind/internal/notify"
	"github.com/tradewind/tradewind/internal/notify/discord"
	"github.com/tradewind/tradewind/internal/notify/slack"
	"github.com/tradewind/tradewind/internal/sourcing"
	"github.com/tradewind/tradewind/internal/supervisor"
	"github.com/tradewind/tradewind/internal/trace"
	"gorm.io/gorm"
)

// system wires the bus, the four agents, the learning engine, and the
// tracer into one running assembly.
type system struct {
	cfg      *config.Config
	bus      *bus.Bus
	engine   *learning.Engine
	analyzer *learning.Analyzer
	sup      *supervisor.Agent
	tracer   *trace.Tracer
	desk     *agent.MockAgent
}

// buildSystem assembles and registers everything. The caller starts the bus.
func buildSystem(cfg *config.Config, gormDB *gorm.DB, out io.Writer, notifier notify.Notifier) (*system, error) {
	sampler := agent.NewSampler(cfg.Seed)
	cat := catalog.FromConfig(cfg.Suppliers)

	engine, err := learning.New(learning.Opts{DB: gormDB})
	if err != nil {
		return nil, err
	}
	var analyzer *learning.Analyzer
	if gormDB != nil {
		if analyzer, err = learning.NewAnalyzer(gormDB); err != nil {
			return nil, err
		}
	}

	b := bus.New(bus.Opts{DB: gormDB, Out: out})

	sup, err := supervisor.New(supervisor.Opts{
		Config:   cfg.Supervisor,
		Bus:      b,
		Engine:   engine,
		DB:       gormDB,
		Notifier: notifier,
		Out:      out,
	})
	if err != nil {
		return nil, err
	}
	src, err := sourcing.New(sourcing.Opts{
		Config:  cfg.Sourcing,
		Catalog: cat,
		Engine:  engine,
		Sampler: sampler,
		Out:     out,
	})
	if err != nil {
		return nil, err
	}
	comp, err := compliance.New(compliance.Opts{
		Config: cfg.Compliance,
		Engine: engine,
		Out:    out,
	})
	if err != nil {
		return nil, err
	}
	neg, err := negotiation.New(negotiation.Opts{
		Config:  cfg.Negotiation,
		Engine:  engine,
		Sampler: sampler,
		Out:     out,
	})
	if err != nil {
		return nil, err
	}

	// The desk is the edge endpoint terminal responses land on.
	desk := &agent.MockAgent{AgentID: supervisor.DefaultRequester, AgentRole: agent.RoleExternal}

	for _, h := range []agent.Handler{sup, src, comp, neg, desk} {
		if err := b.Register(h); err != nil {
			return nil, err
		}
	}

	tracer, err := trace.New(trace.Opts{Config: cfg.Trace, Bus: b, Sup: sup, Notifier: notifier, Out: out})
	if err != nil {
		return nil, err
	}

	return &system{cfg: cfg, bus: b, engine: engine, analyzer: analyzer, sup: sup, tracer: tracer, desk: desk}, nil
}

// newNotifier builds the configured platform notifier. Returns
// notify.ErrNoPlatform when the config names none; callers decide whether
// running silent is acceptable.
func newNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	switch cfg.Platform {
	case "":
		return nil, notify.ErrNoPlatform
	case "slack":
		return slack.New(slack.Opts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
	case "discord":
		return discord.New(discord.Opts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
	default:
		return nil, fmt.Errorf("unknown notify platform %q", cfg.Platform)
	}
}

// loadConfig reads the config file, or returns defaults when path is empty
// and the default file is absent.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
