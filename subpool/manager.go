package subpool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
	"subpilot/subpool/emitter"
	"subpilot/subpool/fetcher"
	"subpilot/subpool/model"
	"subpilot/subpool/parser"
	"subpilot/subpool/prober"
	"subpilot/subpool/selector"
)

// Manager wires the pipeline stages and runs them once:
// fetch -> parse -> probe -> select -> emit.
type Manager struct {
	cfg     *types.Config
	sources []types.Source

	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	prober   *prober.Prober
	selector *selector.Selector
	emitter  *emitter.Emitter
	log      zerolog.Logger
}

// NewManager builds a manager with component loggers derived from base.
func NewManager(cfg *types.Config, sources []types.Source, base zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		sources:  sources,
		fetcher:  fetcher.New(cfg.FetchConf, base.With().Str("component", "SubPool/Fetcher").Logger()),
		parser:   parser.New(base.With().Str("component", "SubPool/Parser").Logger()),
		prober:   prober.New(cfg.ProbeConf, base.With().Str("component", "SubPool/Prober").Logger()),
		selector: selector.New(cfg.SelectConf, base.With().Str("component", "SubPool/Selector").Logger()),
		emitter:  emitter.New(cfg.OutputConf, cfg.LogConf.Level, base.With().Str("component", "SubPool/Emitter").Logger()),
		log:      base.With().Str("component", "SubPool/Manager").Logger(),
	}
}

// Run executes one full pipeline cycle. Every stage is total; the only error
// Run can return is a persistence failure.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Int("sources", len(m.sources)).Msg("Starting update cycle...")

	payloads := m.fetcher.FetchAll(ctx, m.sources)

	var descriptors []model.Descriptor
	for _, p := range payloads {
		descriptors = append(descriptors, m.parser.Parse(p.Source, p.Body)...)
	}
	m.log.Info().Int("fetched", len(payloads)).Int("descriptors", len(descriptors)).Msg("Parsing finished.")

	if len(descriptors) == 0 {
		if d, ok := m.fallbackDescriptor(); ok {
			m.log.Warn().Str("addr", d.Addr()).Msg("No descriptors fetched, injecting configured fallback.")
			descriptors = append(descriptors, d)
		} else {
			m.log.Warn().Msg("No descriptors fetched from any source.")
		}
	}

	results := m.prober.TestAll(ctx, descriptors)
	table := m.selector.Select(results)
	if table.Empty() {
		m.log.Warn().Msg("No proxies survived selection, emitting terminals only.")
	}

	doc := m.emitter.Build(table)
	if err := m.emitter.Persist(doc); err != nil {
		return fmt.Errorf("persistence failed: %w", err)
	}

	m.log.Info().Msg("Update cycle finished.")
	return nil
}

// fallbackDescriptor builds the configured empty-fetch fallback, if any.
// Injection is an explicit opt-in, never an implicit default.
func (m *Manager) fallbackDescriptor() (model.Descriptor, bool) {
	pc := m.cfg.PipelineConf
	if !pc.InjectFallback || pc.FallbackAddr == "" {
		return model.Descriptor{}, false
	}

	host, portStr, found := strings.Cut(pc.FallbackAddr, ":")
	if !found {
		m.log.Warn().Str("fallback_addr", pc.FallbackAddr).Msg("Invalid fallback_addr, expected host:port.")
		return model.Descriptor{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		m.log.Warn().Str("fallback_addr", pc.FallbackAddr).Msg("Invalid fallback_addr port.")
		return model.Descriptor{}, false
	}

	d := model.Descriptor{
		Protocol: model.ProtocolHTTP,
		Host:     host,
		Port:     port,
		Source:   "fallback",
	}
	if !d.Valid() {
		m.log.Warn().Str("fallback_addr", pc.FallbackAddr).Msg("Invalid fallback_addr endpoint.")
		return model.Descriptor{}, false
	}
	return d, true
}
