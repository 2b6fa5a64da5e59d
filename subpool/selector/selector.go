package selector

import (
	"sort"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

// Table is the per-protocol, rank-truncated selection. Protocols holds the
// group keys in deterministic (lexicographic) order; the table is read-only
// after Select returns.
type Table struct {
	Protocols []model.Protocol
	Groups    map[model.Protocol][]*model.ProbeResult
}

// Empty reports whether no result survived selection.
func (t Table) Empty() bool {
	return len(t.Protocols) == 0
}

// Selector groups probe results by protocol, applies the modern-over-http
// policy, ranks deterministically and truncates each group.
type Selector struct {
	maxPerType int
	modern     map[model.Protocol]struct{}
	log        zerolog.Logger
}

func New(cfg types.SelectConf, log zerolog.Logger) *Selector {
	modern := make(map[model.Protocol]struct{})
	for _, name := range cfg.ModernProtocolList() {
		if proto, ok := model.ParseProtocol(name); ok {
			modern[proto] = struct{}{}
		} else {
			log.Warn().Str("protocol", name).Msg("Ignoring unknown protocol in modern set.")
		}
	}
	return &Selector{
		maxPerType: cfg.MaxPerType,
		modern:     modern,
		log:        log,
	}
}

// Select builds the selection table. Identical inputs always produce an
// identical table: ranking sorts by score descending, then latency ascending,
// then host ascending, and group order is lexicographic.
func (s *Selector) Select(results []*model.ProbeResult) Table {
	groups := make(map[model.Protocol][]*model.ProbeResult)
	for _, r := range results {
		proto := r.Descriptor.Protocol
		groups[proto] = append(groups[proto], r)
	}

	// Plaintext http proxies are strictly a fallback tier: drop them as soon
	// as any modern-protocol group is populated.
	if s.hasModern(groups) {
		if dropped := groups[model.ProtocolHTTP]; len(dropped) > 0 {
			s.log.Info().Int("count", len(dropped)).Msg("Dropping http group, modern protocols available.")
		}
		delete(groups, model.ProtocolHTTP)
	}

	table := Table{Groups: make(map[model.Protocol][]*model.ProbeResult)}
	for proto, group := range groups {
		ranked := rankAndDedupe(group)
		if len(ranked) > s.maxPerType {
			ranked = ranked[:s.maxPerType]
		}
		if len(ranked) == 0 {
			continue
		}
		table.Groups[proto] = ranked
		table.Protocols = append(table.Protocols, proto)
	}

	sort.Slice(table.Protocols, func(i, j int) bool {
		return table.Protocols[i] < table.Protocols[j]
	})

	for _, proto := range table.Protocols {
		s.log.Info().Str("protocol", string(proto)).Int("selected", len(table.Groups[proto])).Msg("Group selected.")
	}
	return table
}

func (s *Selector) hasModern(groups map[model.Protocol][]*model.ProbeResult) bool {
	for proto, group := range groups {
		if _, ok := s.modern[proto]; ok && len(group) > 0 {
			return true
		}
	}
	return false
}

// rankAndDedupe sorts one group into its total order and keeps only the
// best-ranked result per (protocol, host, port) endpoint.
func rankAndDedupe(group []*model.ProbeResult) []*model.ProbeResult {
	ranked := make([]*model.ProbeResult, len(group))
	copy(ranked, group)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].LatencyMs != ranked[j].LatencyMs {
			return ranked[i].LatencyMs < ranked[j].LatencyMs
		}
		return ranked[i].Descriptor.Host < ranked[j].Descriptor.Host
	})

	seen := make(map[string]struct{}, len(ranked))
	deduped := ranked[:0]
	for _, r := range ranked {
		key := r.Descriptor.Endpoint()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped
}
