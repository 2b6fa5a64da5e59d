package selector

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

func newTestSelector(maxPerType int) *Selector {
	cfg := types.SelectConf{
		MaxPerType:      maxPerType,
		ModernProtocols: "hysteria2,shadowsocks,vmess,tuic,trojan",
	}
	return New(cfg, zerolog.Nop())
}

func result(proto model.Protocol, host string, port int, score, latency float64) *model.ProbeResult {
	return &model.ProbeResult{
		Descriptor: model.Descriptor{Protocol: proto, Host: host, Port: port},
		LatencyMs:  latency,
		Score:      score,
	}
}

func TestSelect_TruncatesToMaxPerType(t *testing.T) {
	s := newTestSelector(3)

	var results []*model.ProbeResult
	for i := 0; i < 5; i++ {
		results = append(results, result(model.ProtocolVMess, fmt.Sprintf("host-%d", i), 443, float64(10+i), 10))
	}

	table := s.Select(results)

	group := table.Groups[model.ProtocolVMess]
	if len(group) != 3 {
		t.Fatalf("expected group of 3, got %d", len(group))
	}
	for i := 1; i < len(group); i++ {
		if group[i].Score > group[i-1].Score {
			t.Errorf("group not score-descending at index %d", i)
		}
	}
	if group[0].Descriptor.Host != "host-4" {
		t.Errorf("expected best-scored entry first, got %s", group[0].Descriptor.Host)
	}
}

func TestSelect_DropsHTTPWhenModernPresent(t *testing.T) {
	s := newTestSelector(3)

	table := s.Select([]*model.ProbeResult{
		result(model.ProtocolHTTP, "legacy.example.com", 8080, 900, 1),
		result(model.ProtocolHysteria2, "modern.example.com", 443, 10, 500),
	})

	if _, ok := table.Groups[model.ProtocolHTTP]; ok {
		t.Fatal("http group must be dropped when a modern group is non-empty")
	}
	if len(table.Groups[model.ProtocolHysteria2]) != 1 {
		t.Fatal("modern group must survive")
	}
}

func TestSelect_KeepsHTTPWhenAlone(t *testing.T) {
	s := newTestSelector(3)

	table := s.Select([]*model.ProbeResult{
		result(model.ProtocolHTTP, "legacy.example.com", 8080, 50, 20),
	})

	if len(table.Groups[model.ProtocolHTTP]) != 1 {
		t.Fatal("http group must survive when no modern group exists")
	}
}

func TestSelect_TieBreaksAreDeterministic(t *testing.T) {
	s := newTestSelector(5)

	// Equal scores, then equal latencies: order must settle on latency then
	// host, regardless of input order.
	build := func(reversed bool) []*model.ProbeResult {
		results := []*model.ProbeResult{
			result(model.ProtocolTrojan, "b.example.com", 443, 100, 5),
			result(model.ProtocolTrojan, "a.example.com", 443, 100, 5),
			result(model.ProtocolTrojan, "c.example.com", 443, 100, 2),
		}
		if reversed {
			for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
				results[i], results[j] = results[j], results[i]
			}
		}
		return results
	}

	hosts := func(table Table) []string {
		var out []string
		for _, r := range table.Groups[model.ProtocolTrojan] {
			out = append(out, r.Descriptor.Host)
		}
		return out
	}

	first := hosts(s.Select(build(false)))
	second := hosts(s.Select(build(true)))

	want := []string{"c.example.com", "a.example.com", "b.example.com"}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("unexpected order: %v, want %v", first, want)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("order depends on input order: %v vs %v", first, second)
	}
}

func TestSelect_RepeatedRunsIdentical(t *testing.T) {
	s := newTestSelector(3)
	results := []*model.ProbeResult{
		result(model.ProtocolShadowsocks, "s1.example.com", 8388, 40, 10),
		result(model.ProtocolShadowsocks, "s2.example.com", 8388, 70, 3),
		result(model.ProtocolVMess, "v1.example.com", 443, 55, 7),
	}

	first := s.Select(results)
	second := s.Select(results)

	if !reflect.DeepEqual(first.Protocols, second.Protocols) {
		t.Fatalf("protocol order differs: %v vs %v", first.Protocols, second.Protocols)
	}
	if !reflect.DeepEqual(first.Groups, second.Groups) {
		t.Fatal("groups differ between identical runs")
	}
}

func TestSelect_DedupesEndpointTriples(t *testing.T) {
	s := newTestSelector(5)

	// Same (protocol, host, port) from two sources; only one survives.
	a := result(model.ProtocolTrojan, "dup.example.com", 443, 80, 10)
	a.Descriptor.Source = "source-a"
	b := result(model.ProtocolTrojan, "dup.example.com", 443, 60, 20)
	b.Descriptor.Source = "source-b"

	table := s.Select([]*model.ProbeResult{a, b})

	group := table.Groups[model.ProtocolTrojan]
	if len(group) != 1 {
		t.Fatalf("expected 1 entry after dedupe, got %d", len(group))
	}
	if group[0].Score != 80 {
		t.Errorf("expected the best-ranked duplicate to survive, got score %f", group[0].Score)
	}
}

func TestSelect_EmptyInput(t *testing.T) {
	s := newTestSelector(3)
	table := s.Select(nil)

	if !table.Empty() {
		t.Fatal("expected empty table")
	}
}

func TestSelect_ProtocolOrderIsSorted(t *testing.T) {
	s := newTestSelector(3)
	table := s.Select([]*model.ProbeResult{
		result(model.ProtocolVMess, "v.example.com", 443, 10, 10),
		result(model.ProtocolHysteria2, "h.example.com", 443, 10, 10),
		result(model.ProtocolShadowsocks, "s.example.com", 443, 10, 10),
	})

	want := []model.Protocol{model.ProtocolHysteria2, model.ProtocolShadowsocks, model.ProtocolVMess}
	if !reflect.DeepEqual(table.Protocols, want) {
		t.Fatalf("unexpected protocol order: %v", table.Protocols)
	}
}
