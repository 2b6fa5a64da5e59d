package types

import "strings"

// LogConf contains logging specific configuration.
type LogConf struct {
	Level string `ini:"level"`
}

// FetchConf controls subscription retrieval.
type FetchConf struct {
	TimeoutSeconds int `ini:"timeout_seconds"`
}

// ProbeConf controls the reachability tests.
type ProbeConf struct {
	TimeoutSeconds int    `ini:"timeout_seconds"`
	Concurrency    int    `ini:"concurrency"`
	Estimator      string `ini:"estimator"` // "reconnect", "handshake" or "none"
}

// SelectConf controls per-protocol ranking and truncation.
type SelectConf struct {
	MaxPerType      int    `ini:"max_per_type"`
	ModernProtocols string `ini:"modern_protocols"` // comma-separated protocol tags
}

// OutputConf controls where the generated document is written.
type OutputConf struct {
	Path string `ini:"path"`
}

// PipelineConf controls run-wide behavior.
type PipelineConf struct {
	DeadlineSeconds int `ini:"deadline_seconds"`

	// InjectFallback, when enabled together with FallbackAddr ("host:port"),
	// adds one plain http candidate if every source yields zero descriptors.
	InjectFallback bool   `ini:"inject_fallback"`
	FallbackAddr   string `ini:"fallback_addr"`
}

// Config is the unified behavior configuration, mapped from subpilot.ini.
type Config struct {
	LogConf      `ini:"log"`
	FetchConf    `ini:"fetch"`
	ProbeConf    `ini:"probe"`
	SelectConf   `ini:"select"`
	OutputConf   `ini:"output"`
	PipelineConf `ini:"pipeline"`
}

// ApplyDefaults fills zero values with the documented defaults so a sparse
// ini file still produces a runnable configuration.
func (c *Config) ApplyDefaults() {
	if c.LogConf.Level == "" {
		c.LogConf.Level = "info"
	}
	if c.FetchConf.TimeoutSeconds <= 0 {
		c.FetchConf.TimeoutSeconds = 8
	}
	if c.ProbeConf.TimeoutSeconds <= 0 {
		c.ProbeConf.TimeoutSeconds = 5
	}
	if c.ProbeConf.Concurrency <= 0 {
		c.ProbeConf.Concurrency = 20
	}
	if c.ProbeConf.Estimator == "" {
		c.ProbeConf.Estimator = "reconnect"
	}
	if c.SelectConf.MaxPerType <= 0 {
		c.SelectConf.MaxPerType = 3
	}
	if c.SelectConf.ModernProtocols == "" {
		c.SelectConf.ModernProtocols = "hysteria2,shadowsocks,vmess,tuic,trojan"
	}
	if c.OutputConf.Path == "" {
		c.OutputConf.Path = "sing-box-config.json"
	}
	if c.PipelineConf.DeadlineSeconds <= 0 {
		c.PipelineConf.DeadlineSeconds = 120
	}
}

// ModernProtocolList splits the configured modern protocol set.
func (c *SelectConf) ModernProtocolList() []string {
	parts := strings.Split(c.ModernProtocols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Source is one subscription reference from sources.json.
type Source struct {
	URL string `json:"url"`

	// Format is an optional decoding hint: "json", "text" or "html".
	// When empty the payload content decides.
	Format string `json:"format,omitempty"`
}
