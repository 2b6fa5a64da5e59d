package emitter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
	"subpilot/subpool/selector"
)

// Defaults applied when a descriptor omits a protocol-specific field.
const (
	DefaultShadowsocksMethod = "2022-blake3-aes-256-gcm"
	DefaultHysteria2Mbps     = 100
	DefaultVMessTransport    = "grpc"
)

// defaultTagPriority decides the selector's default outbound: the first
// protocol in this order with a non-empty group wins, then first-available.
var defaultTagPriority = []model.Protocol{
	model.ProtocolHysteria2,
	model.ProtocolShadowsocks,
	model.ProtocolVMess,
	model.ProtocolTUIC,
	model.ProtocolTrojan,
}

// Emitter renders a selection table into the sing-box schema and persists it
// atomically. Persistence failure is the pipeline's only fatal error.
type Emitter struct {
	path     string
	logLevel string
	log      zerolog.Logger
}

func New(cfg types.OutputConf, logLevel string, log zerolog.Logger) *Emitter {
	return &Emitter{
		path:     cfg.Path,
		logLevel: logLevel,
		log:      log,
	}
}

// Build renders the document. An empty table still yields a valid document
// holding only the direct and block terminals.
func (e *Emitter) Build(table selector.Table) *Document {
	doc := &Document{Log: LogOptions{Level: e.logLevel}}

	var tags []string
	var entries []any
	for _, proto := range table.Protocols {
		for i, r := range table.Groups[proto] {
			tag := fmt.Sprintf("%s-%d", proto, i)
			tags = append(tags, tag)
			entries = append(entries, buildOutbound(tag, r.Descriptor))
		}
	}

	if len(tags) > 0 {
		doc.Outbounds = append(doc.Outbounds, SelectorOutbound{
			Outbound:  Outbound{Type: "selector", Tag: "proxy"},
			Outbounds: tags,
			Default:   defaultTag(table),
		})
	}
	doc.Outbounds = append(doc.Outbounds, entries...)
	doc.Outbounds = append(doc.Outbounds,
		Outbound{Type: "direct", Tag: "direct"},
		Outbound{Type: "block", Tag: "block"},
	)
	return doc
}

// Persist writes the document atomically: marshal to a sibling temp file,
// then rename over the target so a previous valid document is never left
// half-overwritten.
func (e *Emitter) Persist(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config document: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(e.path), "."+filepath.Base(e.path)+".tmp")
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config file %s: %w", e.path, err)
	}

	e.log.Info().Str("path", e.path).Int("outbounds", len(doc.Outbounds)).Msg("Config document written.")
	return nil
}

func defaultTag(table selector.Table) string {
	for _, proto := range defaultTagPriority {
		if len(table.Groups[proto]) > 0 {
			return fmt.Sprintf("%s-0", proto)
		}
	}
	if len(table.Protocols) > 0 {
		return fmt.Sprintf("%s-0", table.Protocols[0])
	}
	return ""
}

// buildOutbound maps one descriptor onto its typed outbound, filling the
// documented defaults for absent fields.
func buildOutbound(tag string, d model.Descriptor) any {
	base := ServerOutbound{
		Outbound: Outbound{Type: string(d.Protocol), Tag: tag},
		Server:   d.Host,
		Port:     d.Port,
	}

	switch d.Protocol {
	case model.ProtocolHysteria2:
		out := Hysteria2Outbound{ServerOutbound: base, UpMbps: DefaultHysteria2Mbps, DownMbps: DefaultHysteria2Mbps}
		if p := d.Hysteria2; p != nil {
			out.Password = p.Password
			if p.UpMbps > 0 {
				out.UpMbps = p.UpMbps
			}
			if p.DownMbps > 0 {
				out.DownMbps = p.DownMbps
			}
		}
		return out

	case model.ProtocolShadowsocks:
		out := ShadowsocksOutbound{ServerOutbound: base, Method: DefaultShadowsocksMethod}
		if p := d.Shadowsocks; p != nil {
			out.Password = p.Password
			if p.Method != "" {
				out.Method = p.Method
			}
		}
		return out

	case model.ProtocolVMess:
		out := VMessOutbound{ServerOutbound: base, Transport: TransportOptions{Type: DefaultVMessTransport}}
		if p := d.VMess; p != nil {
			out.UUID = p.UUID
			if p.Transport != "" {
				out.Transport = TransportOptions{Type: p.Transport, Path: p.Path, Host: p.Host}
			}
		}
		return out

	case model.ProtocolTUIC:
		out := TUICOutbound{ServerOutbound: base}
		if p := d.TUIC; p != nil {
			out.UUID = p.UUID
			out.Password = p.Password
		}
		return out

	case model.ProtocolTrojan:
		out := TrojanOutbound{ServerOutbound: base}
		if p := d.Trojan; p != nil {
			out.Password = p.Password
		}
		return out

	case model.ProtocolSOCKS:
		return SOCKSOutbound{ServerOutbound: base}

	default:
		return HTTPOutbound{ServerOutbound: base}
	}
}
