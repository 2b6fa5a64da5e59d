package parser

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

// Parser converts raw subscription payloads into normalized descriptors.
// It is total: any payload yields a (possibly empty) descriptor list, and a
// malformed entry never affects its siblings.
type Parser struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse decodes one payload. The strategy is resolved by the source's format
// hint when present, otherwise by sniffing the content.
func (p *Parser) Parse(src types.Source, body []byte) []model.Descriptor {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	switch {
	case src.Format == "json" || (src.Format == "" && (trimmed[0] == '[' || trimmed[0] == '{')):
		return p.parseJSON(src, trimmed)
	case src.Format == "html" || (src.Format == "" && looksLikeHTML(trimmed)):
		return p.parseHTML(src, trimmed)
	default:
		return p.parseText(src, trimmed)
	}
}

func looksLikeHTML(data []byte) bool {
	head := strings.ToLower(string(data[:min(64, len(data))]))
	return strings.HasPrefix(head, "<!doctype") ||
		strings.HasPrefix(head, "<html") ||
		strings.HasPrefix(head, "<table")
}

// flexPort accepts both JSON numbers and numeric strings; vmess payloads in
// the wild use either.
type flexPort int

func (f *flexPort) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexPort(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*f = flexPort(parsed)
	return nil
}

// rawEntry is the loose union of every descriptor field observed across the
// supported payload shapes (sing-box outbound objects and vmess share links).
type rawEntry struct {
	Type   string   `json:"type"`
	Server string   `json:"server"`
	Add    string   `json:"add"` // vmess share-link field for server
	Port   flexPort `json:"port"`
	Tag    string   `json:"tag"`
	PS     string   `json:"ps"` // vmess share-link field for remark

	Password string `json:"password"`
	Method   string `json:"method"`
	UUID     string `json:"uuid"`
	ID       string `json:"id"`  // vmess share-link field for uuid
	Net      string `json:"net"` // vmess share-link field for transport
	Path     string `json:"path"`
	Host     string `json:"host"`
	UpMbps   int    `json:"up_mbps"`
	DownMbps int    `json:"down_mbps"`

	Transport *struct {
		Type string `json:"type"`
		Path string `json:"path"`
		Host string `json:"host"`
	} `json:"transport"`
}

func (p *Parser) parseJSON(src types.Source, data []byte) []model.Descriptor {
	if data[0] == '[' {
		var entries []rawEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			p.log.Warn().Err(err).Str("url", src.URL).Msg("Failed to decode JSON array payload.")
			return nil
		}
		return p.normalizeAll(src, entries)
	}

	// Object payload: either an "outbounds"-style wrapper or a bare
	// single descriptor.
	var wrapper struct {
		Outbounds []rawEntry `json:"outbounds"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Outbounds) > 0 {
		return p.normalizeAll(src, wrapper.Outbounds)
	}

	var single rawEntry
	if err := json.Unmarshal(data, &single); err != nil {
		p.log.Warn().Err(err).Str("url", src.URL).Msg("Failed to decode JSON object payload.")
		return nil
	}
	return p.normalizeAll(src, []rawEntry{single})
}

func (p *Parser) normalizeAll(src types.Source, entries []rawEntry) []model.Descriptor {
	descriptors := make([]model.Descriptor, 0, len(entries))
	for _, e := range entries {
		d, ok := p.normalize(src, e)
		if !ok {
			continue
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

// normalize maps one loose entry onto the typed descriptor for its protocol.
// Entries with an unknown protocol or an unusable endpoint are skipped.
func (p *Parser) normalize(src types.Source, e rawEntry) (model.Descriptor, bool) {
	proto, ok := model.ParseProtocol(e.Type)
	if !ok {
		p.log.Debug().Str("type", e.Type).Str("url", src.URL).Msg("Skipping entry with unknown protocol.")
		return model.Descriptor{}, false
	}

	host := e.Server
	if host == "" {
		host = e.Add
	}
	remark := e.Tag
	if remark == "" {
		remark = e.PS
	}

	d := model.Descriptor{
		Protocol: proto,
		Host:     host,
		Port:     int(e.Port),
		Remark:   remark,
		Source:   src.URL,
	}
	if !d.Valid() {
		p.log.Debug().Str("url", src.URL).Str("host", host).Int("port", int(e.Port)).Msg("Skipping entry with invalid endpoint.")
		return model.Descriptor{}, false
	}

	switch proto {
	case model.ProtocolHysteria2:
		d.Hysteria2 = &model.Hysteria2Params{
			Password: e.Password,
			UpMbps:   e.UpMbps,
			DownMbps: e.DownMbps,
		}
	case model.ProtocolShadowsocks:
		d.Shadowsocks = &model.ShadowsocksParams{
			Method:   e.Method,
			Password: e.Password,
		}
	case model.ProtocolVMess:
		id := e.UUID
		if id == "" {
			id = e.ID
		}
		if _, err := uuid.Parse(id); err != nil {
			p.log.Warn().Str("url", src.URL).Str("host", host).Msg("Skipping vmess entry with invalid UUID.")
			return model.Descriptor{}, false
		}
		vm := &model.VMessParams{UUID: id, Transport: e.Net, Path: e.Path, Host: e.Host}
		if e.Transport != nil {
			vm.Transport = e.Transport.Type
			if e.Transport.Path != "" {
				vm.Path = e.Transport.Path
			}
			if e.Transport.Host != "" {
				vm.Host = e.Transport.Host
			}
		}
		d.VMess = vm
	case model.ProtocolTUIC:
		d.TUIC = &model.TUICParams{UUID: e.UUID, Password: e.Password}
	case model.ProtocolTrojan:
		d.Trojan = &model.TrojanParams{Password: e.Password}
	}

	return d, true
}
