package parser

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

// parseText handles line-oriented payloads. Each non-empty, non-comment line
// is one candidate; a malformed line is logged and skipped without touching
// its siblings.
func (p *Parser) parseText(src types.Source, data []byte) []model.Descriptor {
	var descriptors []model.Descriptor

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		d, err := p.parseLine(src, line)
		if err != nil {
			p.log.Warn().Err(err).Str("url", src.URL).Str("line", truncateLine(line)).Msg("Failed to parse line, skipping.")
			continue
		}
		descriptors = append(descriptors, d)
	}
	if err := scanner.Err(); err != nil {
		p.log.Warn().Err(err).Str("url", src.URL).Msg("Text payload scan aborted.")
	}

	return descriptors
}

func (p *Parser) parseLine(src types.Source, line string) (model.Descriptor, error) {
	switch {
	case strings.HasPrefix(line, "ss://"):
		return parseShadowsocksLine(src, line)
	case strings.HasPrefix(line, "vmess://"):
		return p.parseVMessLine(src, line)
	case strings.Contains(line, "://"):
		return parseSchemeLine(src, line)
	default:
		// Bare "host:port" lines are plain http proxies.
		host, port, err := splitHostPort(line)
		if err != nil {
			return model.Descriptor{}, err
		}
		return newEndpoint(model.ProtocolHTTP, host, port, "", src)
	}
}

// parseShadowsocksLine decodes ss://<base64(method:password)>@host:port[#tag].
func parseShadowsocksLine(src types.Source, line string) (model.Descriptor, error) {
	rest := strings.TrimPrefix(line, "ss://")

	var remark string
	if idx := strings.Index(rest, "#"); idx >= 0 {
		if unescaped, err := url.QueryUnescape(rest[idx+1:]); err == nil {
			remark = unescaped
		} else {
			remark = rest[idx+1:]
		}
		rest = rest[:idx]
	}

	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return model.Descriptor{}, fmt.Errorf("missing '@' separator")
	}

	userInfo, err := decodeBase64Loose(rest[:at])
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("invalid base64 userinfo: %w", err)
	}
	method, password, found := strings.Cut(string(userInfo), ":")
	if !found {
		return model.Descriptor{}, fmt.Errorf("userinfo missing ':' separator")
	}

	host, port, err := splitHostPort(rest[at+1:])
	if err != nil {
		return model.Descriptor{}, err
	}

	d, err := newEndpoint(model.ProtocolShadowsocks, host, port, remark, src)
	if err != nil {
		return model.Descriptor{}, err
	}
	d.Shadowsocks = &model.ShadowsocksParams{Method: method, Password: password}
	return d, nil
}

// parseVMessLine decodes vmess://<base64(JSON)> share links.
func (p *Parser) parseVMessLine(src types.Source, line string) (model.Descriptor, error) {
	encoded := strings.TrimPrefix(line, "vmess://")

	decoded, err := decodeBase64Loose(encoded)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("invalid base64 body: %w", err)
	}

	var entry rawEntry
	if err := json.Unmarshal(decoded, &entry); err != nil {
		return model.Descriptor{}, fmt.Errorf("invalid embedded JSON: %w", err)
	}
	entry.Type = "vmess"

	d, ok := p.normalize(src, entry)
	if !ok {
		return model.Descriptor{}, fmt.Errorf("unusable vmess entry")
	}
	return d, nil
}

// parseSchemeLine handles plain "scheme://host:port" lines.
func parseSchemeLine(src types.Source, line string) (model.Descriptor, error) {
	u, err := url.Parse(line)
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("invalid URL: %w", err)
	}

	proto, ok := model.ParseProtocol(u.Scheme)
	if !ok {
		return model.Descriptor{}, fmt.Errorf("unknown scheme %q", u.Scheme)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("missing or invalid port")
	}

	remark := ""
	if u.Fragment != "" {
		remark = u.Fragment
	}

	d, err := newEndpoint(proto, u.Hostname(), port, remark, src)
	if err != nil {
		return model.Descriptor{}, err
	}

	// Credentialed schemes keep whatever the URL carries; line sources for
	// these protocols normally publish the password as userinfo.
	switch proto {
	case model.ProtocolTrojan:
		d.Trojan = &model.TrojanParams{Password: u.User.Username()}
	case model.ProtocolHysteria2:
		d.Hysteria2 = &model.Hysteria2Params{Password: u.User.Username()}
	}
	return d, nil
}

func newEndpoint(proto model.Protocol, host string, port int, remark string, src types.Source) (model.Descriptor, error) {
	d := model.Descriptor{
		Protocol: proto,
		Host:     host,
		Port:     port,
		Remark:   remark,
		Source:   src.URL,
	}
	if !d.Valid() {
		return model.Descriptor{}, fmt.Errorf("invalid endpoint %s:%d", host, port)
	}
	return d, nil
}

func splitHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid host:port %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// decodeBase64Loose tolerates share links that drop base64 padding by
// right-padding to a multiple of 4 before decoding. Both the standard and
// the URL-safe alphabets are accepted.
func decodeBase64Loose(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func truncateLine(line string) string {
	if len(line) > 64 {
		return line[:64] + "..."
	}
	return line
}
