package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"subpilot/subpool/model"
)

// handshakeTarget is the endpoint used when a handshake check needs to dial
// through the candidate proxy.
const handshakeTarget = "www.google.com:443"

// Estimator produces a relative throughput estimate for a reachable
// descriptor. Returned values are >= 0 and have no absolute unit; they only
// feed the composite score.
type Estimator interface {
	Name() string
	Estimate(ctx context.Context, d model.Descriptor) float64
}

// NewEstimator resolves a configured estimator name. Unknown names fall back
// to the reconnect default.
func NewEstimator(name string, timeout time.Duration) Estimator {
	switch name {
	case "none":
		return NullEstimator{}
	case "handshake":
		return &HandshakeEstimator{
			timeout:  timeout,
			fallback: &ReconnectEstimator{timeout: timeout},
		}
	default:
		return &ReconnectEstimator{timeout: timeout}
	}
}

// ReconnectEstimator opens a second short-lived connection and uses the
// reciprocal of its round-trip time as a rough throughput proxy. The default.
type ReconnectEstimator struct {
	timeout time.Duration
}

func (e *ReconnectEstimator) Name() string { return "reconnect" }

func (e *ReconnectEstimator) Estimate(ctx context.Context, d model.Descriptor) float64 {
	dialer := net.Dialer{Timeout: e.timeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", d.Addr())
	if err != nil {
		return 0
	}
	conn.Close()
	return reciprocal(time.Since(start))
}

// NullEstimator always reports zero, leaving ranking to latency alone.
type NullEstimator struct{}

func (NullEstimator) Name() string { return "none" }

func (NullEstimator) Estimate(context.Context, model.Descriptor) float64 { return 0 }

// HandshakeEstimator performs a protocol-aware round trip where it can:
// an HTTP CONNECT through http candidates, a SOCKS5 dial through socks
// candidates, a WebSocket upgrade against vmess/ws candidates. Protocols it
// cannot speak fall back to the reconnect heuristic.
type HandshakeEstimator struct {
	timeout  time.Duration
	fallback Estimator
}

func (e *HandshakeEstimator) Name() string { return "handshake" }

func (e *HandshakeEstimator) Estimate(ctx context.Context, d model.Descriptor) float64 {
	switch {
	case d.Protocol == model.ProtocolHTTP:
		return e.estimateHTTPConnect(ctx, d)
	case d.Protocol == model.ProtocolSOCKS:
		return e.estimateSOCKS5(ctx, d)
	case d.Protocol == model.ProtocolVMess && d.VMess != nil && d.VMess.Transport == "ws":
		return e.estimateWebSocket(ctx, d)
	default:
		return e.fallback.Estimate(ctx, d)
	}
}

func (e *HandshakeEstimator) estimateHTTPConnect(ctx context.Context, d model.Descriptor) float64 {
	proxyURL, err := url.Parse(fmt.Sprintf("http://%s", d.Addr()))
	if err != nil {
		return 0
	}

	transport := &http.Transport{
		Proxy:               http.ProxyURL(proxyURL),
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout: e.timeout,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: e.timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://"+handshakeTarget, nil)
	if err != nil {
		return 0
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0
	}
	return reciprocal(time.Since(start))
}

func (e *HandshakeEstimator) estimateSOCKS5(ctx context.Context, d model.Descriptor) float64 {
	dialer, err := proxy.SOCKS5("tcp", d.Addr(), nil, &net.Dialer{Timeout: e.timeout})
	if err != nil {
		return 0
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return 0
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	conn, err := contextDialer.DialContext(dialCtx, "tcp", handshakeTarget)
	if err != nil {
		return 0
	}
	conn.Close()
	return reciprocal(time.Since(start))
}

func (e *HandshakeEstimator) estimateWebSocket(ctx context.Context, d model.Descriptor) float64 {
	wsURL := url.URL{Scheme: "ws", Host: d.Addr(), Path: d.VMess.Path}

	dialer := websocket.Dialer{HandshakeTimeout: e.timeout}
	start := time.Now()
	conn, _, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		// The endpoint may refuse a bare upgrade; the reconnect heuristic
		// still gives it a usable estimate.
		return e.fallback.Estimate(ctx, d)
	}
	conn.Close()
	return reciprocal(time.Since(start))
}

// reciprocal maps an elapsed round trip onto a positive estimate where
// faster means larger.
func reciprocal(elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return 1 / seconds
}
