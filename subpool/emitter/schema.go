package emitter

// sing-box configuration schema, reduced to the outbound shapes this
// generator produces.

type LogOptions struct {
	Level string `json:"level"`
}

// Document is the run's sole durable artifact.
type Document struct {
	Log       LogOptions `json:"log"`
	Outbounds []any      `json:"outbounds"`
}

// Outbound carries the fields every outbound shares. Typed outbounds embed
// it so their protocol fields flatten into the same JSON object.
type Outbound struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

func (o Outbound) GetTag() string  { return o.Tag }
func (o Outbound) GetType() string { return o.Type }

// Tagged is implemented by every outbound in a document.
type Tagged interface {
	GetTag() string
	GetType() string
}

type SelectorOutbound struct {
	Outbound
	Outbounds []string `json:"outbounds"`
	Default   string   `json:"default,omitempty"`
}

// ServerOutbound is the common base of every concrete proxy outbound.
type ServerOutbound struct {
	Outbound
	Server string `json:"server"`
	Port   int    `json:"port"`
}

type Hysteria2Outbound struct {
	ServerOutbound
	UpMbps   int    `json:"up_mbps"`
	DownMbps int    `json:"down_mbps"`
	Password string `json:"password"`
}

type ShadowsocksOutbound struct {
	ServerOutbound
	Method   string `json:"method"`
	Password string `json:"password"`
}

type VMessOutbound struct {
	ServerOutbound
	UUID      string           `json:"uuid"`
	Transport TransportOptions `json:"transport"`
}

type TransportOptions struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
	Host string `json:"host,omitempty"`
}

type TUICOutbound struct {
	ServerOutbound
	UUID     string `json:"uuid"`
	Password string `json:"password"`
}

type TrojanOutbound struct {
	ServerOutbound
	Password string `json:"password"`
}

type HTTPOutbound struct {
	ServerOutbound
}

type SOCKSOutbound struct {
	ServerOutbound
}
