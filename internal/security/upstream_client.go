// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// UpstreamClientConfig は上流API用HTTPクライアントの設定。
type UpstreamClientConfig struct {
	// Timeout は1リクエストの上限時間。0の場合は制限しない。
	Timeout time.Duration
	// SSRFGuard がtrueの場合、safeurlでプライベートIP等への接続を拒否する。
	SSRFGuard bool
	// AllowedPorts はSSRFGuard有効時に許可するポート。空の場合は80と443。
	AllowedPorts []int
}

// allowedSchemes は上流APIで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はSSRFガード有効時にブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースし、ValidateBaseURLでの検証に使用する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// NewUpstreamClient はAuth APIとTrain APIの呼び出しに使うHTTPクライアントを生成する。
// SSRFGuardが有効な場合はsafeurlのクライアントを返す。safeurlはnet.DialerのControlフックで
// DNS解決後のIPアドレスを検証するため、DNS再バインディング攻撃にも対応している。
func NewUpstreamClient(cfg UpstreamClientConfig) *http.Client {
	if !cfg.SSRFGuard {
		return &http.Client{Timeout: cfg.Timeout}
	}

	ports := cfg.AllowedPorts
	if len(ports) == 0 {
		ports = []int{80, 443}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(ports...).
		Build()

	return safeurl.Client(config).Client
}

// PortOf はベースURLの接続先ポートを返す。明示されていない場合はスキームの既定ポート。
func PortOf(rawURL string) (int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	if p := parsed.Port(); p != "" {
		return strconv.Atoi(p)
	}
	if strings.EqualFold(parsed.Scheme, "http") {
		return 80, nil
	}
	return 443, nil
}

// ValidateBaseURL は上流APIのベースURLを起動時に静的に検証する。
// DNS解決は行わない。解決後のIPアドレスはNewUpstreamClient側で検証される。
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
