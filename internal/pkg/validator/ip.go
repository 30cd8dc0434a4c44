package validator

import (
	"net/netip"
	"strings"
)

// CanonicalIP 返回地址的规范形式，去掉 IPv6 zone，IPv4 映射地址还原为 IPv4
func CanonicalIP(ip string) (string, bool) {
	ip = strings.TrimSpace(ip)
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		ip = ip[:idx]
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// GetIPOrDefault 获取规范化的 IP，无效时返回默认值
func GetIPOrDefault(ip, defaultIP string) string {
	if canonical, ok := CanonicalIP(ip); ok {
		return canonical
	}
	return defaultIP
}
