// Package serviceaddr はレスポンスに埋め込む診断用のサービスアドレスを生成する。
package serviceaddr

import (
	"fmt"
	"net"
	"os"
)

// Resolve は"ホスト名/IPアドレス:ポート"形式のアドレスを返す。
// ホスト名やIPアドレスが取得できない場合は"unknown"で埋める。
func Resolve(port string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s:%s", host, firstIPv4(), port)
}

// firstIPv4 はループバック以外の最初のIPv4アドレスを返す。
func firstIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
