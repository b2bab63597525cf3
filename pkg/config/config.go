// Package config は環境変数からサービスの設定を読み込む。
//
// 起動時にカレントディレクトリの.envファイルがあれば読み込み、
// 既に設定されている環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf(".envファイルの読み込みに失敗 (%s): %w", f, err)
		}
	}
	return nil
}

// GetEnv は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func GetEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetInt は環境変数を整数として取得する。
// 未設定または不正な値の場合はデフォルト値を返す。
func GetInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetBool は環境変数を真偽値として取得する。
func GetBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetDuration は環境変数をtime.Durationとして取得する（例: "30s"）。
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetList はカンマ区切りの環境変数をスライスとして取得する。空要素は除く。
func GetList(key string, defaultValue []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetIntList はカンマ区切りの環境変数を整数スライスとして取得する。
// 不正な要素がある場合はデフォルト値を返す。
func GetIntList(key string, defaultValue []int) []int {
	items := GetList(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	out := make([]int, 0, len(items))
	for _, s := range items {
		n, err := strconv.Atoi(s)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

// Logging はログ出力の設定。
type Logging struct {
	// Mode は"dev"または"prod"。
	Mode string
	// Level はログレベル。
	Level string
	// File はログファイルのパス。
	File string
}

// LoadLogging はログ出力の設定を読み込む。
func LoadLogging() Logging {
	return Logging{
		Mode:  GetEnv("LOG_MODE", "dev"),
		Level: GetEnv("LOG_LEVEL", ""),
		File:  GetEnv("LOG_FILE", ""),
	}
}

// Messaging はイベント配送の設定。
type Messaging struct {
	// Transport は"redis"または"http"。
	Transport string
	// RedisAddr はRedisのアドレス。
	RedisAddr string
	// PartitionCount はチャネルあたりのパーティション数。
	PartitionCount int
}

// LoadMessaging はイベント配送の設定を読み込む。
func LoadMessaging() Messaging {
	return Messaging{
		Transport:      strings.ToLower(GetEnv("MESSAGING_TRANSPORT", "redis")),
		RedisAddr:      GetEnv("REDIS_ADDR", "localhost:6379"),
		PartitionCount: GetInt("PARTITION_COUNT", 2),
	}
}

// Validate は設定値を検証する。
func (m Messaging) Validate() error {
	if m.Transport != "redis" && m.Transport != "http" {
		return fmt.Errorf("MESSAGING_TRANSPORTが不正です: %q（redisまたはhttp）", m.Transport)
	}
	if m.PartitionCount <= 0 {
		return fmt.Errorf("PARTITION_COUNTは正の整数でなければなりません: %d", m.PartitionCount)
	}
	return nil
}

// Backing はバックエンドサービス（product/recommendation/review）の共通設定。
type Backing struct {
	// Service はサービス名。
	Service string
	// Port はリッスンポート。
	Port string
	// DBPath はSQLiteデータベースのパス。
	DBPath string
	// Messaging はイベント配送の設定。
	Messaging Messaging
	// MessagingEnabled がfalseの場合、コンシューマを起動しない。
	MessagingEnabled bool
	// InstancePartitions はこのインスタンスが担当するパーティション。空の場合はすべて。
	InstancePartitions []int
	// ConsumerGroup はコンシューマグループ名。
	ConsumerGroup string
	// ConsumerName はグループ内のコンシューマ名。
	ConsumerName string
	// Logging はログ出力の設定。
	Logging Logging
}

// LoadBacking はバックエンドサービスの設定を読み込む。
// channelはコンシューマグループ名の既定値に使う。
func LoadBacking(service, defaultPort, channel string) Backing {
	host, _ := os.Hostname()
	return Backing{
		Service:            service,
		Port:               GetEnv("PORT", defaultPort),
		DBPath:             GetEnv("DB_PATH", fmt.Sprintf("/data/%s.db", service)),
		Messaging:          LoadMessaging(),
		MessagingEnabled:   GetBool("MESSAGING_ENABLED", true),
		InstancePartitions: GetIntList("INSTANCE_PARTITIONS", nil),
		ConsumerGroup:      GetEnv("CONSUMER_GROUP", channel+"Group"),
		ConsumerName:       GetEnv("CONSUMER_NAME", fmt.Sprintf("%s-%s", service, host)),
		Logging:            LoadLogging(),
	}
}

// Partitions は担当するパーティションを返す。未指定の場合はすべてのパーティション。
func (b Backing) Partitions() []int {
	if len(b.InstancePartitions) > 0 {
		return b.InstancePartitions
	}
	all := make([]int, b.Messaging.PartitionCount)
	for i := range all {
		all[i] = i
	}
	return all
}

// Validate は設定値を検証する。
func (b Backing) Validate() error {
	if b.DBPath == "" {
		return errors.New("DB_PATHが空です")
	}
	if err := b.Messaging.Validate(); err != nil {
		return err
	}
	for _, p := range b.InstancePartitions {
		if p < 0 || p >= b.Messaging.PartitionCount {
			return fmt.Errorf("INSTANCE_PARTITIONSの値 %d がPARTITION_COUNT(%d)の範囲外です", p, b.Messaging.PartitionCount)
		}
	}
	return nil
}
