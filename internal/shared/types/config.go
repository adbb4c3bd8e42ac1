package types

import "time"

// CommonConf 包含共有的配置
type CommonConf struct {
	// Workers 是并发验证的上限。0 表示不限制（每个代理一个 goroutine）。
	Workers int `ini:"workers"`
}

// CheckerConf 包含验证器相关的配置
type CheckerConf struct {
	EchoURL               string `ini:"echo_url"`
	GeoURL                string `ini:"geo_url"`
	ConnectTimeoutSeconds int    `ini:"connect_timeout"`
	GeoTimeoutSeconds     int    `ini:"geo_timeout"`
	PublishIntervalMillis int    `ini:"publish_interval_ms"`
	PublishMode           string `ini:"publish_mode"` // "poll" or "notify"
}

// WebConf 包含 Web UI 的配置
type WebConf struct {
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// StorageConf 描述代理列表文件的位置（只保存代理列表，不保存测试结果）。
type StorageConf struct {
	ProxiesFile string `ini:"proxies_file"`
}

// Config 是 checker 项目的统一配置结构体
type Config struct {
	CommonConf  `ini:"common"`
	CheckerConf `ini:"checker"`
	WebConf     `ini:"web"`
	LogConf     `ini:"log"`
	StorageConf `ini:"storage"`
}

// ConnectTimeout returns the per-proxy echo request deadline.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// GeoTimeout returns the deadline of a single geo lookup.
func (c *Config) GeoTimeout() time.Duration {
	return time.Duration(c.GeoTimeoutSeconds) * time.Second
}

// PublishInterval returns the publisher tick period.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMillis) * time.Millisecond
}
