package config

import (
	"time"

	"CProject/logger"

	"github.com/spf13/viper"
)

// AppConfig 网关全局配置
type AppConfig struct {
	NodeID   int64  `mapstructure:"node_id"`
	HTTPAddr string `mapstructure:"http_addr"`

	// 结算后端
	BackendBaseURL string        `mapstructure:"backend_base_url"` // http://host:port
	UpdatesWSURL   string        `mapstructure:"updates_ws_url"`   // ws://host:port/updates
	SubmitTimeout  time.Duration `mapstructure:"submit_timeout"`
	AccountTimeout time.Duration `mapstructure:"account_timeout"`

	// 会话
	EventWaitTimeout time.Duration `mapstructure:"event_wait_timeout"`
	SessionMaxIdle   time.Duration `mapstructure:"session_max_idle"`
	SweepEvery       time.Duration `mapstructure:"sweep_every"`
	InitialDeposit   int64         `mapstructure:"initial_deposit"`
	AutoFund         bool          `mapstructure:"auto_fund"`

	// nonce 快照（可选 为空则不持久化）
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

var Global = defaults()

func defaults() AppConfig {
	return AppConfig{
		NodeID:           100,
		HTTPAddr:         ":8080",
		BackendBaseURL:   "http://127.0.0.1:9090",
		UpdatesWSURL:     "ws://127.0.0.1:9090/updates",
		SubmitTimeout:    10 * time.Second,
		AccountTimeout:   5 * time.Second,
		EventWaitTimeout: 15 * time.Second,
		SessionMaxIdle:   30 * time.Minute,
		SweepEvery:       time.Minute,
		InitialDeposit:   1000,
		AutoFund:         true,
	}
}

// Load 读取配置：默认值 < 配置文件(可选) < 环境变量（CGW_ 前缀）
func Load(path string) error {
	v := viper.New()

	def := defaults()
	v.SetDefault("node_id", def.NodeID)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("backend_base_url", def.BackendBaseURL)
	v.SetDefault("updates_ws_url", def.UpdatesWSURL)
	v.SetDefault("submit_timeout", def.SubmitTimeout)
	v.SetDefault("account_timeout", def.AccountTimeout)
	v.SetDefault("event_wait_timeout", def.EventWaitTimeout)
	v.SetDefault("session_max_idle", def.SessionMaxIdle)
	v.SetDefault("sweep_every", def.SweepEvery)
	v.SetDefault("initial_deposit", def.InitialDeposit)
	v.SetDefault("auto_fund", def.AutoFund)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetEnvPrefix("CGW")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
		logger.Infof("[config] loaded %s", path)
	}

	return v.Unmarshal(&Global)
}
