package config

import (
	"errors"
	"fmt"

	"github.com/go-ini/ini"
)

const defaultConfigFile = "server.properties"

var (
	// ErrNoKeyPassword TLS 是必须的，缺少证书密码无法启动
	ErrNoKeyPassword = errors.New("missing ssl.keypassword, refusing to start without TLS")
	// ErrNoDatabase 缺少数据库配置项
	ErrNoDatabase = errors.New("missing db.url configuration")
)

// ServerConfig 服务监听配置
type ServerConfig struct {
	Port        int    `ini:"port"`
	KeyStore    string `ini:"ssl.keystore"`
	KeyPassword string `ini:"ssl.keypassword"`
	// WsListen 可选的 websocket 接入地址，空表示不开放
	WsListen string `ini:"ws.listen"`
	// Secret 用于给未注册用户生成确定性的合成盐
	Secret string `ini:"auth.secret"`
}

// DBConfig mysql 配置
type DBConfig struct {
	URL      string `ini:"db.url"`
	Username string `ini:"db.username"`
	Password string `ini:"db.password"`
}

// RedisConfig 在线列表镜像，可选
type RedisConfig struct {
	Addr     string `ini:"redis.addr"`
	Password string `ini:"redis.password"`
	Db       int    `ini:"redis.db"`
}

// PeerConfig 每个连接的读写限制
type PeerConfig struct {
	MaxMessageSize int `ini:"peer.maxmessagesize"`
	WriteWait      int `ini:"peer.writewait"`
	ReadTimeout    int `ini:"peer.readtimeout"`
}

// MetricsConfig prometheus 指标服务配置，空表示不开放
type MetricsConfig struct {
	Listen string `ini:"metrics.listen"`
}

// Config 系统配置信息，从 server.properties 读取
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Redis   RedisConfig
	Peer    PeerConfig
	Metrics MetricsConfig
	// AuditFile 登录流水的本地缓冲文件
	AuditFile string `ini:"audit.file"`
}

// LoadConfig 读取默认配置文件
func LoadConfig() (*Config, error) {
	return LoadConfigFile(defaultConfigFile)
}

// LoadConfigFile 从指定的 properties 文件读取配置。
// properties 文件没有分节，所有键都挂在默认 section 下。
func LoadConfigFile(file string) (*Config, error) {
	cfg, err := ini.Load(file)
	if err != nil {
		return nil, fmt.Errorf("fail to read %v: %v", file, err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:     8000,
			KeyStore: "keystore.p12",
			Secret:   "tls-chat",
		},
		Peer: PeerConfig{
			MaxMessageSize: 4096,
			WriteWait:      10,
			ReadTimeout:    60,
		},
		AuditFile: "login.log",
	}

	section := cfg.Section("")
	if err = section.MapTo(&config.Server); err != nil {
		return nil, err
	}
	if err = section.MapTo(&config.DB); err != nil {
		return nil, err
	}
	if err = section.MapTo(&config.Redis); err != nil {
		return nil, err
	}
	if err = section.MapTo(&config.Peer); err != nil {
		return nil, err
	}
	if err = section.MapTo(&config.Metrics); err != nil {
		return nil, err
	}
	if err = section.MapTo(config); err != nil {
		return nil, err
	}

	if config.Server.KeyPassword == "" {
		return nil, ErrNoKeyPassword
	}
	if config.DB.URL == "" {
		return nil, ErrNoDatabase
	}
	return config, nil
}
