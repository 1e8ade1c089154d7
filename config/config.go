// Package config 读取 egsdiag 的 YAML 配置文件
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LoveWonYoung/egsdiag/codec"
	"github.com/LoveWonYoung/egsdiag/diag"
	"github.com/LoveWonYoung/egsdiag/driver"
	"github.com/LoveWonYoung/egsdiag/nvs"
)

// Config 顶层配置
type Config struct {
	Adapter        AdapterConfig            `yaml:"adapter"`
	KWP            KWPConfig                `yaml:"kwp"`
	Reconnect      ReconnectConfig          `yaml:"reconnect"`
	Logging        LoggingConfig            `yaml:"logging"`
	ModuleSettings PartitionConfig          `yaml:"module_settings"`
	Calibration    CalibrationDBConfig      `yaml:"calibration"`
	Passthru       []driver.PassthruLibrary `yaml:"passthru"`
}

type AdapterConfig struct {
	Type      string `yaml:"type"` // usb / passthru / socketcan
	Name      string `yaml:"name"` // 端口名、J2534 设备名或网络接口名
	BaudRate  int    `yaml:"baud_rate"`
	CANSpeed  uint32 `yaml:"can_speed"`
	Interface string `yaml:"interface"`
}

type KWPConfig struct {
	SendID                uint32        `yaml:"send_id"`
	RecvID                uint32        `yaml:"recv_id"`
	ReadTimeout           time.Duration `yaml:"read_timeout"`
	WriteTimeout          time.Duration `yaml:"write_timeout"`
	TesterPresentInterval time.Duration `yaml:"tester_present_interval"`
}

type ReconnectConfig struct {
	Attempts uint          `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

type LoggingConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	Stderr bool   `yaml:"stderr"`
}

// PartitionConfig 固定位置的数据分区
type PartitionConfig struct {
	Address uint32 `yaml:"address"`
	Size    uint32 `yaml:"size"`
}

func (p PartitionConfig) Info() codec.PartitionInfo {
	return codec.PartitionInfo{Address: p.Address, Size: p.Size}
}

type CalibrationDBConfig struct {
	Database string `yaml:"database"`
}

// Default TCU 固定参数
func Default() *Config {
	return &Config{
		Adapter: AdapterConfig{
			Type:     "usb",
			BaudRate: 921600,
			CANSpeed: 500000,
		},
		KWP: KWPConfig{
			SendID:                0x07E1,
			RecvID:                0x07E9,
			ReadTimeout:           2500 * time.Millisecond,
			WriteTimeout:          2500 * time.Millisecond,
			TesterPresentInterval: 2000 * time.Millisecond,
		},
		Reconnect: ReconnectConfig{
			Attempts: 5,
			Delay:    1500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Dir:    ".",
			Prefix: "egsdiag",
		},
		ModuleSettings: PartitionConfig{
			Address: nvs.PartitionAddress + nvs.PartitionSize,
			Size:    0x10000,
		},
	}
}

// Load 读取 YAML 配置，未设置的字段保留默认值。文件不存在时直接使用默认值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("[config] %s 不存在, 使用默认配置", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("[config] 已加载 %s", path)
	return cfg, nil
}

// Save 写回 YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := driver.ParseAdapterType(c.Adapter.Type); err != nil {
		return err
	}
	if c.KWP.SendID == 0 || c.KWP.RecvID == 0 || c.KWP.SendID == c.KWP.RecvID {
		return fmt.Errorf("invalid diag ids 0x%X/0x%X", c.KWP.SendID, c.KWP.RecvID)
	}
	if c.KWP.ReadTimeout <= 0 || c.KWP.WriteTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// AdapterType 解析后的适配器类型
func (c *Config) AdapterType() (driver.AdapterType, error) {
	return driver.ParseAdapterType(c.Adapter.Type)
}

// HardwareInfo 按配置的名称定位设备；socketcan 未填写名称时使用 interface
func (c *Config) HardwareInfo() driver.HardwareInfo {
	name := c.Adapter.Name
	if name == "" {
		name = c.Adapter.Interface
	}
	return driver.HardwareInfo{Name: name}
}

// Diag 转换为会话参数
func (c *Config) Diag() (diag.Config, error) {
	typ, err := c.AdapterType()
	if err != nil {
		return diag.Config{}, err
	}
	out := diag.DefaultConfig(typ)
	out.Scan.BaudRate = c.Adapter.BaudRate
	out.Scan.PassthruLibraries = c.Passthru
	out.KWP.SendID = c.KWP.SendID
	out.KWP.RecvID = c.KWP.RecvID
	out.KWP.ReadTimeout = c.KWP.ReadTimeout
	out.KWP.WriteTimeout = c.KWP.WriteTimeout
	out.KWP.TesterPresentInterval = c.KWP.TesterPresentInterval
	out.KWP.IsoTP.CANSpeed = c.Adapter.CANSpeed
	out.ReconnectAttempts = c.Reconnect.Attempts
	out.ReconnectDelay = c.Reconnect.Delay
	return out, nil
}
