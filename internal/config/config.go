// Package config assembles the daemon configuration from an optional
// TOML file overlaid with environment variables (env wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// Network
	DeviceAddr string `toml:"device_addr"` // legacy device protocol listener
	AdminAddr  string `toml:"admin_addr"`  // status/metrics listener; empty disables

	// Records
	RecordsPath    string `toml:"records_path"`
	RecordCapacity int    `toml:"record_capacity"`

	// Audit DB
	Env                string `toml:"env"` // "dev" | "prod"
	DBPath             string `toml:"db_path"`
	AuditRetentionDays int    `toml:"audit_retention_days"` // 0 = keep forever
	PruneIntervalHours int    `toml:"prune_interval_hours"`

	// Scanning
	ReaderType   string `toml:"reader_type"`
	ReaderDevice string `toml:"reader_device"` // empty disables the scan loop
	OutputPath   string `toml:"output_path"`   // empty logs pulses instead of driving GPIO
	ScanMs       int    `toml:"scan_interval_ms"`
	PulseMs      int    `toml:"pulse_ms"`

	// Device protocol limits
	ConnTimeoutMs      int `toml:"conn_timeout_ms"`
	RequestBufferBytes int `toml:"request_buffer_bytes"`
}

func defaults() Config {
	return Config{
		DeviceAddr:         ":8080",
		AdminAddr:          ":9091",
		RecordsPath:        "./data/records.txt",
		RecordCapacity:     64,
		Env:                "dev",
		DBPath:             "./data/cardgate.db",
		AuditRetentionDays: 30,
		PruneIntervalHours: 6,
		ReaderType:         "line",
		ScanMs:             250,
		PulseMs:            2000,
		ConnTimeoutMs:      5000,
		RequestBufferBytes: 512,
	}
}

// Load reads the config file named by CARDGATE_CONFIG (default
// ./cardgate.toml; a missing file is fine), then applies environment
// overrides.  Malformed numeric env values fall back rather than fail.
func Load() (Config, error) {
	cfg := defaults()

	path := getenvDefault("CARDGATE_CONFIG", "./cardgate.toml")
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.DeviceAddr, "CARDGATE_DEVICE_ADDR")
	setString(&cfg.AdminAddr, "CARDGATE_ADMIN_ADDR")
	setString(&cfg.RecordsPath, "CARDGATE_RECORDS_PATH")
	setInt(&cfg.RecordCapacity, "CARDGATE_RECORD_CAPACITY")
	setString(&cfg.Env, "CARDGATE_ENV")
	setString(&cfg.DBPath, "CARDGATE_DB_PATH")
	setInt(&cfg.AuditRetentionDays, "CARDGATE_AUDIT_RETENTION_DAYS")
	setInt(&cfg.PruneIntervalHours, "CARDGATE_PRUNE_INTERVAL_HOURS")
	setString(&cfg.ReaderType, "CARDGATE_READER_TYPE")
	setString(&cfg.ReaderDevice, "CARDGATE_READER_DEVICE")
	setString(&cfg.OutputPath, "CARDGATE_OUTPUT_PATH")
	setInt(&cfg.ScanMs, "CARDGATE_SCAN_INTERVAL_MS")
	setInt(&cfg.PulseMs, "CARDGATE_PULSE_MS")
	setInt(&cfg.ConnTimeoutMs, "CARDGATE_CONN_TIMEOUT_MS")
	setInt(&cfg.RequestBufferBytes, "CARDGATE_REQUEST_BUFFER_BYTES")

	// "off" disables the admin listener from the environment, since an
	// empty env value means "not set".
	if strings.EqualFold(cfg.AdminAddr, "off") {
		cfg.AdminAddr = ""
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return
	}
	*dst = n
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
