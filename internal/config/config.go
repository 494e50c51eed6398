// Package config loads process configuration from environment variables,
// per spec §6. All parsing happens here, once, at startup; the only other
// os.Getenv read in the service is the LOG_PRETTY logging switch in main.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-sourced setting the core consumes.
type Config struct {
	// Upstream client credentials.
	WeComBaseURL string
	CorpID       string
	Secret       string

	// Callback crypto.
	CallbackToken      string
	CallbackEncodingAESKey string

	// Schedulers.
	SyncInterval        string // cron expression
	AutoSyncEnabled     bool
	StatusCheckInterval string // cron expression
	StatusCheckEnabled  bool

	// Not listed among the named env vars in spec §6, but required to give
	// the incremental poller a starting cursor (spec §9 Open Questions: "the
	// source's incremental baseline timestamp is a hard-coded ...; it
	// should be configuration, not a constant"). Defaults below.
	BaselineTimestamp int64
	// Cutoff timestamp for the active index (invariant I4).
	CutoffTimestamp int64
	// Recipient identifier the crypto codec binds decrypted payloads to.
	CallbackRecipient string

	// Paths for the three JSON documents (spec §6 "Persisted files").
	LeaveStorePath   string
	ActiveIndexPath  string
	SyncCursorPath   string

	// HTTP listen address for the control-plane/callback surface.
	ListenAddr string

	// TimeZone names the IANA location used for local calendar-day slot
	// derivation (spec §4.3: "Slot string uses local calendar year/month/
	// day"). Defaults to the system local timezone if unset.
	TimeZone string
}

// Load reads and validates configuration from the process environment.
func Load() (*Config, error) {
	c := &Config{
		WeComBaseURL:           envOr("WECOM_BASE_URL", "https://qyapi.weixin.qq.com"),
		CorpID:                 os.Getenv("WECOM_CORPID"),
		Secret:                 os.Getenv("WECOM_SECRET"),
		CallbackToken:          os.Getenv("WECOM_CALLBACK_TOKEN"),
		CallbackEncodingAESKey: os.Getenv("WECOM_CALLBACK_ENCODING_AES_KEY"),
		SyncInterval:           envOr("SYNC_INTERVAL", "*/5 * * * *"),
		StatusCheckInterval:    envOr("STATUS_CHECK_INTERVAL", "*/5 * * * *"),
		LeaveStorePath:         envOr("LEAVE_STORE_PATH", "data/leave-store.json"),
		ActiveIndexPath:        envOr("ACTIVE_INDEX_PATH", "data/active-index.json"),
		SyncCursorPath:         envOr("SYNC_CURSOR_PATH", "data/sync-cursor.json"),
		ListenAddr:             envOr("LISTEN_ADDR", ":8080"),
		TimeZone:               os.Getenv("TZ_NAME"),
		CallbackRecipient:      os.Getenv("WECOM_CORPID"),
	}

	var err error
	if c.AutoSyncEnabled, err = envBool("AUTO_SYNC_ENABLED", true); err != nil {
		return nil, err
	}
	if c.StatusCheckEnabled, err = envBool("STATUS_CHECK_ENABLED", true); err != nil {
		return nil, err
	}
	if c.BaselineTimestamp, err = envUnix("SYNC_BASELINE_TIMESTAMP", defaultBaseline()); err != nil {
		return nil, err
	}
	if c.CutoffTimestamp, err = envUnix("ACTIVE_INDEX_CUTOFF_TIMESTAMP", c.BaselineTimestamp); err != nil {
		return nil, err
	}

	return c, nil
}

// Location resolves the configured TimeZone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// defaultBaseline is 2026-01-01 00:00:00 UTC+8, matching the original
// hard-coded constant (spec §9 Open Questions), now just the default value
// of a configuration field rather than a compiled-in constant.
func defaultBaseline() int64 {
	loc := time.FixedZone("UTC+8", 8*60*60)
	return time.Date(2026, time.January, 1, 0, 0, 0, 0, loc).Unix()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envUnix(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
