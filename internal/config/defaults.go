package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "RELAYSHEET"

	DefaultAddr            = ":8080"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultSignatureHeader = "X-Retell-Signature"
	DefaultTimestampHeader = "X-Signature-Timestamp"
	DefaultRequestTimeout  = 30 * time.Second

	DefaultSignatureMaxSkew = 5 * time.Minute
)

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("mode", string(ModeStrict))

	v.SetDefault("store.dsn", "")
	v.SetDefault("spreadsheet_id", "")

	v.SetDefault("tables.jobs", "Jobs")
	v.SetDefault("tables.emergency", "Emergency")
	v.SetDefault("tables.inquiry", "Inquiry")

	v.SetDefault("max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	v.SetDefault("signature.header", DefaultSignatureHeader)
	v.SetDefault("signature.timestamp_header", DefaultTimestampHeader)
	v.SetDefault("signature.secret", "")
	v.SetDefault("signature.max_skew", DefaultSignatureMaxSkew)

	v.SetDefault("events.token", "")
	v.SetDefault("events.origins", []string{})

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}
