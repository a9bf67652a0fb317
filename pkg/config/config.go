// Package config defines the library's recognized configuration surface
// and decodes it from a loosely typed map using mapstructure. Loading
// the map from a file (YAML, TOML, flags) is CLI glue and out of scope;
// callers hand this package an already-parsed map.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Protocol selects which AirPlay dialect(s) a connection attempt
// prefers, set by the `preferred_protocol` key.
type Protocol string

const (
	ProtocolAP2  Protocol = "AP2"
	ProtocolAP1  Protocol = "AP1"
	ProtocolAuto Protocol = "Auto"
)

// AudioCodec selects the codec a stream negotiates, set by the
// `audio_codec` key.
type AudioCodec string

const (
	AudioCodecPCM  AudioCodec = "PCM"
	AudioCodecALAC AudioCodec = "ALAC"
	AudioCodecAAC  AudioCodec = "AAC"
)

// Config is the recognized configuration surface, decoded with
// mapstructure tags so it can be populated from any loosely typed map a caller's own config loader produces (YAML/TOML/env
// -- that loader is outside this module's scope).
type Config struct {
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	TargetLatencyMs   int           `mapstructure:"target_latency_ms"`

	JitterBufferMinMs    int `mapstructure:"jitter_buffer_min_ms"`
	JitterBufferTargetMs int `mapstructure:"jitter_buffer_target_ms"`
	JitterBufferMaxMs    int `mapstructure:"jitter_buffer_max_ms"`

	// PairingStorage is a filesystem path, or "" to disable persistent
	// pairing entirely (transient pairing only).
	PairingStorage string `mapstructure:"pairing_storage"`

	PreferredProtocol    Protocol   `mapstructure:"preferred_protocol"`
	AllowTransientPairing bool      `mapstructure:"allow_transient_pairing"`
	AudioCodec           AudioCodec `mapstructure:"audio_codec"`
	SampleRate           int        `mapstructure:"sample_rate"`
}

// Default returns the configuration with every field at its documented
// default.
func Default() Config {
	return Config{
		ConnectionTimeout:     10 * time.Second,
		TargetLatencyMs:       2000,
		JitterBufferMinMs:     50,
		JitterBufferTargetMs:  200,
		JitterBufferMaxMs:     2000,
		PreferredProtocol:     ProtocolAuto,
		AllowTransientPairing: true,
		AudioCodec:            AudioCodecPCM,
		SampleRate:            44100,
	}
}

// Decode overlays values from raw (e.g. parsed from a YAML/JSON
// document by the caller) onto a copy of Default, validating the
// recognized enum fields and sample rate.
func Decode(raw map[string]interface{}) (Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks sample_rate and audio_codec against the supported
// values.
func (c Config) Validate() error {
	switch c.SampleRate {
	case 44100, 48000:
	default:
		return fmt.Errorf("config: unsupported sample_rate %d (must be 44100 or 48000)", c.SampleRate)
	}
	switch c.AudioCodec {
	case AudioCodecPCM, AudioCodecALAC, AudioCodecAAC:
	default:
		return fmt.Errorf("config: unsupported audio_codec %q", c.AudioCodec)
	}
	switch c.PreferredProtocol {
	case ProtocolAP1, ProtocolAP2, ProtocolAuto:
	default:
		return fmt.Errorf("config: unsupported preferred_protocol %q", c.PreferredProtocol)
	}
	if c.JitterBufferMinMs > c.JitterBufferTargetMs || c.JitterBufferTargetMs > c.JitterBufferMaxMs {
		return fmt.Errorf("config: jitter buffer bounds must satisfy min(%d) <= target(%d) <= max(%d)",
			c.JitterBufferMinMs, c.JitterBufferTargetMs, c.JitterBufferMaxMs)
	}
	return nil
}
