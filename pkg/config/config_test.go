package config

import "testing"

func TestDecodeOverlaysOntoDefaults(t *testing.T) {
	cfg, err := Decode(map[string]interface{}{
		"sample_rate":        48000,
		"audio_codec":        "ALAC",
		"connection_timeout": "5s",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.AudioCodec != AudioCodecALAC {
		t.Fatalf("AudioCodec = %q, want ALAC", cfg.AudioCodec)
	}
	// target_latency_ms was not overridden; the default must survive.
	if cfg.TargetLatencyMs != 2000 {
		t.Fatalf("TargetLatencyMs = %d, want default 2000", cfg.TargetLatencyMs)
	}
}

func TestDecodeRejectsUnsupportedSampleRate(t *testing.T) {
	_, err := Decode(map[string]interface{}{"sample_rate": 22050})
	if err == nil {
		t.Fatal("expected error for unsupported sample_rate")
	}
}

func TestDecodeRejectsInvertedJitterBounds(t *testing.T) {
	_, err := Decode(map[string]interface{}{
		"jitter_buffer_min_ms":    500,
		"jitter_buffer_target_ms": 200,
	})
	if err == nil {
		t.Fatal("expected error for inverted jitter buffer bounds")
	}
}
