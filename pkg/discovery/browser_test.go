package discovery

import (
	"context"
	"testing"
)

func TestFromTXTParsesSingleHexFeatures(t *testing.T) {
	txt := map[string]string{
		"deviceid": "AA:BB:CC:DD:EE:FF",
		"features": "0x445C340",
		"model":    "AppleTV3,2",
	}
	d := FromTXT("Living Room", "192.168.1.5", 7000, txt)

	if d.ID != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("ID = %q", d.ID)
	}
	if !d.Capabilities.Has(CapAudio) {
		t.Fatalf("expected CapAudio set, features=%#x", d.RawFeatures)
	}
	if d.Model != "AppleTV3,2" {
		t.Fatalf("Model = %q", d.Model)
	}
}

func TestFromTXTParsesCommaSplitFeatures(t *testing.T) {
	// bit 48 (AirPlay2) lives in the high 32-bit half.
	txt := map[string]string{"features": "0x1,0x10000"}
	d := FromTXT("Kitchen", "192.168.1.9", 7000, txt)

	if !d.Capabilities.Has(CapAirPlay2) {
		t.Fatalf("expected CapAirPlay2 set from hi half, features=%#x", d.RawFeatures)
	}
}

func TestFromTXTFallsBackToAddressWhenDeviceIDMissing(t *testing.T) {
	d := FromTXT("No ID", "192.168.1.20", 7001, map[string]string{})
	if d.ID != "192.168.1.20:7001" {
		t.Fatalf("ID = %q", d.ID)
	}
}

func TestStaticBrowserReportsDevicesThenBlocks(t *testing.T) {
	devices := []Device{
		{ID: "AA:BB:CC:DD:EE:FF", Name: "Living Room"},
		{ID: "11:22:33:44:55:66", Name: "Kitchen"},
	}
	var b Browser = StaticBrowser{Devices: devices}

	ctx, cancel := context.WithCancel(context.Background())
	var added []Device
	removed := 0
	done := make(chan error, 1)
	go func() {
		done <- b.Browse(ctx, ServiceAirPlay2,
			func(d Device) {
				added = append(added, d)
				if len(added) == len(devices) {
					cancel()
				}
			},
			func(Device) { removed++ })
	}()

	err := <-done
	if err != context.Canceled {
		t.Fatalf("Browse returned %v, want context.Canceled", err)
	}
	if len(added) != 2 || added[0].Name != "Living Room" || added[1].Name != "Kitchen" {
		t.Fatalf("added = %+v", added)
	}
	if removed != 0 {
		t.Fatalf("removed called %d times, want 0", removed)
	}
}
