package discovery

import (
	"context"

	"github.com/brutella/dnssd"
)

// DNSSDBrowser implements Browser on top of github.com/brutella/dnssd,
// resolving instances of the AirPlay service types over multicast DNS.
type DNSSDBrowser struct{}

// Browse implements Browser.
func (DNSSDBrowser) Browse(ctx context.Context, service string, added, removed func(Device)) error {
	addFn := func(e dnssd.BrowseEntry) {
		added(entryToDevice(e))
	}
	rmvFn := func(e dnssd.BrowseEntry) {
		removed(entryToDevice(e))
	}
	return dnssd.LookupType(ctx, service, addFn, rmvFn)
}

func entryToDevice(e dnssd.BrowseEntry) Device {
	addr := ""
	if len(e.IPs) > 0 {
		addr = e.IPs[0].String()
	}
	return FromTXT(e.Name, addr, e.Port, e.Text)
}
