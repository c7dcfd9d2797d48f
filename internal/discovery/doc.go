// Package discovery advertises and finds trackd servers over mDNS.
//
// A running server registers itself as a "_trackd._udp" service whose port
// is the tracker UDP port. TXT records carry the build version and the HTTP
// port serving the packet feed, so tools such as the terminal monitor can
// find a server without being told its address.
//
// # Usage Example
//
//	adv, err := discovery.Advertise("trackd on studio", 6969, []string{"http=8266"})
//	if err != nil {
//	    return err
//	}
//	defer adv.Shutdown()
//
//	servers, err := discovery.NewScanner().Scan(ctx)
//	for _, s := range servers {
//	    fmt.Println(s, s.FeedURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
