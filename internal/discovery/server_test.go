package discovery

import "testing"

func TestServer_String(t *testing.T) {
	server := &Server{
		Instance: "studio",
		Hostname: "studio-pc.local.",
		IP:       "192.168.4.16",
		Port:     6969,
	}

	expected := `trackd "studio" (studio-pc.local.) at 192.168.4.16:6969`
	if server.String() != expected {
		t.Errorf("Server.String() = %v, want %v", server.String(), expected)
	}
}

func TestServer_Addr(t *testing.T) {
	tests := []struct {
		name     string
		server   *Server
		expected string
	}{
		{"IPv4", &Server{IP: "192.168.4.16", Port: 6969}, "192.168.4.16:6969"},
		{"IPv6", &Server{IP: "fe80::1", Port: 6969}, "[fe80::1]:6969"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.server.Addr(); got != tt.expected {
				t.Errorf("Server.Addr() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestServer_FeedURL(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]string
		wantPort int
		wantURL  string
	}{
		{"advertised", map[string]string{TxtHTTPPort: "8266"}, 8266, "ws://10.0.0.2:8266/feed"},
		{"missing", nil, 0, ""},
		{"garbage", map[string]string{TxtHTTPPort: "web"}, 0, ""},
		{"out of range", map[string]string{TxtHTTPPort: "99999"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{IP: "10.0.0.2", Port: 6969, Metadata: tt.metadata}
			if got := s.HTTPPort(); got != tt.wantPort {
				t.Errorf("HTTPPort() = %v, want %v", got, tt.wantPort)
			}
			if got := s.FeedURL(); got != tt.wantURL {
				t.Errorf("FeedURL() = %v, want %v", got, tt.wantURL)
			}
		})
	}
}

func TestServer_GetMetadata(t *testing.T) {
	server := &Server{Metadata: map[string]string{TxtVersion: "1.0.0"}}

	if got := server.GetMetadata(TxtVersion); got != "1.0.0" {
		t.Errorf("GetMetadata(version) = %v, want 1.0.0", got)
	}
	if got := server.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %v, want empty", got)
	}
	if got := (&Server{}).GetMetadata(TxtVersion); got != "" {
		t.Errorf("GetMetadata() with nil metadata = %v, want empty", got)
	}
}
