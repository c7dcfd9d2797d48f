// Package config provides user configuration management for trackd.
//
// This package manages a YAML-based configuration file holding the server's
// default preferences and what the server has learned about each tracker:
// the hardware it reported in its last handshake, where it was seen, and a
// user-chosen nickname.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/trackd/config.yaml or $HOME/.config/trackd/config.yaml
//   - macOS: $HOME/.config/trackd/config.yaml
//   - Windows: %LOCALAPPDATA%\trackd\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//
//	registry.SetNickname("DE:AD:BE:EF:00:01", "left shin")
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # File Format
//
//	version: 1
//	server:
//	  udp_port: 6969
//	  http_port: 8266
//	  timeout_seconds: 5
//	  ping_interval_millis: 1000
//	  advertise: true
//	  legacy_greeting: false
//	trackers:
//	  DE:AD:BE:EF:00:01:
//	    nickname: left shin
//	    last_ip: 192.168.1.42
//	    board_type: 4
//	    mcu_type: 2
//	    firmware: 0.4.0
//	    firmware_build: 17
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. Writes to disk are atomic
// (temporary file plus rename).
package config
