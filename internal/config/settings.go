// Package config holds the client settings: server address, connection type,
// save directory and gateway limits. Settings persist as a TOML file; flags in
// main override individual values.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Connection types
const (
	ConnectionTCP    = "tcp"
	ConnectionSerial = "serial"
)

// Default values
const (
	DefaultHost            = "localhost"
	DefaultPort            = 8080
	DefaultConnection      = ConnectionTCP
	DefaultBaud            = 115200
	DefaultSaveDirectory   = "."
	DefaultFileExtension   = ".mp3"
	DefaultResponseTimeout = time.Duration(0) // wait forever
	DefaultHTTPQueue       = 5
	DefaultFileName        = "mp3-client.toml"
)

// Limits
const (
	MinHTTPQueue = 1
	MaxHTTPQueue = 50
	MaxPort      = 65535
)

// values is the on-disk layout
type values struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Connection      string `toml:"connection"`
	SerialPort      string `toml:"serial_port"`
	Baud            int    `toml:"baud"`
	SaveDirectory   string `toml:"save_directory"`
	FileExtension   string `toml:"file_extension"`
	ResponseTimeout string `toml:"response_timeout"`
	HTTPPort        int    `toml:"http_port"`
	HTTPQueue       int    `toml:"http_queue"`
	Debug           bool   `toml:"debug"`
}

// Settings manages application configuration
type Settings struct {
	path string
	v    values
}

// NewSettings creates a settings manager backed by the TOML file at path.
// Nothing is read until Load is called.
func NewSettings(path string) *Settings {
	return &Settings{path: path}
}

// Path returns the backing file path
func (s *Settings) Path() string {
	return s.path
}

// Load reads the settings file. A missing file leaves the defaults in place.
func (s *Settings) Load() error {
	if s.path == "" {
		return nil
	}
	var v values
	md, err := toml.DecodeFile(s.path, &v)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}
	for _, key := range md.Undecoded() {
		log.Printf("[config] ignoring unknown setting %q in %s", key.String(), s.path)
	}
	if v.ResponseTimeout != "" {
		if _, err := time.ParseDuration(v.ResponseTimeout); err != nil {
			return fmt.Errorf("invalid response_timeout %q: %w", v.ResponseTimeout, err)
		}
	}
	s.v = v
	return nil
}

// Save writes the settings file
func (s *Settings) Save() error {
	if s.path == "" {
		return fmt.Errorf("settings have no file path")
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create settings %s: %w", s.path, err)
	}
	if err := toml.NewEncoder(f).Encode(s.v); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return f.Close()
}

// GetHost returns the server host
func (s *Settings) GetHost() string {
	if s.v.Host == "" {
		return DefaultHost
	}
	return s.v.Host
}

// SetHost sets the server host
func (s *Settings) SetHost(host string) {
	s.v.Host = strings.TrimSpace(host)
}

// GetPort returns the server TCP port
func (s *Settings) GetPort() int {
	if s.v.Port <= 0 || s.v.Port > MaxPort {
		return DefaultPort
	}
	return s.v.Port
}

// SetPort sets the server TCP port
func (s *Settings) SetPort(port int) {
	if port <= 0 || port > MaxPort {
		port = DefaultPort
	}
	s.v.Port = port
}

// GetAddress returns host:port for TCP connections
func (s *Settings) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.GetHost(), s.GetPort())
}

// GetConnection returns the connection type (tcp or serial)
func (s *Settings) GetConnection() string {
	switch strings.ToLower(s.v.Connection) {
	case ConnectionSerial:
		return ConnectionSerial
	default:
		return DefaultConnection
	}
}

// SetConnection sets the connection type
func (s *Settings) SetConnection(conn string) error {
	conn = strings.ToLower(strings.TrimSpace(conn))
	if conn != ConnectionTCP && conn != ConnectionSerial {
		return fmt.Errorf("invalid connection type: %s", conn)
	}
	s.v.Connection = conn
	return nil
}

// GetSerialPort returns the serial device name
func (s *Settings) GetSerialPort() string {
	return s.v.SerialPort
}

// SetSerialPort sets the serial device name
func (s *Settings) SetSerialPort(port string) {
	s.v.SerialPort = strings.TrimSpace(port)
}

// GetBaud returns the serial baud rate
func (s *Settings) GetBaud() int {
	if s.v.Baud <= 0 {
		return DefaultBaud
	}
	return s.v.Baud
}

// SetBaud sets the serial baud rate
func (s *Settings) SetBaud(baud int) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	s.v.Baud = baud
}

// GetSaveDirectory returns where downloaded songs are written
func (s *Settings) GetSaveDirectory() string {
	if s.v.SaveDirectory == "" {
		return DefaultSaveDirectory
	}
	return s.v.SaveDirectory
}

// SetSaveDirectory sets where downloaded songs are written
func (s *Settings) SetSaveDirectory(dir string) {
	s.v.SaveDirectory = dir
}

// GetFileExtension returns the extension appended to saved songs
func (s *Settings) GetFileExtension() string {
	if s.v.FileExtension == "" {
		return DefaultFileExtension
	}
	return s.v.FileExtension
}

// SetFileExtension sets the extension appended to saved songs
func (s *Settings) SetFileExtension(ext string) {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	s.v.FileExtension = ext
}

// GetResponseTimeout returns how long a request waits for its response; zero waits forever
func (s *Settings) GetResponseTimeout() time.Duration {
	if s.v.ResponseTimeout == "" {
		return DefaultResponseTimeout
	}
	d, err := time.ParseDuration(s.v.ResponseTimeout)
	if err != nil || d < 0 {
		return DefaultResponseTimeout
	}
	return d
}

// SetResponseTimeout sets the response wait bound
func (s *Settings) SetResponseTimeout(d time.Duration) {
	if d <= 0 {
		s.v.ResponseTimeout = ""
		return
	}
	s.v.ResponseTimeout = d.String()
}

// GetHTTPPort returns the gateway port; zero disables the gateway
func (s *Settings) GetHTTPPort() int {
	if s.v.HTTPPort < 0 || s.v.HTTPPort > MaxPort {
		return 0
	}
	return s.v.HTTPPort
}

// SetHTTPPort sets the gateway port
func (s *Settings) SetHTTPPort(port int) {
	if port < 0 || port > MaxPort {
		port = 0
	}
	s.v.HTTPPort = port
}

// GetHTTPQueue returns how many gateway requests may wait for the connection
func (s *Settings) GetHTTPQueue() int {
	if s.v.HTTPQueue <= 0 {
		return DefaultHTTPQueue
	}
	return s.v.HTTPQueue
}

// SetHTTPQueue sets the gateway queue limit
func (s *Settings) SetHTTPQueue(n int) {
	if n < MinHTTPQueue {
		n = MinHTTPQueue
	}
	if n > MaxHTTPQueue {
		n = MaxHTTPQueue
	}
	s.v.HTTPQueue = n
}

// GetDebug returns whether debug logging is enabled
func (s *Settings) GetDebug() bool {
	return s.v.Debug
}

// SetDebug enables or disables debug logging
func (s *Settings) SetDebug(debug bool) {
	s.v.Debug = debug
}

// Validate checks combinations that single setters cannot
func (s *Settings) Validate() error {
	if s.GetConnection() == ConnectionSerial && s.GetSerialPort() == "" {
		return fmt.Errorf("serial_port is required for serial connection")
	}
	return nil
}
