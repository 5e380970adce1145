/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads the daemon configuration from an INI file with
// environment variable fill-in for anything the file leaves unset. The
// daemon runs fine with no config file at all; a bad file or bad value is
// fatal at startup and never mid-run.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/gcfg"
	"github.com/inhies/go-bytesize"

	"github.com/rootxtrem3/Cyber-Group-20/log"
)

const (
	MAX_CONFIG_SIZE int64 = (1024 * 1024 * 2) //2MB, even this is crazy large

	confExt = `.conf`

	defaultBindAddr = `0.0.0.0`

	defaultSSHPort    uint16 = 2222
	defaultTelnetPort uint16 = 2323
	defaultHTTPPort   uint16 = 8080
	defaultMQTTPort   uint16 = 1883
	defaultCameraPort uint16 = 5000
	defaultAPIPort    uint16 = 8000

	defaultStorePath     = `/opt/threatview/etc/events.db`
	defaultAuditLogPath  = `/opt/threatview/log/events.jsonl`
	defaultQuarantineDir = `/opt/threatview/quarantine`

	defaultMaxSessionBytes int64 = 1024 * 1024     //1MB of attacker input is plenty
	defaultMaxUploadBytes  int64 = 8 * 1024 * 1024 //uploads get more room

	defaultSessionIdleTimeout = time.Minute
	defaultSessionMaxDuration = 10 * time.Minute
	defaultShutdownGrace      = 5 * time.Second
	defaultBusEnqueueTimeout  = time.Second

	defaultBusQueueSize        = 1024
	defaultSubscriberQueueSize = 256
	defaultMaxSessionEvents    = 1024
	defaultMaxAuthAttempts     = 5

	defaultSSHBanner    = `SSH-2.0-OpenSSH_8.2p1 Ubuntu-4ubuntu0.3`
	defaultServerHeader = `Apache/2.4.41 (Ubuntu)`
)

var (
	ErrConfigFileTooLarge = errors.New("Config file is too large")
	ErrFailedFileRead     = errors.New("Failed to read entire config file")
	ErrIsNotDirectory     = errors.New("path is not a directory")
)

type Config struct {
	Global struct {
		Bind_Addr             string
		Store_Path            string
		Audit_Log_Path        string
		Quarantine_Dir        string
		GeoIP_DB_Path         string
		Log_Level             string
		Log_File              string
		Max_Session_Bytes     string
		Max_Upload_Bytes      string
		Session_Idle_Timeout  string
		Session_Max_Duration  string
		Shutdown_Grace        string
		Bus_Enqueue_Timeout   string
		Bus_Queue_Size        int
		Subscriber_Queue_Size int
		Max_Session_Events    int
		Enable_RDNS           bool
	}
	SSH struct {
		Disabled          bool
		Port              uint16
		Banner            string
		Max_Auth_Attempts int
		Enable_Shell      bool
	}
	HTTP struct {
		Disabled      bool
		Port          uint16
		Server_Header string
	}
	Telnet struct {
		Disabled bool
		Port     uint16
	}
	MQTT struct {
		Disabled bool
		Port     uint16
	}
	Camera struct {
		Disabled bool
		Port     uint16
	}
	API struct {
		Disabled bool
		Port     uint16
	}
	Forwarder struct {
		URL         string
		Timeout     string
		Max_Retries int
	}
}

// GetConfig loads the config file at path (empty path means all defaults),
// applies any .conf overlays from the overlay directory, fills unset
// values from the environment, and verifies the result.
func GetConfig(path, overlayPath string) (*Config, error) {
	var c Config
	if path != `` {
		if err := loadFile(&c, path); err != nil {
			return nil, err
		}
	}
	if overlayPath != `` {
		if err := loadOverlays(&c, overlayPath); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnvOverrides(); err != nil {
		return nil, err
	}
	c.setDefaults()
	if err := c.Verify(); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadFile(c *Config, path string) error {
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	fi, err := fin.Stat()
	if err != nil {
		fin.Close()
		return err
	}
	//just a sanity check
	if fi.Size() > MAX_CONFIG_SIZE {
		fin.Close()
		return ErrConfigFileTooLarge
	}
	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	fin.Close()
	if err != nil {
		return err
	} else if int64(n) != fi.Size() {
		return ErrFailedFileRead
	}
	return gcfg.ReadStringInto(c, string(content))
}

// loadOverlays consumes any .conf files in the overlay directory in
// lexical order; a missing directory is not an error.
func loadOverlays(c *Config, pth string) error {
	fi, err := os.Stat(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	} else if !fi.IsDir() {
		return ErrIsNotDirectory
	}
	dents, err := os.ReadDir(pth)
	if err != nil {
		return err
	}
	for _, dent := range dents {
		if !dent.Type().IsRegular() || filepath.Ext(dent.Name()) != confExt {
			continue
		}
		p := filepath.Join(pth, dent.Name())
		if err = loadFile(c, p); err != nil {
			return fmt.Errorf("failed to load %q %w", p, err)
		}
	}
	return nil
}

func (c *Config) loadEnvOverrides() error {
	if err := LoadEnvVar(&c.Global.Bind_Addr, `BIND_ADDR`, ``); err != nil {
		return fmt.Errorf("BIND_ADDR %w", err)
	}
	if err := LoadEnvVar(&c.SSH.Port, `SSH_PORT`, nil); err != nil {
		return fmt.Errorf("SSH_PORT %w", err)
	}
	if err := LoadEnvVar(&c.HTTP.Port, `HTTP_PORT`, nil); err != nil {
		return fmt.Errorf("HTTP_PORT %w", err)
	}
	if err := LoadEnvVar(&c.Telnet.Port, `TELNET_PORT`, nil); err != nil {
		return fmt.Errorf("TELNET_PORT %w", err)
	}
	if err := LoadEnvVar(&c.MQTT.Port, `MQTT_PORT`, nil); err != nil {
		return fmt.Errorf("MQTT_PORT %w", err)
	}
	if err := LoadEnvVar(&c.Camera.Port, `CAMERA_PORT`, nil); err != nil {
		return fmt.Errorf("CAMERA_PORT %w", err)
	}
	if err := LoadEnvVar(&c.API.Port, `API_PORT`, nil); err != nil {
		return fmt.Errorf("API_PORT %w", err)
	}
	if err := LoadEnvVar(&c.Global.GeoIP_DB_Path, `GEOIP_DB_PATH`, ``); err != nil {
		return fmt.Errorf("GEOIP_DB_PATH %w", err)
	}
	if err := LoadEnvVar(&c.Global.Store_Path, `STORE_PATH`, ``); err != nil {
		return fmt.Errorf("STORE_PATH %w", err)
	}
	if err := LoadEnvVar(&c.Global.Audit_Log_Path, `LOG_PATH`, ``); err != nil {
		return fmt.Errorf("LOG_PATH %w", err)
	}
	if err := LoadEnvVar(&c.Global.Quarantine_Dir, `QUARANTINE_DIR`, ``); err != nil {
		return fmt.Errorf("QUARANTINE_DIR %w", err)
	}
	if err := LoadEnvVar(&c.Global.Max_Session_Bytes, `MAX_SESSION_BYTES`, ``); err != nil {
		return fmt.Errorf("MAX_SESSION_BYTES %w", err)
	}
	if err := LoadEnvVar(&c.Global.Bus_Queue_Size, `BUS_QUEUE_SIZE`, nil); err != nil {
		return fmt.Errorf("BUS_QUEUE_SIZE %w", err)
	}
	if err := LoadEnvVar(&c.Global.Subscriber_Queue_Size, `SUBSCRIBER_QUEUE_SIZE`, nil); err != nil {
		return fmt.Errorf("SUBSCRIBER_QUEUE_SIZE %w", err)
	}
	//durations arrive from the environment as integer seconds
	if c.Global.Session_Idle_Timeout == `` {
		var secs int64
		if err := LoadEnvVar(&secs, `SESSION_IDLE_TIMEOUT_S`, nil); err != nil {
			return fmt.Errorf("SESSION_IDLE_TIMEOUT_S %w", err)
		} else if secs > 0 {
			c.Global.Session_Idle_Timeout = fmt.Sprintf("%ds", secs)
		}
	}
	if c.Global.Session_Max_Duration == `` {
		var secs int64
		if err := LoadEnvVar(&secs, `SESSION_MAX_DURATION_S`, nil); err != nil {
			return fmt.Errorf("SESSION_MAX_DURATION_S %w", err)
		} else if secs > 0 {
			c.Global.Session_Max_Duration = fmt.Sprintf("%ds", secs)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Global.Bind_Addr == `` {
		c.Global.Bind_Addr = defaultBindAddr
	}
	if c.Global.Store_Path == `` {
		c.Global.Store_Path = defaultStorePath
	}
	if c.Global.Audit_Log_Path == `` {
		c.Global.Audit_Log_Path = defaultAuditLogPath
	}
	if c.Global.Quarantine_Dir == `` {
		c.Global.Quarantine_Dir = defaultQuarantineDir
	}
	if c.Global.Log_Level == `` {
		c.Global.Log_Level = `INFO`
	}
	if c.Global.Bus_Queue_Size <= 0 {
		c.Global.Bus_Queue_Size = defaultBusQueueSize
	}
	if c.Global.Subscriber_Queue_Size <= 0 {
		c.Global.Subscriber_Queue_Size = defaultSubscriberQueueSize
	}
	if c.Global.Max_Session_Events <= 0 {
		c.Global.Max_Session_Events = defaultMaxSessionEvents
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = defaultSSHPort
	}
	if c.SSH.Banner == `` {
		c.SSH.Banner = defaultSSHBanner
	}
	if c.SSH.Max_Auth_Attempts <= 0 {
		c.SSH.Max_Auth_Attempts = defaultMaxAuthAttempts
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = defaultHTTPPort
	}
	if c.HTTP.Server_Header == `` {
		c.HTTP.Server_Header = defaultServerHeader
	}
	if c.Telnet.Port == 0 {
		c.Telnet.Port = defaultTelnetPort
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = defaultMQTTPort
	}
	if c.Camera.Port == 0 {
		c.Camera.Port = defaultCameraPort
	}
	if c.API.Port == 0 {
		c.API.Port = defaultAPIPort
	}
}

func (c *Config) Verify() error {
	if _, err := log.LevelFromString(c.Global.Log_Level); err != nil {
		return fmt.Errorf("invalid Log-Level %q", c.Global.Log_Level)
	}
	if ip := net.ParseIP(c.Global.Bind_Addr); ip == nil {
		return fmt.Errorf("invalid Bind-Addr %q", c.Global.Bind_Addr)
	}
	if _, err := c.parseSize(c.Global.Max_Session_Bytes, defaultMaxSessionBytes); err != nil {
		return fmt.Errorf("invalid Max-Session-Bytes %q", c.Global.Max_Session_Bytes)
	}
	if _, err := c.parseSize(c.Global.Max_Upload_Bytes, defaultMaxUploadBytes); err != nil {
		return fmt.Errorf("invalid Max-Upload-Bytes %q", c.Global.Max_Upload_Bytes)
	}
	for _, v := range []struct {
		name string
		val  string
	}{
		{`Session-Idle-Timeout`, c.Global.Session_Idle_Timeout},
		{`Session-Max-Duration`, c.Global.Session_Max_Duration},
		{`Shutdown-Grace`, c.Global.Shutdown_Grace},
		{`Bus-Enqueue-Timeout`, c.Global.Bus_Enqueue_Timeout},
		{`Forwarder Timeout`, c.Forwarder.Timeout},
	} {
		if v.val == `` {
			continue
		}
		if d, err := time.ParseDuration(v.val); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q", v.name, v.val)
		}
	}
	//enabled decoys cannot share a port
	portMp := make(map[uint16]string, 8)
	for _, v := range []struct {
		name     string
		disabled bool
		port     uint16
	}{
		{`SSH`, c.SSH.Disabled, c.SSH.Port},
		{`HTTP`, c.HTTP.Disabled, c.HTTP.Port},
		{`Telnet`, c.Telnet.Disabled, c.Telnet.Port},
		{`MQTT`, c.MQTT.Disabled, c.MQTT.Port},
		{`Camera`, c.Camera.Disabled, c.Camera.Port},
		{`API`, c.API.Disabled, c.API.Port},
	} {
		if v.disabled {
			continue
		}
		if v.port == 0 {
			return fmt.Errorf("no port for enabled %s listener", v.name)
		}
		if n, ok := portMp[v.port]; ok {
			return fmt.Errorf("port %d for %s already in use by %s", v.port, v.name, n)
		}
		portMp[v.port] = v.name
	}
	if c.Forwarder.URL != `` {
		if u, err := url.Parse(c.Forwarder.URL); err != nil {
			return fmt.Errorf("invalid Forwarder URL %q %w", c.Forwarder.URL, err)
		} else if u.Scheme != `http` && u.Scheme != `https` {
			return fmt.Errorf("invalid Forwarder URL scheme %q", u.Scheme)
		}
	}
	return nil
}

func (c *Config) LogLevel() string {
	return c.Global.Log_Level
}

func (c *Config) MaxSessionBytes() int64 {
	v, _ := c.parseSize(c.Global.Max_Session_Bytes, defaultMaxSessionBytes)
	return v
}

func (c *Config) MaxUploadBytes() int64 {
	v, _ := c.parseSize(c.Global.Max_Upload_Bytes, defaultMaxUploadBytes)
	return v
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return c.parseDuration(c.Global.Session_Idle_Timeout, defaultSessionIdleTimeout)
}

func (c *Config) SessionMaxDuration() time.Duration {
	return c.parseDuration(c.Global.Session_Max_Duration, defaultSessionMaxDuration)
}

func (c *Config) ShutdownGrace() time.Duration {
	return c.parseDuration(c.Global.Shutdown_Grace, defaultShutdownGrace)
}

func (c *Config) BusEnqueueTimeout() time.Duration {
	return c.parseDuration(c.Global.Bus_Enqueue_Timeout, defaultBusEnqueueTimeout)
}

func (c *Config) ForwarderTimeout() time.Duration {
	return c.parseDuration(c.Forwarder.Timeout, 10*time.Second)
}

func (c *Config) SSHAddr() string {
	return c.addr(c.SSH.Port)
}

func (c *Config) HTTPAddr() string {
	return c.addr(c.HTTP.Port)
}

func (c *Config) TelnetAddr() string {
	return c.addr(c.Telnet.Port)
}

func (c *Config) MQTTAddr() string {
	return c.addr(c.MQTT.Port)
}

func (c *Config) CameraAddr() string {
	return c.addr(c.Camera.Port)
}

func (c *Config) APIAddr() string {
	return c.addr(c.API.Port)
}

func (c *Config) addr(port uint16) string {
	return net.JoinHostPort(c.Global.Bind_Addr, strconv.Itoa(int(port)))
}

func (c *Config) parseDuration(v string, def time.Duration) time.Duration {
	if v = strings.TrimSpace(v); v == `` {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}

// parseSize accepts either a raw byte count or a human form like 1MB
func (c *Config) parseSize(v string, def int64) (int64, error) {
	if v = strings.TrimSpace(v); v == `` {
		return def, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("size %d out of range", n)
		}
		return n, nil
	}
	bs, err := bytesize.Parse(v)
	if err != nil {
		return 0, err
	} else if bs == 0 {
		return 0, errors.New("zero size")
	}
	return int64(bs), nil
}
