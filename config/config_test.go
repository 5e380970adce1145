/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConf = `
[Global]
	Bind-Addr=127.0.0.1
	Log-Level=DEBUG
	Max-Session-Bytes=2MB
	Session-Idle-Timeout=30s
	Store-Path=/tmp/tv-test/events.db

[SSH]
	Port=2200
	Enable-Shell=true

[Telnet]
	Disabled=true

[Forwarder]
	URL=http://collector.example.com/ingest
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), `threatview.conf`)
	if err := os.WriteFile(p, []byte(content), 0660); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	c, err := GetConfig(``, ``)
	if err != nil {
		t.Fatal(err)
	}
	if c.Global.Bind_Addr != `0.0.0.0` {
		t.Fatalf("bad default bind addr %q", c.Global.Bind_Addr)
	}
	if c.SSH.Port != 2222 || c.Telnet.Port != 2323 || c.HTTP.Port != 8080 {
		t.Fatalf("bad default ports %d/%d/%d", c.SSH.Port, c.Telnet.Port, c.HTTP.Port)
	}
	if c.MQTT.Port != 1883 || c.Camera.Port != 5000 || c.API.Port != 8000 {
		t.Fatalf("bad default ports %d/%d/%d", c.MQTT.Port, c.Camera.Port, c.API.Port)
	}
	if c.MaxSessionBytes() != 1024*1024 {
		t.Fatalf("bad default session byte cap %d", c.MaxSessionBytes())
	}
	if c.SessionIdleTimeout() != time.Minute {
		t.Fatalf("bad default idle timeout %v", c.SessionIdleTimeout())
	}
	if c.SessionMaxDuration() != 10*time.Minute {
		t.Fatalf("bad default session cap %v", c.SessionMaxDuration())
	}
	if c.ShutdownGrace() != 5*time.Second {
		t.Fatalf("bad default grace %v", c.ShutdownGrace())
	}
	if c.Global.Bus_Queue_Size != 1024 || c.Global.Subscriber_Queue_Size != 256 {
		t.Fatalf("bad default queues %d/%d", c.Global.Bus_Queue_Size, c.Global.Subscriber_Queue_Size)
	}
	if c.SSH.Enable_Shell {
		t.Fatal("shell must default off")
	}
	if c.SSH.Max_Auth_Attempts != 5 {
		t.Fatalf("bad default auth attempts %d", c.SSH.Max_Auth_Attempts)
	}
}

func TestFileParse(t *testing.T) {
	c, err := GetConfig(writeConf(t, testConf), ``)
	if err != nil {
		t.Fatal(err)
	}
	if c.Global.Bind_Addr != `127.0.0.1` {
		t.Fatalf("bind addr not read: %q", c.Global.Bind_Addr)
	}
	if c.SSH.Port != 2200 || !c.SSH.Enable_Shell {
		t.Fatalf("ssh section not read: %d %v", c.SSH.Port, c.SSH.Enable_Shell)
	}
	if !c.Telnet.Disabled {
		t.Fatal("telnet disable not read")
	}
	if c.MaxSessionBytes() != 2*1024*1024 {
		t.Fatalf("size not parsed: %d", c.MaxSessionBytes())
	}
	if c.SessionIdleTimeout() != 30*time.Second {
		t.Fatalf("duration not parsed: %v", c.SessionIdleTimeout())
	}
	if c.Forwarder.URL == `` {
		t.Fatal("forwarder url not read")
	}
	if c.SSHAddr() != `127.0.0.1:2200` {
		t.Fatalf("bad ssh addr %q", c.SSHAddr())
	}
}

func TestFileBeatsEnv(t *testing.T) {
	t.Setenv(`SSH_PORT`, `9999`)
	c, err := GetConfig(writeConf(t, testConf), ``)
	if err != nil {
		t.Fatal(err)
	}
	if c.SSH.Port != 2200 {
		t.Fatalf("env override beat the config file: %d", c.SSH.Port)
	}
}

func TestEnvFill(t *testing.T) {
	t.Setenv(`SSH_PORT`, `2299`)
	t.Setenv(`BIND_ADDR`, `10.0.0.5`)
	t.Setenv(`QUARANTINE_DIR`, `/tmp/tv-test/q`)
	t.Setenv(`SESSION_IDLE_TIMEOUT_S`, `30`)
	t.Setenv(`SESSION_MAX_DURATION_S`, `120`)
	t.Setenv(`BUS_QUEUE_SIZE`, `64`)
	c, err := GetConfig(``, ``)
	if err != nil {
		t.Fatal(err)
	}
	if c.SSH.Port != 2299 {
		t.Fatalf("SSH_PORT not applied: %d", c.SSH.Port)
	}
	if c.Global.Bind_Addr != `10.0.0.5` {
		t.Fatalf("BIND_ADDR not applied: %q", c.Global.Bind_Addr)
	}
	if c.Global.Quarantine_Dir != `/tmp/tv-test/q` {
		t.Fatalf("QUARANTINE_DIR not applied: %q", c.Global.Quarantine_Dir)
	}
	if c.SessionIdleTimeout() != 30*time.Second {
		t.Fatalf("SESSION_IDLE_TIMEOUT_S not applied: %v", c.SessionIdleTimeout())
	}
	if c.SessionMaxDuration() != 2*time.Minute {
		t.Fatalf("SESSION_MAX_DURATION_S not applied: %v", c.SessionMaxDuration())
	}
	if c.Global.Bus_Queue_Size != 64 {
		t.Fatalf("BUS_QUEUE_SIZE not applied: %d", c.Global.Bus_Queue_Size)
	}
}

func TestEnvFileIndirection(t *testing.T) {
	p := filepath.Join(t.TempDir(), `geoip_path`)
	if err := os.WriteFile(p, []byte("/tmp/tv-test/GeoLite2-City.mmdb\n"), 0660); err != nil {
		t.Fatal(err)
	}
	t.Setenv(`GEOIP_DB_PATH_FILE`, p)
	c, err := GetConfig(``, ``)
	if err != nil {
		t.Fatal(err)
	}
	if c.Global.GeoIP_DB_Path != `/tmp/tv-test/GeoLite2-City.mmdb` {
		t.Fatalf("_FILE indirection failed: %q", c.Global.GeoIP_DB_Path)
	}
}

func TestVerifyFailures(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{`dup port`, "[SSH]\nPort=4000\n[HTTP]\nPort=4000\n"},
		{`bad level`, "[Global]\nLog-Level=chatty\n"},
		{`bad duration`, "[Global]\nSession-Idle-Timeout=sometimes\n"},
		{`bad size`, "[Global]\nMax-Session-Bytes=lots\n"},
		{`bad bind`, "[Global]\nBind-Addr=nowhere\n"},
		{`bad forwarder`, "[Forwarder]\nURL=ftp://example.com/x\n"},
	}
	for _, v := range tests {
		if _, err := GetConfig(writeConf(t, v.conf), ``); err == nil {
			t.Fatalf("%s: verify passed on bad config", v.name)
		}
	}
}

func TestOverlay(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, `10-ssh.conf`), []byte("[SSH]\nPort=2201\n"), 0660); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, `ignored.txt`), []byte("not a conf"), 0660); err != nil {
		t.Fatal(err)
	}
	c, err := GetConfig(``, dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.SSH.Port != 2201 {
		t.Fatalf("overlay not applied: %d", c.SSH.Port)
	}
}
