/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package enrich

import (
	"strings"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
)

type credPair struct {
	user string
	pass string
}

// credential pairs every botnet tries first
var weakPairs = map[credPair]bool{
	{`admin`, `admin`}:     true,
	{`root`, `root`}:       true,
	{`admin`, `1234`}:      true,
	{`admin`, `password`}:  true,
	{`root`, `password`}:   true,
	{`user`, `user`}:       true,
	{`test`, `test`}:       true,
	{`guest`, `guest`}:     true,
	{`support`, `support`}: true,
}

var suspiciousCommands = []string{
	`wget`, `curl`, `chmod`, `rm `, `mkdir`, `cd /`, `passwd`,
	`cat /etc/passwd`, `chroot`, `dd if=`, `nc `, `netcat`,
	`python -c`, `perl -e`, `php `, `exec `, `eval(`, `base64 -d`,
}

var sensitivePaths = []string{
	`/admin`, `/config`, `/login`, `/shell`, `/cmd`,
}

var scannerAgents = []string{
	`sqlmap`, `nikto`, `nessus`,
}

// Score applies the additive risk rules to a capture and returns the
// saturated 0-100 score. Credential matches are exact; command, path
// and user agent matches are case insensitive substring checks, each
// rule firing at most once.
func Score(rc *capture.RawCapture) (score int) {
	d := rc.Details
	if rc.EventType == capture.EventAuthAttempt {
		if weakPairs[credPair{d.Username, d.Password}] {
			score += 30
		}
		if d.Username == `root` || d.Username == `admin` {
			score += 20
		}
		if d.Username == `` || d.Password == `` {
			score += 10
		}
	}
	switch rc.Service {
	case capture.ServiceSSH:
		score += 10
	case capture.ServiceTelnet:
		score += 15
	}
	if rc.EventType == capture.EventCommand {
		score += 20
		cmd := strings.ToLower(d.Command)
		for _, s := range suspiciousCommands {
			if strings.Contains(cmd, s) {
				score += 25
				break
			}
		}
	}
	if rc.EventType == capture.EventHTTPRequest {
		url := strings.ToLower(d.Path)
		if d.Query != `` {
			url += `?` + strings.ToLower(d.Query)
		}
		for _, p := range sensitivePaths {
			if strings.Contains(url, p) {
				score += 20
				break
			}
		}
		if ua := strings.ToLower(d.UserAgent); ua != `` {
			for _, a := range scannerAgents {
				if strings.Contains(ua, a) {
					score += 30
					break
				}
			}
		}
	}
	return capture.ClampRisk(score)
}
