/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package capture

import (
	"net"
	"time"
)

// canonical event types; the raw connection/disconnect pair is renamed
// on enrichment so consumers see session lifecycle names
const (
	EventConnectionOpened EventType = `connection_opened`
	EventSessionClosed    EventType = `session_closed`
)

type RiskLevel string

const (
	RiskInfo   RiskLevel = `info`
	RiskLow    RiskLevel = `low`
	RiskMedium RiskLevel = `medium`
	RiskHigh   RiskLevel = `high`
)

const MaxRiskScore = 100

// CanonicalEvent is the enriched, immutable form of a RawCapture. Once
// published on the bus nothing may mutate it.
type CanonicalEvent struct {
	EventID    uint64      `json:"event_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Service    Service     `json:"service"`
	EventType  EventType   `json:"event_type"`
	SessionID  string      `json:"session_id,omitempty"`
	SourceIP   net.IP      `json:"source_ip"`
	SourcePort int         `json:"source_port"`
	SourceHost string      `json:"source_host,omitempty"`
	Geo        *GeoInfo    `json:"geo"`
	RiskScore  int         `json:"risk_score"`
	RiskLevel  RiskLevel   `json:"risk_level"`
	Payload    Details     `json:"payload"`
	Raw        *RawCapture `json:"raw,omitempty"`
}

// GeoInfo carries either a resolved location or an Error string, never
// both.
type GeoInfo struct {
	Country        string  `json:"country,omitempty"`
	CountryCode    string  `json:"country_code,omitempty"`
	City           string  `json:"city,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	AccuracyRadius uint16  `json:"accuracy_radius,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// RiskLevelFor buckets a score into its level. This is the only place
// the level is derived from the score.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score < 20:
		return RiskInfo
	case score < 40:
		return RiskLow
	case score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ClampRisk saturates an accumulated score at MaxRiskScore.
func ClampRisk(score int) int {
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// CanonicalType maps a raw event type onto the name consumers see.
func CanonicalType(raw EventType) EventType {
	switch raw {
	case EventConnection:
		return EventConnectionOpened
	case EventDisconnect:
		return EventSessionClosed
	}
	return raw
}
