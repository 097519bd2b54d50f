// ALN Orchestrator - Real-Time Coordination for Live Immersive Games
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aln-orchestrator

package models

// Clone deep-copies the session for snapshots and write rollback.
// Transactions are shared by pointer: once appended they are never
// mutated, so copying the slice header is enough. Everything that does
// mutate in place (score cards, device records, queue mirror, claim sets)
// is copied for real.
func (s *Session) Clone() *Session {
	c := *s

	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}

	c.Teams = append([]string(nil), s.Teams...)
	c.Transactions = append([]*Transaction(nil), s.Transactions...)

	c.Scores = make(map[string]*TeamScore, len(s.Scores))
	for team, card := range s.Scores {
		c.Scores[team] = card.Clone()
	}

	c.ConnectedDevices = make(map[string]*DeviceConnection, len(s.ConnectedDevices))
	for id, device := range s.ConnectedDevices {
		c.ConnectedDevices[id] = device.Clone()
	}

	c.VideoQueue = make([]*VideoQueueItem, len(s.VideoQueue))
	for i, item := range s.VideoQueue {
		c.VideoQueue[i] = item.Clone()
	}

	c.ScannedTokensByDevice = make(map[string][]string, len(s.ScannedTokensByDevice))
	for device, tokens := range s.ScannedTokensByDevice {
		c.ScannedTokensByDevice[device] = append([]string(nil), tokens...)
	}

	c.Metadata = make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}

	return &c
}

// Clone copies the device record.
func (d *DeviceConnection) Clone() *DeviceConnection {
	c := *d
	if d.DisconnectionTime != nil {
		t := *d.DisconnectionTime
		c.DisconnectionTime = &t
	}
	return &c
}

// Clone copies the queue item.
func (v *VideoQueueItem) Clone() *VideoQueueItem {
	c := *v
	if v.Duration != nil {
		d := *v.Duration
		c.Duration = &d
	}
	if v.StartedAt != nil {
		t := *v.StartedAt
		c.StartedAt = &t
	}
	if v.ExpectedEndTime != nil {
		t := *v.ExpectedEndTime
		c.ExpectedEndTime = &t
	}
	return &c
}
