// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"fmt"
	"iter"

	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/packets"
	"github.com/DataDog/datalink-traceroute/result"
	"github.com/DataDog/datalink-traceroute/telemetry"
)

// openChannel is replaced in tests
var openChannel = func(desc iface.Descriptor) (probeChannel, error) {
	return packets.NewChannel(desc)
}

// Session is one traceroute walk. Hops are produced either lazily through
// Next/All or eagerly through Run, which drains the same sequence. A Session
// must be driven from a single goroutine and cannot be restarted.
type Session struct {
	cfg     Config
	engine  *hopEngine
	channel probeChannel
	closed  bool
}

type sessionOptions struct {
	metrics *telemetry.Metrics
}

// Option customizes a Session
type Option func(*sessionOptions)

// WithMetrics records probe and hop counts into m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *sessionOptions) {
		o.metrics = m
	}
}

// New validates cfg and opens the raw channel on its interface. Nothing is
// sent until the first hop is requested.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	channel, err := openChannel(cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return newSession(cfg, channel, opts...)
}

func newSession(cfg Config, channel probeChannel, opts ...Option) (*Session, error) {
	var options sessionOptions
	for _, opt := range opts {
		opt(&options)
	}

	srcIP, err := cfg.Interface.SourceIPv4()
	if err != nil {
		channel.Close()
		return nil, err
	}
	builder, err := packets.NewFrameBuilder(cfg.Protocol, cfg.Interface.MAC, srcIP, cfg.FrameSize)
	if err != nil {
		channel.Close()
		return nil, err
	}

	return &Session{
		cfg:     cfg,
		engine:  newHopEngine(cfg, builder, channel, options.metrics),
		channel: channel,
	}, nil
}

// Config returns the configuration the session was created with
func (s *Session) Config() Config {
	return s.cfg
}

// Next probes the next TTL. It returns false once the walk is over, and keeps
// returning false afterwards. The channel is released as soon as the walk
// ends.
func (s *Session) Next() (result.TracerouteHop, bool) {
	if s.closed {
		return result.TracerouteHop{}, false
	}
	hop, ok := s.engine.advance()
	if s.engine.done {
		s.release()
	}
	return hop, ok
}

// All returns the remaining hops as a single-pass sequence
func (s *Session) All() iter.Seq[result.TracerouteHop] {
	return func(yield func(result.TracerouteHop) bool) {
		for {
			hop, ok := s.Next()
			if !ok || !yield(hop) {
				return
			}
		}
	}
}

// Run drains the remaining hops. ctx is checked between hops; on
// cancellation the hops gathered so far are returned with ctx's error.
func (s *Session) Run(ctx context.Context) ([]result.TracerouteHop, error) {
	hops := make([]result.TracerouteHop, 0, s.cfg.MaxHopCount())
	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return hops, err
		}
		hop, ok := s.Next()
		if !ok {
			break
		}
		hops = append(hops, hop)
	}
	return hops, s.Err()
}

// Err returns the channel failure that ended the walk, if any
func (s *Session) Err() error {
	return s.engine.err
}

// Close releases the channel. The session yields nothing afterwards.
func (s *Session) Close() error {
	s.engine.done = true
	return s.release()
}

func (s *Session) release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.channel.Close()
}
