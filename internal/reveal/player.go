// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"sync"
	"time"
)

// Frame is one rendered step of a stream.
type Frame struct {
	Key    string
	Prefix string
	Offset int // byte offset of Prefix within the full text
	Total  int // byte length of the full text
	Done   bool
	Gen    uint64
}

// Sink receives frames. It is called serially and must not call back into
// the Player that invoked it.
type Sink func(Frame)

type playback struct {
	stream *Stream
	gen    uint64
	stop   chan struct{}
}

// =============================================================================
// PLAYER
// =============================================================================

// Player owns one stream per key. With a positive interval each stream is
// advanced by its own ticker goroutine; with a zero interval the caller
// pulls frames with Advance.
//
// Play on a key that already has a stream cancels it first. Frames are
// delivered under an emit lock and re-checked against the current
// generation, so a cancelled stream never emits after its replacement.
type Player struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	interval time.Duration
	opts     Options
	sink     Sink

	streams map[string]*playback
	gen     uint64
}

// NewPlayer creates a player. sink may be nil.
func NewPlayer(interval time.Duration, opts Options, sink Sink) *Player {
	if interval < 0 {
		interval = 0
	}
	return &Player{
		interval: interval,
		opts:     opts,
		sink:     sink,
		streams:  make(map[string]*playback),
	}
}

// Play starts revealing text under key, replacing any stream for that key.
// The initial empty frame is emitted and returned.
func (p *Player) Play(key, text string) Frame {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	p.stopLocked(key)
	p.gen++
	pb := &playback{
		stream: NewStream(text, p.opts),
		gen:    p.gen,
		stop:   make(chan struct{}),
	}
	p.streams[key] = pb
	frame := p.stepLocked(key, pb)
	if frame.Done {
		p.stopLocked(key)
	} else if p.interval > 0 {
		go p.run(key, pb)
	}
	p.mu.Unlock()

	p.emit(frame)
	return frame
}

// Advance pulls the next frame for key. ok is false if no stream is active.
func (p *Player) Advance(key string) (Frame, bool) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	pb, ok := p.streams[key]
	if !ok {
		p.mu.Unlock()
		return Frame{}, false
	}
	frame := p.stepLocked(key, pb)
	if frame.Done {
		p.stopLocked(key)
	}
	p.mu.Unlock()

	p.emit(frame)
	return frame, true
}

// Finish reveals the rest of key's text at once and releases the stream.
func (p *Player) Finish(key string) (Frame, bool) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	pb, ok := p.streams[key]
	if !ok {
		p.mu.Unlock()
		return Frame{}, false
	}
	text := pb.stream.SkipToEnd()
	frame := Frame{Key: key, Prefix: text, Offset: len(text), Total: len(text), Done: true, Gen: pb.gen}
	p.stopLocked(key)
	p.mu.Unlock()

	p.emit(frame)
	return frame, true
}

// Stop cancels key's stream without emitting anything further.
func (p *Player) Stop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked(key)
}

// StopAll cancels every stream.
func (p *Player) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.streams {
		p.stopLocked(key)
	}
}

// Active reports whether key has an unfinished stream.
func (p *Player) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.streams[key]
	return ok
}

// Rekey moves a stream to a new key, used when a draft is saved and gains
// its permanent id.
func (p *Player) Rekey(oldKey, newKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pb, ok := p.streams[oldKey]
	if !ok || oldKey == newKey {
		return
	}
	p.stopLocked(newKey)
	delete(p.streams, oldKey)
	close(pb.stop)

	// restart the ticker under the new key from the current position
	p.gen++
	moved := &playback{stream: pb.stream, gen: p.gen, stop: make(chan struct{})}
	p.streams[newKey] = moved
	if p.interval > 0 {
		go p.run(newKey, moved)
	}
}

func (p *Player) run(key string, pb *playback) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-pb.stop:
			return
		case <-ticker.C:
			if done := p.tick(key, pb); done {
				return
			}
		}
	}
}

// tick advances pb if it is still the current stream for key.
func (p *Player) tick(key string, pb *playback) bool {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	cur, ok := p.streams[key]
	if !ok || cur.gen != pb.gen {
		p.mu.Unlock()
		return true
	}
	frame := p.stepLocked(key, pb)
	if frame.Done {
		p.stopLocked(key)
	}
	p.mu.Unlock()

	p.emit(frame)
	return frame.Done
}

func (p *Player) stepLocked(key string, pb *playback) Frame {
	prefix, ok := pb.stream.Next()
	if !ok {
		prefix = pb.stream.Current()
	}
	return Frame{
		Key:    key,
		Prefix: prefix,
		Offset: pb.stream.Offset(),
		Total:  len(pb.stream.Text()),
		Done:   pb.stream.Done(),
		Gen:    pb.gen,
	}
}

func (p *Player) stopLocked(key string) {
	pb, ok := p.streams[key]
	if !ok {
		return
	}
	close(pb.stop)
	delete(p.streams, key)
}

func (p *Player) emit(f Frame) {
	if p.sink != nil {
		p.sink(f)
	}
}
