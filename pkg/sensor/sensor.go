// Copyright 2025 PIR2Motion Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sensor

import (
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/livekit/protocol/logger"

	"github.com/pir2motion/pir2motion/pkg/errors"
)

const edgeTimeout = 250 * time.Millisecond

// Listener receives motion transitions. Calls are made from the sensor's
// watch goroutine and must return promptly.
type Listener interface {
	MotionStarted()
	MotionStopped()
}

type EventType int

const (
	Started EventType = iota
	Stopped
)

func (t EventType) String() string {
	switch t {
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Event struct {
	Type EventType
	At   time.Time
}

// PinOpener claims the named pin. The default initializes the host drivers and
// looks the pin up in the registry.
type PinOpener func(name string) (gpio.PinIn, error)

// PIR watches a single HC-SR501 style sensor. The output is high while motion
// is present.
type PIR struct {
	pinName  string
	debounce time.Duration
	open     PinOpener

	mu       sync.Mutex
	pin      gpio.PinIn
	listener Listener
	level    gpio.Level

	stopOnce sync.Once
	closed   core.Fuse
	done     chan struct{}
}

func NewPIR(pinName string, debounce time.Duration, open PinOpener) *PIR {
	if open == nil {
		open = openHostPin
	}
	return &PIR{
		pinName:  pinName,
		debounce: debounce,
		open:     open,
	}
}

func openHostPin(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.ErrPinUnavailable(name, err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.ErrPinUnavailable(name, nil)
	}
	return p, nil
}

// Subscribe registers the only listener, replacing any previous one.
func (s *PIR) Subscribe(l Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *PIR) Unsubscribe() {
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *PIR) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pin != nil {
		return nil
	}
	if s.closed.IsBroken() {
		return errors.ErrShutdown
	}

	p, err := s.open(s.pinName)
	if err != nil {
		if errors.Is(err, errors.ErrHardwareUnavailable) {
			return err
		}
		return errors.ErrPinUnavailable(s.pinName, err)
	}
	if err = p.In(gpio.PullDown, gpio.BothEdges); err != nil {
		_ = p.Halt()
		return errors.ErrPinUnavailable(s.pinName, err)
	}

	s.pin = p
	s.level = p.Read()
	s.done = make(chan struct{})
	go s.watch(p, s.done)

	logger.Infow("PIR sensor ready", "pin", s.pinName, "level", s.level)
	return nil
}

// Stop releases the pin. Safe to call more than once, and before Start.
func (s *PIR) Stop() {
	s.stopOnce.Do(func() {
		s.closed.Break()

		s.mu.Lock()
		p, done := s.pin, s.done
		s.mu.Unlock()

		if p == nil {
			return
		}
		<-done

		s.mu.Lock()
		s.pin = nil
		s.mu.Unlock()

		if err := p.Halt(); err != nil {
			logger.Warnw("failed to halt pin", err, "pin", s.pinName)
		}
		logger.Debugw("PIR sensor released", "pin", s.pinName)
	})
}

// Level is the last debounced level.
func (s *PIR) Level() gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *PIR) watch(p gpio.PinIn, done chan struct{}) {
	defer close(done)

	for !s.closed.IsBroken() {
		if !p.WaitForEdge(edgeTimeout) {
			continue
		}
		if s.debounce > 0 {
			select {
			case <-time.After(s.debounce):
			case <-s.closed.Watch():
				return
			}
		}
		s.handleLevel(p.Read())
	}
}

func (s *PIR) handleLevel(level gpio.Level) {
	s.mu.Lock()
	if level == s.level {
		s.mu.Unlock()
		return
	}
	s.level = level
	l := s.listener
	s.mu.Unlock()

	ev := Event{Type: Stopped, At: time.Now()}
	if level == gpio.High {
		ev.Type = Started
	}
	s.emit(l, ev, level)
}

func (s *PIR) emit(l Listener, ev Event, level gpio.Level) {
	switch ev.Type {
	case Started:
		logger.Infow("PIR: motion detected!", "level", level, "at", ev.At)
		if l != nil {
			l.MotionStarted()
		}
	case Stopped:
		logger.Infow("PIR: motion ended", "level", level, "at", ev.At)
		if l != nil {
			l.MotionStopped()
		}
	}
}
