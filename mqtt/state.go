// Copyright © 2023 SECO Mind Srl
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

package mqtt

import "sync"

// connState is the transport's connection state, per §4.H:
//
//	Disconnected -> Connecting -> SessionEstablished -> Running -> (Disconnected | Draining)
type connState int

const (
	Disconnected connState = iota
	Connecting
	SessionEstablished
	Running
	Draining
)

func (s connState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case SessionEstablished:
		return "session-established"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// stateMachine guards connState behind a mutex and logs every transition.
// It has no knowledge of MQTT itself: Transport calls transition whenever
// the underlying client reports a state-changing event.
type stateMachine struct {
	mu    sync.Mutex
	state connState
	log   logFn
}

type logFn func(from, to connState)

func newStateMachine(log logFn) *stateMachine {
	return &stateMachine{state: Disconnected, log: log}
}

func (m *stateMachine) current() connState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) transition(to connState) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()
	if from != to && m.log != nil {
		m.log(from, to)
	}
}
