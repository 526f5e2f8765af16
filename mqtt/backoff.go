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

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// delayedPoll is a jittered exponential backoff for the reconnect/poll
// retry loop, grounded on the original SDK's retry::DelaiedPoll (the typo is
// the original's, not reproduced here).
type delayedPoll struct {
	b backoff.BackOff
}

// newDelayedPoll builds a backoff whose base interval starts at 500ms and
// grows (by the library's default factor of 1.5) to at most 30s; each wait
// is that interval randomized by the library's default ±50%, so a single
// wait can exceed 30s. There is no elapsed-time limit: the connection keeps
// retrying until the caller's context is cancelled.
func newDelayedPoll() *delayedPoll {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0
	return &delayedPoll{b: eb}
}

// reset clears accumulated backoff state after a successful poll, so the
// next failure starts again from the initial interval.
func (d *delayedPoll) reset() {
	d.b.Reset()
}

// wait sleeps for the next backoff interval, or returns ctx.Err() if the
// context is cancelled first.
func (d *delayedPoll) wait(ctx context.Context) error {
	next := d.b.NextBackOff()
	if next == backoff.Stop {
		next = 30 * time.Second
	}

	t := time.NewTimer(next)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
