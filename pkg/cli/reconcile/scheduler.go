/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reconcile

import (
	"sync"
	"time"
)

// Scheduler defers a push until page events stop arriving. Scheduling replaces the
// pending push, so only the latest one runs.
type Scheduler struct {
	delay time.Duration
	run   func(bookHash string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	gen     uint64
	wg      sync.WaitGroup
}

// NewScheduler returns a scheduler calling run after delay
func NewScheduler(delay time.Duration, run func(bookHash string)) *Scheduler {
	return &Scheduler{
		delay: delay,
		run:   run,
	}
}

// stop cancels the timer. The caller must hold mu.
func (s *Scheduler) stop() {
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	s.gen++
}

// Schedule replaces the pending push with one for the given book
func (s *Scheduler) Schedule(bookHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stop()
	s.pending = bookHash

	gen := s.gen
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.fire(gen)
	})
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == "" {
		s.mu.Unlock()
		return
	}
	bookHash := s.pending
	s.pending = ""
	s.timer = nil
	s.mu.Unlock()

	s.run(bookHash)
}

// Pending returns the book of the pending push
func (s *Scheduler) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending, s.pending != ""
}

// Cancel drops the pending push. It returns false if there was none.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.pending != ""
	s.stop()
	s.pending = ""

	return had
}

// Flush runs the pending push now, if any
func (s *Scheduler) Flush() {
	s.mu.Lock()
	bookHash := s.pending
	s.stop()
	s.pending = ""
	s.mu.Unlock()

	if bookHash != "" {
		s.run(bookHash)
	}
}

// Wait blocks until fired pushes return
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
