/**
 * Copyright 2025-present pAION Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sweeper periodically completes governance proposals whose voting
// window has closed. The sweep itself is idempotent, so overlapping or
// repeated runs are harmless.
package sweeper

import (
	"context"
	"time"

	"paion-ledger-go/internal/governance"

	"go.uber.org/zap"
)

type Sweeper struct {
	governance *governance.Service
	interval   time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

func New(governanceService *governance.Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		governance: governanceService,
		interval:   interval,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting proposal sweeper", zap.Duration("interval", s.interval))
	go s.sweepLoop(ctx)
}

// Stop gracefully stops the sweeper, waiting for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping proposal sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Proposal sweeper stopped")
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	closed, err := s.governance.CloseExpiredProposals(ctx)
	if err != nil {
		zap.L().Error("Proposal sweep failed", zap.Error(err))
		return
	}
	for _, proposal := range closed {
		zap.L().Info("Proposal completed",
			zap.String("proposal_id", proposal.Id),
			zap.String("title", proposal.Title),
			zap.Time("end_date", proposal.EndDate))
	}
}
