// Package simulator produces simulated heart-rate readings during a session.
package simulator

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/pkg/models"
)

const (
	minHeartRate = 50
	maxHeartRate = 160
	maxStep      = 4
)

// Target is the loop the simulator drives.
type Target interface {
	UpdateActiveBio(next func(models.BioSnapshot) models.BioSnapshot) (bool, error)
}

// Simulator random-walks the heart rate of an active session.
type Simulator struct {
	target   Target
	rng      *rand.Rand
	interval time.Duration
	mu       sync.Mutex
}

// New creates a Simulator ticking every interval. seed makes runs reproducible.
func New(target Target, interval time.Duration, seed uint64) *Simulator {
	return &Simulator{
		target:   target,
		interval: interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Run ticks until ctx is done.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", s.interval).Msg("Bio simulator running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick pushes one reading if a session is active. It reports whether it did.
func (s *Simulator) Tick() bool {
	applied, err := s.target.UpdateActiveBio(s.Step)
	if err != nil {
		log.Debug().Err(err).Msg("Simulated reading rejected")
		return false
	}
	return applied
}

// Step returns the next reading after bio.
func (s *Simulator) Step(bio models.BioSnapshot) models.BioSnapshot {
	s.mu.Lock()
	delta := s.rng.IntN(2*maxStep+1) - maxStep
	s.mu.Unlock()

	hr := min(max(bio.HeartRate+delta, minHeartRate), maxHeartRate)
	return models.BioSnapshot{
		HeartRate:   hr,
		StressLevel: StressFor(hr),
		Activity:    bio.Activity,
	}
}

// StressFor maps a heart rate to a stress level.
func StressFor(hr int) models.StressLevel {
	switch {
	case hr >= 105:
		return models.StressHigh
	case hr >= 88:
		return models.StressMedium
	default:
		return models.StressLow
	}
}
