package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Recorder tracks bridge-level telemetry across decode sessions.
type Recorder struct {
	log *slog.Logger

	totalSessions   atomic.Uint64
	activeSessions  atomic.Int64
	totalUtterances atomic.Uint64
	totalChunks     atomic.Uint64
	totalFrames     atomic.Uint64
	totalPartials   atomic.Uint64
	totalFinals     atomic.Uint64
	totalEmpties    atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalSessions   uint64
	ActiveSessions  int64
	TotalUtterances uint64
	TotalChunks     uint64
	TotalFrames     uint64
	TotalPartials   uint64
	TotalFinals     uint64
	TotalEmpties    uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalSessions:   r.totalSessions.Load(),
		ActiveSessions:  r.activeSessions.Load(),
		TotalUtterances: r.totalUtterances.Load(),
		TotalChunks:     r.totalChunks.Load(),
		TotalFrames:     r.totalFrames.Load(),
		TotalPartials:   r.totalPartials.Load(),
		TotalFinals:     r.totalFinals.Load(),
		TotalEmpties:    r.totalEmpties.Load(),
	}
}

// SessionMetrics accumulates statistics for a single decode session.
type SessionMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	sessionID string

	started    time.Time
	utterances int
	chunks     int
	frames     int
	partials   int
	finals     int
	empties    int
	closed     atomic.Bool
}

// StartSession initialises a SessionMetrics instance bound to the recorder.
func (r *Recorder) StartSession(sessionID string) *SessionMetrics {
	if r == nil {
		return nil
	}
	r.totalSessions.Add(1)
	r.activeSessions.Add(1)
	return &SessionMetrics{
		recorder:  r,
		log:       r.log.With("session_id", sessionID),
		sessionID: sessionID,
		started:   time.Now(),
	}
}

// Finish logs a session summary and updates active session counters.
func (s *SessionMetrics) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	defer s.recorder.activeSessions.Add(-1)

	duration := time.Since(s.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"utterances", s.utterances,
		"chunks", s.chunks,
		"frames", s.frames,
		"partials", s.partials,
		"finals", s.finals,
		"empties", s.empties,
	}
	if err != nil {
		s.log.Error("session completed with error", append(args, "error", err)...)
		return
	}
	s.log.Info("session completed", args...)
}

// UtteranceMetrics accumulates statistics for one utterance.
type UtteranceMetrics struct {
	session *SessionMetrics
	log     *slog.Logger

	started  time.Time
	chunks   int
	frames   int
	partials int
}

// StartUtterance initialises an UtteranceMetrics instance bound to the
// session. The utterance is not counted until its first chunk is recorded,
// so a read that only finds the termination chunk leaves the counters alone.
func (s *SessionMetrics) StartUtterance(utteranceID string) *UtteranceMetrics {
	if s == nil {
		return nil
	}
	return &UtteranceMetrics{
		session: s,
		log:     s.log.With("utterance_id", utteranceID),
		started: time.Now(),
	}
}

// RecordChunk updates counters for an accepted score chunk. The first chunk
// also counts the utterance itself.
func (u *UtteranceMetrics) RecordChunk(frames int) {
	if u == nil {
		return
	}
	if u.chunks == 0 {
		u.session.utterances++
		u.session.recorder.totalUtterances.Add(1)
	}
	u.chunks++
	u.frames += frames
	u.session.chunks++
	u.session.frames += frames
	u.session.recorder.totalChunks.Add(1)
	u.session.recorder.totalFrames.Add(uint64(frames))

	u.log.Debug("chunk accepted", "frames", frames, "total_frames", u.frames)
}

// RecordPartial counts an emitted partial result.
func (u *UtteranceMetrics) RecordPartial(words int) {
	if u == nil {
		return
	}
	u.partials++
	u.session.partials++
	u.session.recorder.totalPartials.Add(1)

	u.log.Debug("partial emitted", "words", words)
}

// RecordFinal counts an emitted final result.
func (u *UtteranceMetrics) RecordFinal(hypotheses int) {
	if u == nil {
		return
	}
	u.session.finals++
	u.session.recorder.totalFinals.Add(1)

	u.log.Debug("final emitted", "hypotheses", hypotheses)
}

// RecordEmpty counts an utterance finalized with zero decoded frames.
func (u *UtteranceMetrics) RecordEmpty() {
	if u == nil {
		return
	}
	u.session.empties++
	u.session.recorder.totalEmpties.Add(1)

	u.log.Debug("empty result emitted")
}

// Finish logs an utterance summary.
func (u *UtteranceMetrics) Finish(framesDecoded int, err error) {
	if u == nil {
		return
	}
	duration := time.Since(u.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"chunks", u.chunks,
		"frames_decoded", framesDecoded,
		"partials", u.partials,
	}
	if err != nil {
		u.log.Warn("utterance ended with error", append(args, "error", err)...)
		return
	}
	u.log.Debug("utterance completed", args...)
}
