package stores

import (
	"crypto/subtle"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// Captcha is the single live captcha challenge of a session.
type Captcha struct {
	Text      string
	CreatedAt time.Time
}

// OTP is a one-time verification code bound to an identity on one delivery channel.
type OTP struct {
	ID          string
	Code        string
	Identity    string
	Channel     uint8
	MessageType string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Consumed    bool
}

// IsExpired reports whether c is no longer valid at now. The expiry instant
// itself is already expired.
func IsExpired(c OTP, now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// MatchOutcome is the result of MatchAndConsumeOtp.
type MatchOutcome uint8

const (
	MatchAbsent MatchOutcome = iota
	MatchExpired
	MatchMismatch
	Matched
)

func (m MatchOutcome) String() string {
	switch m {
	case MatchExpired:
		return "expired"
	case MatchMismatch:
		return "mismatch"
	case Matched:
		return "matched"
	default:
		return "absent"
	}
}

// ChallengeStore keeps captcha and OTP challenges in memory, keyed by an
// opaque session key. Every operation on one key runs under that key's entry
// lock; entries are striped across shards so unrelated keys rarely contend.
type ChallengeStore struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	dead    bool
	captcha *Captcha
	otps    map[uint8]OTP
}

func (e *entry) empty() bool {
	return e.captcha == nil && len(e.otps) == 0
}

// NewChallengeStore returns an empty store.
func NewChallengeStore() *ChallengeStore {
	s := &ChallengeStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*entry)
	}
	return s
}

func (s *ChallengeStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// with runs fn while holding key's entry lock. Lock order is shard, released,
// then entry; an emptied entry is unlinked while its lock is still held so a
// concurrent caller that already fetched it retries against a fresh entry.
func (s *ChallengeStore) with(key string, create bool, fn func(*entry)) {
	sh := s.shardFor(key)
	for {
		sh.mu.Lock()
		e, ok := sh.sessions[key]
		if !ok {
			if !create {
				sh.mu.Unlock()
				return
			}
			e = &entry{}
			sh.sessions[key] = e
		}
		sh.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		fn(e)
		if e.empty() {
			e.dead = true
			sh.mu.Lock()
			if sh.sessions[key] == e {
				delete(sh.sessions, key)
			}
			sh.mu.Unlock()
		}
		e.mu.Unlock()
		return
	}
}

// PutCaptcha stores c as the session's captcha, replacing any previous one.
func (s *ChallengeStore) PutCaptcha(key string, c Captcha) {
	s.with(key, true, func(e *entry) {
		e.captcha = &c
	})
}

// TakeCaptcha removes and returns the session's captcha.
func (s *ChallengeStore) TakeCaptcha(key string) (Captcha, bool) {
	var (
		out Captcha
		ok  bool
	)
	s.with(key, false, func(e *entry) {
		if e.captcha == nil {
			return
		}
		out, ok = *e.captcha, true
		e.captcha = nil
	})
	return out, ok
}

// PutOtp stores c in the session's slot for channel, replacing any previous one.
func (s *ChallengeStore) PutOtp(key string, channel uint8, c OTP) {
	c.Channel = channel
	c.Consumed = false
	s.with(key, true, func(e *entry) {
		if e.otps == nil {
			e.otps = make(map[uint8]OTP, 2)
		}
		e.otps[channel] = c
	})
}

// PeekOtp returns the challenge in the slot for channel without removing it.
// Expiry is not checked.
func (s *ChallengeStore) PeekOtp(key string, channel uint8) (OTP, bool) {
	var (
		out OTP
		ok  bool
	)
	s.with(key, false, func(e *entry) {
		out, ok = e.otps[channel]
	})
	return out, ok
}

// MatchAndConsumeOtp checks the challenge for channel against identity and
// code and consumes it on a match, all under one lock. An expired challenge
// is evicted. A mismatch leaves the challenge in place.
func (s *ChallengeStore) MatchAndConsumeOtp(key string, channel uint8, identity, code string, now time.Time) (OTP, MatchOutcome) {
	var out OTP
	outcome := MatchAbsent
	s.with(key, false, func(e *entry) {
		c, ok := e.otps[channel]
		if !ok {
			return
		}
		if IsExpired(c, now) {
			delete(e.otps, channel)
			out, outcome = c, MatchExpired
			return
		}
		codeOK := subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) == 1
		identityOK := c.Identity == identity
		if !codeOK || !identityOK {
			out, outcome = c, MatchMismatch
			return
		}
		delete(e.otps, channel)
		c.Consumed = true
		out, outcome = c, Matched
	})
	return out, outcome
}

// RestoreOtp puts a previously consumed challenge back when the slot is still
// empty and the challenge has not expired. It reports whether c was restored.
func (s *ChallengeStore) RestoreOtp(key string, channel uint8, c OTP, now time.Time) bool {
	if IsExpired(c, now) {
		return false
	}
	restored := false
	c.Consumed = false
	s.with(key, true, func(e *entry) {
		if _, taken := e.otps[channel]; taken {
			return
		}
		if e.otps == nil {
			e.otps = make(map[uint8]OTP, 2)
		}
		e.otps[channel] = c
		restored = true
	})
	return restored
}

// Drop removes every challenge of the session.
func (s *ChallengeStore) Drop(key string) {
	s.with(key, false, func(e *entry) {
		e.captcha = nil
		clear(e.otps)
	})
}

// Sweep evicts expired OTPs and captchas created more than captchaMaxAge
// before now. A non-positive captchaMaxAge keeps captchas. It returns the
// number of evicted challenges.
func (s *ChallengeStore) Sweep(now time.Time, captchaMaxAge time.Duration) int {
	evicted := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		keys := make([]string, 0, len(sh.sessions))
		for k := range sh.sessions {
			keys = append(keys, k)
		}
		sh.mu.Unlock()

		for _, k := range keys {
			s.with(k, false, func(e *entry) {
				for ch, c := range e.otps {
					if IsExpired(c, now) {
						delete(e.otps, ch)
						evicted++
					}
				}
				if e.captcha != nil && captchaMaxAge > 0 && now.Sub(e.captcha.CreatedAt) >= captchaMaxAge {
					e.captcha = nil
					evicted++
				}
			})
		}
	}
	return evicted
}

// Len returns the number of sessions holding at least one challenge.
func (s *ChallengeStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}
