package idgen

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ID generator
// ============================================================================
//
// Transfer references must be unique across service instances, roughly
// time-ordered (index friendly) and must not leak ledger volume the way an
// auto-increment id would.
//
// Layout (64 bits):
//
//   0 | 41 bits timestamp (ms since epoch) | 10 bits worker | 12 bits sequence
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within 0-%d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets up the default generator. Only the first call has effect.
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewSnowflake(workerID)
	})
	return err
}

// NextID draws from the default generator, falling back to worker 1 when
// Init was never called.
func NextID() int64 {
	_ = Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateTransferReference returns the public reference of a ledger entry.
// Format: TRF + yyyyMMddHHmmss + last 8 digits of a snowflake id,
// e.g. TRF2024011514305212345678.
func GenerateTransferReference() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("TRF%s%08d", timestamp, id%100000000)
}

var (
	numberMu  sync.Mutex
	numberRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateAccountNumber returns a random CTA-XXXXXX number. Uniqueness is the
// caller's job: check the store and draw again on collision.
func GenerateAccountNumber() string {
	numberMu.Lock()
	n := 100000 + numberRng.Intn(900000)
	numberMu.Unlock()
	return fmt.Sprintf("CTA-%06d", n)
}
