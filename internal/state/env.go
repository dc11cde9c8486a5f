package state

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"farmScope/internal/faults"
	"farmScope/internal/metrics"
	"farmScope/internal/model"
)

// Config configures an Env.
type Config struct {
	// Context bounds calls to external collaborators such as an RPC oracle.
	Context context.Context
	ChainID uint64
	Clock   Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type pendingLog struct {
	name   string
	record model.LogRecord
}

// Env is the execution environment shared by every pool, the factory and the
// manager. It orders top-level calls, fixes the clock for the duration of a
// transition, and reverts all journaled mutations and emitted logs when a
// transition fails. Env is not safe for concurrent use; callers serialize
// top-level calls the way blocks serialize transactions.
type Env struct {
	ctx     context.Context
	chainID uint64
	clock   Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	journal   Journal
	depth     int
	txTime    uint64
	lastTime  uint64
	pending   []pendingLog
	committed []model.LogRecord
	txCount   uint64
}

func NewEnv(cfg Config) *Env {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	return &Env{
		ctx:     cfg.Context,
		chainID: cfg.ChainID,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Context returns the context for calls leaving the process.
func (e *Env) Context() context.Context {
	return e.ctx
}

// ChainID returns the chain id stamped on emitted logs.
func (e *Env) ChainID() uint64 {
	return e.chainID
}

// Logger returns the environment logger.
func (e *Env) Logger() *zap.Logger {
	return e.logger
}

// Journal returns the undo log of the running transition.
func (e *Env) Journal() *Journal {
	return &e.journal
}

// Now returns ledger time. Inside a transition it is fixed at the value read
// when the outermost call started.
func (e *Env) Now() uint64 {
	if e.depth > 0 {
		return e.txTime
	}
	now := e.clock.Now()
	if now < e.lastTime {
		now = e.lastTime
	}
	return now
}

// InTransition reports whether a call is executing.
func (e *Env) InTransition() bool {
	return e.depth > 0
}

// Run executes fn as one all-or-nothing transition. Nested calls, such as a
// re-entrant call made from a transfer hook, share the outer transition but
// revert only their own mutations when they fail.
func (e *Env) Run(component, operation string, fn func() error) (err error) {
	top := e.depth == 0
	var started time.Time
	if top {
		started = time.Now()
		e.txTime = e.Now()
		e.lastTime = e.txTime
	}

	snapshot := e.journal.Snapshot()
	logMark := len(e.pending)
	e.depth++

	defer func() {
		r := recover()
		e.depth--
		if r != nil {
			err = fmt.Errorf("%s %s panicked: %v", component, operation, r)
		}
		if err != nil {
			e.journal.RevertToSnapshot(snapshot)
			e.pending = e.pending[:logMark]
		}
		if top {
			e.finish(component, operation, err, time.Since(started))
		}
		if r != nil {
			panic(r)
		}
	}()

	return fn()
}

func (e *Env) finish(component, operation string, err error, elapsed time.Duration) {
	kind := faults.Kind(err)
	if err == nil {
		e.commit()
	} else {
		e.logger.Debug("transition reverted",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	e.journal.Reset()
	e.pending = nil
	e.metrics.ObserveOperation(component, operation, kind, elapsed)
}

func (e *Env) commit() {
	if len(e.pending) == 0 {
		return
	}
	e.txCount++
	blockHash := e.hashOf("block", e.txCount)
	txHash := e.hashOf("tx", e.txCount)
	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)

	for i, entry := range e.pending {
		record := entry.record
		record.ChainID = e.chainID
		record.BlockNumber = e.txCount
		record.BlockHash = blockHash.Hex()
		record.TxHash = txHash.Hex()
		record.LogIndex = uint64(i)
		record.Timestamp = e.txTime
		record.IngestedAt = ingestedAt
		e.committed = append(e.committed, record)
		e.metrics.ObserveEvent(entry.name)
	}
}

// Emit queues an event log. The log is published only if the outermost
// transition commits.
func (e *Env) Emit(name string, address common.Address, topics []common.Hash, data []byte) {
	hexTopics := make([]string, 0, len(topics))
	for _, topic := range topics {
		hexTopics = append(hexTopics, topic.Hex())
	}
	e.pending = append(e.pending, pendingLog{
		name: name,
		record: model.LogRecord{
			Address: address.Hex(),
			Topics:  hexTopics,
			Data:    hexutil.Encode(data),
		},
	})
}

// Logs returns a copy of all committed logs.
func (e *Env) Logs() []model.LogRecord {
	out := make([]model.LogRecord, len(e.committed))
	copy(out, e.committed)
	return out
}

// DrainLogs returns the committed logs and forgets them.
func (e *Env) DrainLogs() []model.LogRecord {
	out := e.committed
	e.committed = nil
	return out
}

func (e *Env) hashOf(kind string, n uint64) common.Hash {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], e.chainID)
	binary.BigEndian.PutUint64(buf[8:], n)
	return crypto.Keccak256Hash([]byte(kind), buf)
}
