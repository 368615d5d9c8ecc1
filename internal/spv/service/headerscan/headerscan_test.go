package headerscan

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/store/memory"
	"go.uber.org/zap"
)

const testAttestor = "attestor-key"

// Mainnet blocks 1 through 6, extending the genesis block.
var mainnetHeaders = []string{
	"010000006fe28c0ab6f1b372c1a6a246ae63f74f931e8365e15a089c68d6190000000000982051fd1e4ba744bbbe680e1fee14677ba1a3c3540bf7b1cdb606e857233e0e61bc6649ffff001d01e36299",
	"010000004860eb18bf1b1620e37e9490fc8a427514416fd75159ab86688e9a8300000000d5fdcc541e25de1c7a5addedf24858b8bb665c9f36ef744ee42c316022c90f9bb0bc6649ffff001d08d2bd61",
	"01000000bddd99ccfda39da1b108ce1a5d70038d0a967bacb68b6b63065f626a0000000044f672226090d85db9a9f2fbfe5f0f9609b387af7be5b7fbb7a1767c831c9e995dbe6649ffff001d05e0ed6d",
	"010000004944469562ae1c2c74d9a535e00b6f3e40ffbad4f2fda3895501b582000000007a06ea98cd40ba2e3288262b28638cec5337c1456aaf5eedc8e9e5a20f062bdf8cc16649ffff001d2bfee0a9",
	"0100000085144a84488ea88d221c8bd6c059da090e88f8a2c99690ee55dbba4e00000000e11c48fecdd9e72510ca84f023370c9a38bf91ac5cae88019bee94d24528526344c36649ffff001d1d03e477",
	"01000000fc33f596f822a0a1951ffdbf2a897b095636ad871707bf5d3162729b00000000379dfb96a5ea8c81700ea4ac6b97ae9a9312b2d4301a29580e924ee6761a2520adc46649ffff001d189c4c97",
}

func rawHeaders(t *testing.T, count int) [][]byte {
	t.Helper()
	out := make([][]byte, 0, count)
	for _, h := range mainnetHeaders[:count] {
		raw, err := hex.DecodeString(h)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, raw)
	}
	return out
}

type setObservation struct {
	err    error
	height uint32
}

type fakeSetMetrics struct {
	mu       sync.Mutex
	observed []setObservation
}

func (m *fakeSetMetrics) ObserveSet(err error, height uint32, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, setObservation{err: err, height: height})
}

func newService(t *testing.T, store CheckpointStore, interval uint32) (*Service, *fakeSetMetrics) {
	t.Helper()
	metrics := &fakeSetMetrics{}
	svc, err := NewService(zap.NewNop(), store, metrics, model.Mainnet, testAttestor, interval)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, metrics
}

func TestAdvance_fromGenesis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, metrics := newService(t, store, 2)

	written, err := svc.Advance(ctx, rawHeaders(t, 6))
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if written != 3 {
		t.Fatalf("Advance() wrote %d checkpoints, want 3", written)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Height != 6 {
		t.Fatalf("latest height = %d, want 6", latest.Height)
	}
	if latest.Timestamp != 1231471789 {
		t.Fatalf("latest timestamp = %d, want 1231471789", latest.Timestamp)
	}

	// Six difficulty-1 blocks: 6 * (2^32 + 2^0 + ...) for bits 1d00ffff.
	wantWork := new(big.Int).Mul(big.NewInt(6), big.NewInt(0x100010001))
	if latest.ChainWork.Cmp(wantWork) != 0 {
		t.Fatalf("chain work = %v, want %v", latest.ChainWork, wantWork)
	}

	if len(metrics.observed) != 3 {
		t.Fatalf("observed %d set calls, want 3", len(metrics.observed))
	}
	for i, want := range []uint32{2, 4, 6} {
		if metrics.observed[i].height != want || metrics.observed[i].err != nil {
			t.Fatalf("observation %d = %+v, want height %d", i, metrics.observed[i], want)
		}
	}
}

func TestAdvance_extendsLatestCheckpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, _ := newService(t, store, 144)

	if _, err := svc.Advance(ctx, rawHeaders(t, 3)); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if _, err := svc.Advance(ctx, [][]byte{rawHeaders(t, 4)[3]}); err != nil {
		t.Fatalf("Advance() from checkpoint error = %v", err)
	}

	height, err := store.LatestHeight(ctx)
	if err != nil {
		t.Fatalf("LatestHeight() error = %v", err)
	}
	if height != 4 {
		t.Fatalf("latest height = %d, want 4", height)
	}
}

func TestAdvance_rejectsStaleBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, _ := newService(t, store, 2)

	if _, err := svc.Advance(ctx, rawHeaders(t, 6)); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	// Replaying the same batch does not extend the new anchor.
	_, err := svc.Advance(ctx, rawHeaders(t, 6))
	if !errors.Is(err, model.ErrChainValidation) {
		t.Fatalf("Advance() error = %v, want ErrChainValidation", err)
	}
}

func TestAdvance_rejectsBadProofOfWork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, _ := newService(t, store, 2)

	headers := rawHeaders(t, 3)
	headers[1][79] ^= 0x01 // nonce tamper

	_, err := svc.Advance(ctx, headers)
	if !errors.Is(err, model.ErrChainValidation) {
		t.Fatalf("Advance() error = %v, want ErrChainValidation", err)
	}

	if height, _ := store.LatestHeight(ctx); height != 0 {
		t.Fatalf("latest height = %d, want 0 after rejected batch", height)
	}
}

func TestAdvance_rejectsBrokenLinkage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, _ := newService(t, store, 144)

	// Blocks 1 and 3: block 2 is missing.
	headers := [][]byte{rawHeaders(t, 1)[0], rawHeaders(t, 3)[2]}

	_, err := svc.Advance(ctx, headers)
	if !errors.Is(err, model.ErrChainValidation) {
		t.Fatalf("Advance() error = %v, want ErrChainValidation", err)
	}
}

func TestAdvance_rejectsMalformedHeader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewCheckpointStore(testAttestor)
	svc, _ := newService(t, store, 144)

	_, err := svc.Advance(ctx, [][]byte{rawHeaders(t, 1)[0][:79]})
	if !errors.Is(err, model.ErrFormat) {
		t.Fatalf("Advance() error = %v, want ErrFormat", err)
	}
}

func TestAdvance_emptyBatch(t *testing.T) {
	t.Parallel()

	store := memory.NewCheckpointStore(testAttestor)
	svc, metrics := newService(t, store, 144)

	written, err := svc.Advance(context.Background(), nil)
	if err != nil || written != 0 {
		t.Fatalf("Advance() = %d, %v; want 0, nil", written, err)
	}
	if len(metrics.observed) != 0 {
		t.Fatalf("observed %d set calls, want 0", len(metrics.observed))
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	store := memory.NewCheckpointStore(testAttestor)
	metrics := &fakeSetMetrics{}

	if _, err := NewService(zap.NewNop(), nil, metrics, model.Mainnet, testAttestor, 0); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewService(zap.NewNop(), store, metrics, model.Mainnet, "", 0); err == nil {
		t.Fatal("expected error for empty attestor")
	}
	if _, err := NewService(zap.NewNop(), store, metrics, "signet", testAttestor, 0); err == nil {
		t.Fatal("expected error for unsupported network")
	}
}
