// Package transport exposes HTTP/JSON handlers for payout verification.
package transport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/codec"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/header"
	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/goodnatureofminers/spvcredit-backend/pkg/safe"
	"go.uber.org/zap"
)

type (
	PayoutVerifier interface {
		VerifyPayout(ctx context.Context, proof model.SpvProof) (model.PayoutEvidence, error)
		IsPayoutProcessed(ctx context.Context, txid chainhash.Hash, outputIndex uint32) (bool, error)
	}

	CheckpointStore interface {
		Set(ctx context.Context, caller string, checkpoint model.Checkpoint) error
		Checkpoint(ctx context.Context, height uint32) (model.Checkpoint, error)
		Latest(ctx context.Context) (model.Checkpoint, error)
	}

	RecipientRegistry interface {
		Register(ctx context.Context, caller, identity string, expectedHash [20]byte) error
	}

	// EvidenceRecorder receives evidence after a successful verification.
	// Recording is best-effort and never fails the request.
	EvidenceRecorder interface {
		Record(ctx context.Context, evidence model.PayoutEvidence) error
	}
)

// AttestorHeader carries the attestor credential on checkpoint and
// recipient writes.
const AttestorHeader = "X-Attestor-Key"

const maxBodyBytes = 1 << 20

// PayoutHandler serves the payout verification API.
type PayoutHandler struct {
	logger      *zap.Logger
	verifier    PayoutVerifier
	checkpoints CheckpointStore
	recipients  RecipientRegistry
	recorder    EvidenceRecorder
}

// NewPayoutHandler builds the handler. The recorder may be nil when no
// archive is configured.
func NewPayoutHandler(
	logger *zap.Logger,
	verifier PayoutVerifier,
	checkpoints CheckpointStore,
	recipients RecipientRegistry,
	recorder EvidenceRecorder,
) (*PayoutHandler, error) {
	if verifier == nil || checkpoints == nil || recipients == nil {
		return nil, errors.New("verifier, checkpoint store and recipient registry are required")
	}
	return &PayoutHandler{
		logger:      logger,
		verifier:    verifier,
		checkpoints: checkpoints,
		recipients:  recipients,
		recorder:    recorder,
	}, nil
}

// Register mounts the API routes on mux.
func (h *PayoutHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/payouts/verify", h.verifyPayout)
	mux.HandleFunc("GET /v1/payouts/processed", h.payoutProcessed)
	mux.HandleFunc("POST /v1/checkpoints", h.setCheckpoint)
	mux.HandleFunc("GET /v1/checkpoints/latest", h.latestCheckpoint)
	mux.HandleFunc("GET /v1/checkpoints/{height}", h.checkpointByHeight)
	mux.HandleFunc("POST /v1/recipients", h.registerRecipient)
	mux.HandleFunc("GET /healthz", h.health)
}

type proofRequest struct {
	CheckpointHeight uint32   `json:"checkpoint_height"`
	Headers          []string `json:"headers"`
	RawTx            string   `json:"raw_tx"`
	Siblings         []string `json:"siblings"`
	TxIndex          uint32   `json:"tx_index"`
	OutputIndex      uint32   `json:"output_index"`
	Recipient        string   `json:"recipient"`
}

type evidenceResponse struct {
	Network     string `json:"network"`
	Recipient   string `json:"recipient"`
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"output_index"`
	Amount      uint64 `json:"amount"`
	AmountBTC   string `json:"amount_btc"`
	BlockHeight uint32 `json:"block_height"`
	BlockTime   uint32 `json:"block_time"`
	VerifiedAt  string `json:"verified_at"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

func (h *PayoutHandler) verifyPayout(w http.ResponseWriter, r *http.Request) {
	proof, err := h.decodeProof(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	evidence, err := h.verifier.VerifyPayout(r.Context(), proof)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.recorder != nil {
		if recErr := h.recorder.Record(r.Context(), evidence); recErr != nil {
			h.logger.Warn("evidence not queued for archival", zap.Error(recErr))
		}
	}

	h.writeJSON(w, http.StatusOK, evidenceResponse{
		Network:     string(evidence.Network),
		Recipient:   evidence.Recipient,
		TxID:        evidence.TxID.String(),
		OutputIndex: evidence.OutputIndex,
		Amount:      evidence.Amount,
		AmountBTC:   btcutil.Amount(evidence.Amount).String(),
		BlockHeight: evidence.BlockHeight,
		BlockTime:   evidence.BlockTime,
		VerifiedAt:  evidence.VerifiedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (h *PayoutHandler) decodeProof(r *http.Request) (model.SpvProof, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("%w: read request body: %v", model.ErrFormat, err)
	}
	if len(body) > maxBodyBytes {
		return model.SpvProof{}, fmt.Errorf("%w: request body exceeds %d bytes", model.ErrFormat, maxBodyBytes)
	}

	if r.Header.Get("Content-Type") == "application/octet-stream" {
		return codec.DecodeProof(body)
	}

	var req proofRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.SpvProof{}, fmt.Errorf("%w: decode proof json: %v", model.ErrFormat, err)
	}
	return req.toProof()
}

func (p proofRequest) toProof() (model.SpvProof, error) {
	proof := model.SpvProof{
		CheckpointHeight: p.CheckpointHeight,
		TxIndex:          p.TxIndex,
		OutputIndex:      p.OutputIndex,
		Recipient:        p.Recipient,
	}

	proof.Headers = make([][]byte, 0, len(p.Headers))
	for i, raw := range p.Headers {
		decoded, err := hex.DecodeString(raw)
		if err != nil {
			return model.SpvProof{}, fmt.Errorf("%w: header %d is not hex", model.ErrFormat, i)
		}
		proof.Headers = append(proof.Headers, decoded)
	}

	rawTx, err := hex.DecodeString(p.RawTx)
	if err != nil {
		return model.SpvProof{}, fmt.Errorf("%w: raw_tx is not hex", model.ErrFormat)
	}
	proof.RawTx = rawTx

	proof.Siblings = make([]chainhash.Hash, 0, len(p.Siblings))
	for i, raw := range p.Siblings {
		sibling, err := chainhash.NewHashFromStr(raw)
		if err != nil {
			return model.SpvProof{}, fmt.Errorf("%w: sibling %d is not a hash", model.ErrFormat, i)
		}
		proof.Siblings = append(proof.Siblings, *sibling)
	}

	return proof, nil
}

func (h *PayoutHandler) payoutProcessed(w http.ResponseWriter, r *http.Request) {
	txid, err := chainhash.NewHashFromStr(r.URL.Query().Get("txid"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: txid query parameter is not a hash", model.ErrFormat))
		return
	}
	rawVout, err := strconv.ParseUint(r.URL.Query().Get("vout"), 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: vout query parameter is not an integer", model.ErrFormat))
		return
	}
	vout, err := safe.Uint32(rawVout)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: vout query parameter out of range", model.ErrFormat))
		return
	}

	processed, err := h.verifier.IsPayoutProcessed(r.Context(), *txid, vout)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"processed": processed})
}

type checkpointRequest struct {
	Height    uint32 `json:"height"`
	Hash      string `json:"hash"`
	ChainWork string `json:"chain_work"`
	Timestamp uint32 `json:"timestamp"`
	Bits      string `json:"bits"`
}

type checkpointResponse struct {
	Height    uint32 `json:"height"`
	Hash      string `json:"hash"`
	ChainWork string `json:"chain_work"`
	Timestamp uint32 `json:"timestamp"`
	Bits      string `json:"bits"`
}

func checkpointToResponse(checkpoint model.Checkpoint) checkpointResponse {
	work := "0"
	if checkpoint.ChainWork != nil {
		work = checkpoint.ChainWork.String()
	}
	return checkpointResponse{
		Height:    checkpoint.Height,
		Hash:      checkpoint.Hash.String(),
		ChainWork: work,
		Timestamp: checkpoint.Timestamp,
		Bits:      strconv.FormatUint(uint64(checkpoint.Bits), 16),
	}
}

func (h *PayoutHandler) setCheckpoint(w http.ResponseWriter, r *http.Request) {
	caller := r.Header.Get(AttestorHeader)

	var req checkpointRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: decode checkpoint json: %v", model.ErrFormat, err))
		return
	}

	hash, err := chainhash.NewHashFromStr(req.Hash)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: checkpoint hash is not a hash", model.ErrFormat))
		return
	}
	bits, err := header.ParseBits(req.Bits)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: bits is not a compact hex value", model.ErrFormat))
		return
	}
	work, ok := new(big.Int).SetString(req.ChainWork, 10)
	if !ok {
		h.writeError(w, fmt.Errorf("%w: chain_work is not a decimal integer", model.ErrFormat))
		return
	}

	checkpoint := model.Checkpoint{
		Height:    req.Height,
		Hash:      *hash,
		ChainWork: work,
		Timestamp: req.Timestamp,
		Bits:      bits,
	}
	if err := h.checkpoints.Set(r.Context(), caller, checkpoint); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("checkpoint attested",
		zap.Uint32("height", checkpoint.Height),
		zap.String("hash", checkpoint.Hash.String()),
	)
	h.writeJSON(w, http.StatusCreated, checkpointToResponse(checkpoint))
}

func (h *PayoutHandler) latestCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := h.checkpoints.Latest(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, checkpointToResponse(checkpoint))
}

func (h *PayoutHandler) checkpointByHeight(w http.ResponseWriter, r *http.Request) {
	rawHeight, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: height path segment is not an integer", model.ErrFormat))
		return
	}
	height, err := safe.Uint32(rawHeight)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: height path segment out of range", model.ErrFormat))
		return
	}

	checkpoint, err := h.checkpoints.Checkpoint(r.Context(), height)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if checkpoint.IsZero() {
		h.writeError(w, fmt.Errorf("%w: no checkpoint at height %d", model.ErrNotFound, height))
		return
	}
	h.writeJSON(w, http.StatusOK, checkpointToResponse(checkpoint))
}

type recipientRequest struct {
	Identity   string `json:"identity"`
	PubkeyHash string `json:"pubkey_hash"`
}

func (h *PayoutHandler) registerRecipient(w http.ResponseWriter, r *http.Request) {
	caller := r.Header.Get(AttestorHeader)

	var req recipientRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: decode recipient json: %v", model.ErrFormat, err))
		return
	}

	raw, err := hex.DecodeString(req.PubkeyHash)
	if err != nil || len(raw) != 20 {
		h.writeError(w, fmt.Errorf("%w: pubkey_hash must be 20 hex-encoded bytes", model.ErrFormat))
		return
	}
	var expectedHash [20]byte
	copy(expectedHash[:], raw)

	if err := h.recipients.Register(r.Context(), caller, req.Identity, expectedHash); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("recipient registered", zap.String("identity", req.Identity))
	h.writeJSON(w, http.StatusCreated, map[string]string{"identity": req.Identity})
}

func (h *PayoutHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PayoutHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response not written", zap.Error(err))
	}
}

func (h *PayoutHandler) writeError(w http.ResponseWriter, err error) {
	category := model.ErrorCategory(err)
	h.writeJSON(w, statusForCategory(category), errorResponse{
		Error:    err.Error(),
		Category: category,
	})
}

func statusForCategory(category string) int {
	switch category {
	case "format":
		return http.StatusBadRequest
	case "chain", "inclusion", "recipient":
		return http.StatusUnprocessableEntity
	case "replay":
		return http.StatusConflict
	case "authorization":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
