// Package notary drives a document through its notarization lifecycle:
// PENDING → PROCESSING → ON_CHAIN on success, or → ERROR on any failure
// after processing began.
package notary

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/assets"
	"github.com/dmitrijs2005/absnotary/internal/worker/chain"
	"github.com/dmitrijs2005/absnotary/internal/worker/lease"
	"github.com/dmitrijs2005/absnotary/internal/worker/metrics"
	"github.com/dmitrijs2005/absnotary/internal/worker/models"
	"github.com/dmitrijs2005/absnotary/internal/worker/repositories/documents"
	"github.com/dmitrijs2005/absnotary/internal/worker/retry"
)

// maxErrorLen bounds the persisted error message for failed documents.
const maxErrorLen = 500

// ConfirmationWaiter awaits finality for a submitted transaction.
type ConfirmationWaiter interface {
	WaitForConfirmation(ctx context.Context, txHash string) (*chain.Receipt, error)
}

// CertificateIssuer produces both certificate artifacts for a confirmed
// document and returns their paths.
type CertificateIssuer interface {
	IssueCertificates(ctx context.Context, doc *models.Document, blockNumber int64) (jsonPath string, pdfPath string, err error)
}

// Config holds the orchestrator's retry policies. Submission and
// confirmation waits are retried independently.
type Config struct {
	SubmitRetry  retry.Config
	ConfirmRetry retry.Config

	// MintOwnerAddress is the custodial address minted tokens are assigned
	// to; individual owners redeem them off-band.
	MintOwnerAddress string
}

// Service is the notarization orchestrator.
type Service struct {
	repo     documents.Repository
	chain    chain.Client
	uploader assets.Uploader
	waiter   ConfirmationWaiter
	issuer   CertificateIssuer
	locker   lease.Locker
	metrics  *metrics.Metrics
	logger   logging.Logger
	cfg      Config
}

// NewService wires the orchestrator. metrics may be nil, locker may be the
// lease.Noop when no external lock is configured.
func NewService(repo documents.Repository, chainClient chain.Client, uploader assets.Uploader,
	waiter ConfirmationWaiter, issuer CertificateIssuer, locker lease.Locker,
	m *metrics.Metrics, logger logging.Logger, cfg Config) *Service {
	return &Service{
		repo:     repo,
		chain:    chainClient,
		uploader: uploader,
		waiter:   waiter,
		issuer:   issuer,
		locker:   locker,
		metrics:  m,
		logger:   logger.With("component", "notary"),
		cfg:      cfg,
	}
}

// Process notarizes one document.
//
// Re-entry on a document already PROCESSING is an idempotent no-op, so a
// duplicated dispatch of the same job does not submit twice. Re-entry on a
// terminal status fails with an InvalidStateError. Any error after the
// PROCESSING transition is persisted on the document (truncated) as ERROR
// and then propagated to the caller; the engine never swallows a terminal
// failure.
func (s *Service) Process(ctx context.Context, docID string) error {
	log := s.logger.With("doc_id", docID)

	held, err := s.locker.Acquire(ctx, docID)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !held {
		log.Info(ctx, "document lease held elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), docID); err != nil {
			log.Warn(ctx, "lease release failed", "error", err.Error())
		}
	}()

	doc, err := s.repo.Get(ctx, docID)
	if err != nil {
		return err
	}

	switch doc.Status {
	case models.StatusPending:
		// proceed
	case models.StatusProcessing:
		log.Info(ctx, "document already processing, skipping")
		s.countOutcome(doc.Kind, "skipped")
		return nil
	default:
		return &common.InvalidStateError{DocumentID: docID, Status: string(doc.Status)}
	}

	// The status write must be durable before any chain call: a crash
	// mid-flight is then observable as a stuck PROCESSING document rather
	// than a silent loss. The conditional update also settles races between
	// concurrent dispatches: only one caller wins the transition.
	won, err := s.repo.BeginProcessing(ctx, docID)
	if err != nil {
		return err
	}
	if !won {
		log.Info(ctx, "document no longer pending, skipping")
		s.countOutcome(doc.Kind, "skipped")
		return nil
	}
	log.Info(ctx, "processing started", "kind", doc.Kind)

	if err := s.notarize(ctx, doc, log); err != nil {
		s.markError(ctx, docID, err, log)
		s.countOutcome(doc.Kind, "error")
		return err
	}

	s.countOutcome(doc.Kind, "on_chain")
	log.Info(ctx, "notarization completed")
	return nil
}

// notarize runs the chain submission, the confirmation wait, and
// certificate issuance. The caller owns the ERROR transition.
func (s *Service) notarize(ctx context.Context, doc *models.Document, log logging.Logger) error {
	var err error
	switch doc.Kind {
	case models.KindNFT:
		doc, err = s.submitMint(ctx, doc, log)
	default:
		doc, err = s.submitHash(ctx, doc, log)
	}
	if err != nil {
		return err
	}

	receipt, err := s.awaitConfirmation(ctx, doc.TransactionHash, log)
	if err != nil {
		return err
	}

	jsonPath, pdfPath, err := s.issuer.IssueCertificates(ctx, doc, receipt.BlockNumber)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CertificatesIssuedTotal.Inc()
	}

	status := models.StatusOnChain
	_, err = s.repo.Update(ctx, doc.ID, models.DocumentUpdate{
		Status:         &status,
		SignedJSONPath: &jsonPath,
		SignedPDFPath:  &pdfPath,
	})
	return err
}

// submitHash records the file hash on chain and persists the transaction
// hash immediately: once the chain accepted the submission, the document
// keeps its proof even if a later step fails.
func (s *Service) submitHash(ctx context.Context, doc *models.Document, log logging.Logger) (*models.Document, error) {
	metadata := map[string]string{
		"file_name": doc.FileName,
		"timestamp": doc.CreatedAt.UTC().Format(time.RFC3339),
	}

	result, err := retrySubmit(s, ctx, "submit-hash", func(ctx context.Context) (*chain.SubmitResult, error) {
		return s.chain.SubmitHashRecord(ctx, doc.FileHash, metadata)
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "hash recorded on chain", "tx_hash", result.TxHash)

	return s.repo.Update(ctx, doc.ID, models.DocumentUpdate{TransactionHash: &result.TxHash})
}

// submitMint uploads the asset and its metadata to durable storage, mints
// the token, and persists the transaction hash plus all NFT fields.
func (s *Service) submitMint(ctx context.Context, doc *models.Document, log logging.Logger) (*models.Document, error) {
	content, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", doc.FilePath, err)
	}

	assetURL, err := retrySubmit(s, ctx, "upload-asset", func(ctx context.Context) (string, error) {
		return s.uploader.Upload(ctx, content, "application/octet-stream")
	})
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]string{
		"name":        doc.FileName,
		"description": "Notarized document: " + doc.FileName,
		"file_hash":   doc.FileHash,
		"file_url":    assetURL,
		"timestamp":   doc.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal asset metadata: %w", err)
	}

	metadataURL, err := retrySubmit(s, ctx, "upload-metadata", func(ctx context.Context) (string, error) {
		return s.uploader.Upload(ctx, metadata, "application/json")
	})
	if err != nil {
		return nil, err
	}

	tokenID := tokenIDFromHash(doc.FileHash)
	result, err := retrySubmit(s, ctx, "submit-mint", func(ctx context.Context) (*chain.SubmitResult, error) {
		return s.chain.SubmitMint(ctx, s.cfg.MintOwnerAddress, tokenID, metadataURL)
	})
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "token minted", "tx_hash", result.TxHash, "token_id", tokenID)

	return s.repo.Update(ctx, doc.ID, models.DocumentUpdate{
		TransactionHash:  &result.TxHash,
		TokenID:          &tokenID,
		AssetURL:         &assetURL,
		AssetMetadataURL: &metadataURL,
	})
}

func (s *Service) awaitConfirmation(ctx context.Context, txHash string, log logging.Logger) (*chain.Receipt, error) {
	start := time.Now()
	receipt, err := retry.Do(ctx, s.cfg.ConfirmRetry, log, "await-confirmation", func(ctx context.Context) (*chain.Receipt, error) {
		return s.waiter.WaitForConfirmation(ctx, txHash)
	})
	if s.metrics != nil {
		s.metrics.ConfirmationWaitSeconds.Observe(time.Since(start).Seconds())
	}
	return receipt, err
}

// retrySubmit wraps retry.Do with the submission policy and the retry
// counter. A package-level function because methods cannot be generic.
func retrySubmit[T any](s *Service, ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	calls := 0
	result, err := retry.Do(ctx, s.cfg.SubmitRetry, s.logger, name, func(ctx context.Context) (T, error) {
		calls++
		return fn(ctx)
	})
	if s.metrics != nil && calls > 1 {
		s.metrics.RetriesTotal.WithLabelValues(name).Add(float64(calls - 1))
	}
	return result, err
}

func (s *Service) markError(ctx context.Context, docID string, cause error, log logging.Logger) {
	// Persist even when the surrounding context is already cancelled; the
	// failure must be visible on the document.
	ctx = context.WithoutCancel(ctx)

	status := models.StatusError
	msg := common.TruncateError(cause, maxErrorLen)
	if _, err := s.repo.Update(ctx, docID, models.DocumentUpdate{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		log.Error(ctx, "failed to persist error state", "cause", cause.Error(), "error", err.Error())
		return
	}
	log.Error(ctx, "document marked as error", "cause", cause.Error())
}

func (s *Service) countOutcome(kind models.DocKind, outcome string) {
	if s.metrics != nil {
		s.metrics.DocumentsProcessedTotal.WithLabelValues(string(kind), outcome).Inc()
	}
}

// tokenIDFromHash derives a stable positive token id from the first eight
// bytes of the file hash, so re-minting the same content is deterministic.
func tokenIDFromHash(fileHash string) int64 {
	raw, err := hex.DecodeString(strings.TrimPrefix(fileHash, "0x"))
	if err != nil || len(raw) < 8 {
		padded := make([]byte, 8)
		copy(padded, raw)
		raw = padded
	}
	return int64(binary.BigEndian.Uint64(raw[:8]) >> 1)
}
