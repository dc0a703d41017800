package notary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/chain"
	"github.com/dmitrijs2005/absnotary/internal/worker/lease"
	"github.com/dmitrijs2005/absnotary/internal/worker/models"
	"github.com/dmitrijs2005/absnotary/internal/worker/retry"
)

// fakeRepo is an in-memory document store with the repository's CAS
// semantics.
type fakeRepo struct {
	mu   sync.Mutex
	docs map[string]*models.Document

	updateErr error
}

func newFakeRepo(docs ...*models.Document) *fakeRepo {
	r := &fakeRepo{docs: map[string]*models.Document{}}
	for _, d := range docs {
		copied := *d
		r.docs[d.ID] = &copied
	}
	return r
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeRepo) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ID] = &copied
	return doc, nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, patch models.DocumentUpdate) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	doc, ok := r.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	if patch.TransactionHash != nil {
		doc.TransactionHash = *patch.TransactionHash
	}
	if patch.TokenID != nil {
		doc.TokenID = patch.TokenID
	}
	if patch.AssetURL != nil {
		doc.AssetURL = *patch.AssetURL
	}
	if patch.AssetMetadataURL != nil {
		doc.AssetMetadataURL = *patch.AssetMetadataURL
	}
	if patch.SignedJSONPath != nil {
		doc.SignedJSONPath = *patch.SignedJSONPath
	}
	if patch.SignedPDFPath != nil {
		doc.SignedPDFPath = *patch.SignedPDFPath
	}
	if patch.ErrorMessage != nil {
		doc.ErrorMessage = *patch.ErrorMessage
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeRepo) BeginProcessing(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.Status != models.StatusPending {
		return false, nil
	}
	doc.Status = models.StatusProcessing
	return true, nil
}

func (r *fakeRepo) snapshot(id string) *models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *r.docs[id]
	return &copied
}

type fakeChain struct {
	submitHashErr  error
	submitHashErrs int // fail this many calls before succeeding
	submitCalls    int
	mintCalls      int

	mintOwner   string
	mintTokenID int64
	mintMetaURL string
}

func (c *fakeChain) SubmitHashRecord(ctx context.Context, fileHash string, metadata map[string]string) (*chain.SubmitResult, error) {
	c.submitCalls++
	if c.submitHashErr != nil && (c.submitHashErrs == 0 || c.submitCalls <= c.submitHashErrs) {
		return nil, c.submitHashErr
	}
	return &chain.SubmitResult{TxHash: "0x111"}, nil
}

func (c *fakeChain) SubmitMint(ctx context.Context, ownerAddress string, tokenID int64, metadataURL string) (*chain.SubmitResult, error) {
	c.mintCalls++
	c.mintOwner = ownerAddress
	c.mintTokenID = tokenID
	c.mintMetaURL = metadataURL
	return &chain.SubmitResult{TxHash: "0x222"}, nil
}

func (c *fakeChain) GetReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	return nil, errors.New("not used")
}

func (c *fakeChain) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	return 0, errors.New("not used")
}

type fakeWaiter struct {
	receipt *chain.Receipt
	err     error
	txHash  string
}

func (w *fakeWaiter) WaitForConfirmation(ctx context.Context, txHash string) (*chain.Receipt, error) {
	w.txHash = txHash
	return w.receipt, w.err
}

type fakeIssuer struct {
	err   error
	calls int
}

func (i *fakeIssuer) IssueCertificates(ctx context.Context, doc *models.Document, blockNumber int64) (string, string, error) {
	i.calls++
	if i.err != nil {
		return "", "", i.err
	}
	return "/certs/" + doc.ID + ".json", "/certs/" + doc.ID + ".pdf", nil
}

type fakeUploader struct {
	urls  []string
	calls int
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	u.calls++
	return u.urls[(u.calls-1)%len(u.urls)], nil
}

type deniedLocker struct{}

func (deniedLocker) Acquire(ctx context.Context, key string) (bool, error) { return false, nil }
func (deniedLocker) Release(ctx context.Context, key string) error         { return nil }

func pendingDoc(id string) *models.Document {
	return &models.Document{
		ID:        id,
		OwnerID:   "owner-1",
		FileName:  "contract.pdf",
		FileHash:  "0xdeadbeefcafe01234567",
		Kind:      models.KindHash,
		Status:    models.StatusPending,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestService(repo *fakeRepo, ch chain.Client, waiter ConfirmationWaiter, issuer CertificateIssuer) *Service {
	retryCfg := retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}
	return NewService(repo, ch, &fakeUploader{urls: []string{"http://store/a", "http://store/b"}},
		waiter, issuer, &lease.Noop{}, nil, logging.NewJSON("error"),
		Config{SubmitRetry: retryCfg, ConfirmRetry: retryCfg, MintOwnerAddress: "0xcustody"})
}

func TestProcess_HashHappyPath(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	ch := &fakeChain{}
	waiter := &fakeWaiter{receipt: &chain.Receipt{TxHash: "0x111", BlockNumber: 100, Status: 1}}
	issuer := &fakeIssuer{}

	svc := newTestService(repo, ch, waiter, issuer)
	require.NoError(t, svc.Process(context.Background(), "doc-1"))

	doc := repo.snapshot("doc-1")
	assert.Equal(t, models.StatusOnChain, doc.Status)
	assert.Equal(t, "0x111", doc.TransactionHash)
	assert.Equal(t, "/certs/doc-1.json", doc.SignedJSONPath)
	assert.Equal(t, "/certs/doc-1.pdf", doc.SignedPDFPath)
	assert.Empty(t, doc.ErrorMessage)
	assert.Equal(t, "0x111", waiter.txHash)
	assert.Equal(t, 1, ch.submitCalls)
	assert.Equal(t, 1, issuer.calls)
}

func TestProcess_NotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeChain{}, &fakeWaiter{}, &fakeIssuer{})

	err := svc.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestProcess_TerminalStatusFails(t *testing.T) {
	for _, status := range []models.DocStatus{models.StatusOnChain, models.StatusError} {
		t.Run(string(status), func(t *testing.T) {
			doc := pendingDoc("doc-1")
			doc.Status = status
			repo := newFakeRepo(doc)
			ch := &fakeChain{}

			svc := newTestService(repo, ch, &fakeWaiter{}, &fakeIssuer{})
			err := svc.Process(context.Background(), "doc-1")

			var invalid *common.InvalidStateError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, string(status), invalid.Status)
			assert.Equal(t, 0, ch.submitCalls)
		})
	}
}

func TestProcess_AlreadyProcessingIsIdempotentNoop(t *testing.T) {
	doc := pendingDoc("doc-1")
	doc.Status = models.StatusProcessing
	repo := newFakeRepo(doc)
	ch := &fakeChain{}

	svc := newTestService(repo, ch, &fakeWaiter{}, &fakeIssuer{})
	require.NoError(t, svc.Process(context.Background(), "doc-1"))

	assert.Equal(t, 0, ch.submitCalls)
	assert.Equal(t, models.StatusProcessing, repo.snapshot("doc-1").Status)
}

func TestProcess_LeaseHeldElsewhereSkips(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	ch := &fakeChain{}
	svc := newTestService(repo, ch, &fakeWaiter{}, &fakeIssuer{})
	svc.locker = deniedLocker{}

	require.NoError(t, svc.Process(context.Background(), "doc-1"))
	assert.Equal(t, 0, ch.submitCalls)
	assert.Equal(t, models.StatusPending, repo.snapshot("doc-1").Status)
}

func TestProcess_SubmissionRetriesThenSucceeds(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	ch := &fakeChain{submitHashErr: errors.New("connection refused"), submitHashErrs: 2}
	waiter := &fakeWaiter{receipt: &chain.Receipt{TxHash: "0x111", BlockNumber: 100, Status: 1}}

	svc := newTestService(repo, ch, waiter, &fakeIssuer{})
	require.NoError(t, svc.Process(context.Background(), "doc-1"))

	assert.Equal(t, 3, ch.submitCalls)
	assert.Equal(t, models.StatusOnChain, repo.snapshot("doc-1").Status)
}

func TestProcess_SubmissionFailureMarksError(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	ch := &fakeChain{submitHashErr: errors.New("insufficient funds for gas")}

	svc := newTestService(repo, ch, &fakeWaiter{}, &fakeIssuer{})
	err := svc.Process(context.Background(), "doc-1")
	require.Error(t, err)

	doc := repo.snapshot("doc-1")
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "insufficient funds")
	// Non-retryable: one attempt only.
	assert.Equal(t, 1, ch.submitCalls)
}

func TestProcess_ErrorMessageIsTruncated(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	ch := &fakeChain{submitHashErr: errors.New("reverted: " + strings.Repeat("x", 2000))}

	svc := newTestService(repo, ch, &fakeWaiter{}, &fakeIssuer{})
	require.Error(t, svc.Process(context.Background(), "doc-1"))

	doc := repo.snapshot("doc-1")
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Len(t, doc.ErrorMessage, maxErrorLen)
}

func TestProcess_RevertMarksErrorAndPropagates(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	waiter := &fakeWaiter{err: &common.RevertedError{TxHash: "0x111"}}

	svc := newTestService(repo, &fakeChain{}, waiter, &fakeIssuer{})
	err := svc.Process(context.Background(), "doc-1")
	assert.ErrorIs(t, err, common.ErrReverted)

	doc := repo.snapshot("doc-1")
	assert.Equal(t, models.StatusError, doc.Status)
	// The submission went through, so the proof stays on the record.
	assert.Equal(t, "0x111", doc.TransactionHash)
}

func TestProcess_CertificateFailureKeepsTransactionHash(t *testing.T) {
	repo := newFakeRepo(pendingDoc("doc-1"))
	waiter := &fakeWaiter{receipt: &chain.Receipt{TxHash: "0x111", BlockNumber: 100, Status: 1}}
	issuer := &fakeIssuer{err: errors.New("disk full")}

	svc := newTestService(repo, &fakeChain{}, waiter, issuer)
	require.Error(t, svc.Process(context.Background(), "doc-1"))

	doc := repo.snapshot("doc-1")
	assert.Equal(t, models.StatusError, doc.Status)
	assert.Equal(t, "0x111", doc.TransactionHash)
	assert.Empty(t, doc.SignedJSONPath)
}

func TestProcess_NFTMintHappyPath(t *testing.T) {
	assetPath := filepath.Join(t.TempDir(), "artwork.png")
	require.NoError(t, os.WriteFile(assetPath, []byte("image bytes"), 0o600))

	doc := pendingDoc("doc-nft")
	doc.Kind = models.KindNFT
	doc.FilePath = assetPath
	repo := newFakeRepo(doc)
	ch := &fakeChain{}
	waiter := &fakeWaiter{receipt: &chain.Receipt{TxHash: "0x222", BlockNumber: 200, Status: 1}}
	uploader := &fakeUploader{urls: []string{"http://store/asset", "http://store/meta"}}

	retryCfg := retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2.0}
	svc := NewService(repo, ch, uploader, waiter, &fakeIssuer{}, &lease.Noop{}, nil,
		logging.NewJSON("error"),
		Config{SubmitRetry: retryCfg, ConfirmRetry: retryCfg, MintOwnerAddress: "0xcustody"})

	require.NoError(t, svc.Process(context.Background(), "doc-nft"))

	got := repo.snapshot("doc-nft")
	assert.Equal(t, models.StatusOnChain, got.Status)
	assert.Equal(t, "0x222", got.TransactionHash)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, tokenIDFromHash(got.FileHash), *got.TokenID)
	assert.Equal(t, "http://store/asset", got.AssetURL)
	assert.Equal(t, "http://store/meta", got.AssetMetadataURL)

	// Asset upload, then metadata upload.
	assert.Equal(t, 2, uploader.calls)
	assert.Equal(t, "0xcustody", ch.mintOwner)
	assert.Equal(t, "http://store/meta", ch.mintMetaURL)
}

func TestTokenIDFromHash(t *testing.T) {
	a := tokenIDFromHash("0xdeadbeefcafe01234567")
	b := tokenIDFromHash("0xdeadbeefcafe01234567")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, int64(0))

	// Short or malformed hashes still produce a stable non-negative id.
	assert.GreaterOrEqual(t, tokenIDFromHash("0xab"), int64(0))
	assert.GreaterOrEqual(t, tokenIDFromHash("not-hex"), int64(0))
}
