// Package models defines the worker-side data models persisted in the
// database.
package models

import "time"

// DocStatus is the processing state of a document.
type DocStatus string

const (
	// StatusPending means the document is queued and has not been picked up.
	StatusPending DocStatus = "PENDING"
	// StatusProcessing means a worker owns the document for this attempt.
	StatusProcessing DocStatus = "PROCESSING"
	// StatusOnChain means notarization completed and certificates exist.
	StatusOnChain DocStatus = "ON_CHAIN"
	// StatusError means the attempt failed; ErrorMessage holds the reason.
	StatusError DocStatus = "ERROR"
)

// DocKind selects which blockchain operation notarizes the document.
type DocKind string

const (
	// KindHash records only the file hash on chain.
	KindHash DocKind = "HASH"
	// KindNFT uploads the asset to durable storage and mints a token.
	KindNFT DocKind = "NFT"
)

// Document is one notarization request and its lifecycle state.
//
// TransactionHash is never cleared once set: even when a later step fails,
// the record keeps its on-chain proof. TokenID, AssetURL and
// AssetMetadataURL are populated only for KindNFT. SignedJSONPath and
// SignedPDFPath are set together or not at all.
type Document struct {
	ID      string
	OwnerID string

	FileName string
	FileHash string
	FilePath string

	Kind   DocKind
	Status DocStatus

	TransactionHash string

	TokenID          *int64
	AssetURL         string
	AssetMetadataURL string

	SignedJSONPath string
	SignedPDFPath  string

	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentUpdate is a partial-field update applied by the repository.
// Nil fields are left untouched.
type DocumentUpdate struct {
	Status           *DocStatus
	TransactionHash  *string
	TokenID          *int64
	AssetURL         *string
	AssetMetadataURL *string
	SignedJSONPath   *string
	SignedPDFPath    *string
	ErrorMessage     *string
}
