// Package certs builds, signs, and writes proof-of-notarization
// certificates. A certificate is a canonical JSON payload signed with the
// worker's secp256k1 key, stored both as machine-readable JSON and as a
// human-readable PDF with a block-explorer QR code.
package certs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/absnotary/internal/worker/models"
)

// Payload is the canonical certificate record. Field names follow the
// certificate format version 1.x; the three arweave/nft fields are present
// only for NFT notarizations.
type Payload struct {
	DocumentID         string `json:"document_id"`
	FileName           string `json:"file_name"`
	FileHash           string `json:"file_hash"`
	TransactionHash    string `json:"transaction_hash"`
	BlockNumber        int64  `json:"block_number"`
	Timestamp          string `json:"timestamp"`
	Type               string `json:"type"`
	Blockchain         string `json:"blockchain"`
	CertificateVersion string `json:"certificate_version"`

	ArweaveFileURL     string `json:"arweave_file_url,omitempty"`
	ArweaveMetadataURL string `json:"arweave_metadata_url,omitempty"`
	NFTTokenID         *int64 `json:"nft_token_id,omitempty"`
}

// BuildPayload assembles the certificate payload for a document whose
// transaction was mined in blockNumber.
func BuildPayload(doc *models.Document, blockNumber int64, chainName, version string) *Payload {
	p := &Payload{
		DocumentID:         doc.ID,
		FileName:           doc.FileName,
		FileHash:           doc.FileHash,
		TransactionHash:    doc.TransactionHash,
		BlockNumber:        blockNumber,
		Timestamp:          doc.CreatedAt.UTC().Format(time.RFC3339),
		Type:               strings.ToLower(string(doc.Kind)),
		Blockchain:         chainName,
		CertificateVersion: version,
	}

	if doc.Kind == models.KindNFT {
		p.ArweaveFileURL = doc.AssetURL
		p.ArweaveMetadataURL = doc.AssetMetadataURL
		p.NFTTokenID = doc.TokenID
	}

	return p
}

// Canonicalize serializes v with lexicographically sorted keys and no
// insignificant whitespace, so signing and verification agree on the exact
// bytes regardless of struct field order.
func Canonicalize(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	// Round-trip through a map: encoding/json writes map keys sorted.
	// UseNumber keeps large integers intact.
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	return json.Marshal(m)
}
