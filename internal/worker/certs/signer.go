package certs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/dmitrijs2005/absnotary/internal/common"
	"github.com/dmitrijs2005/absnotary/internal/filex"
	"github.com/dmitrijs2005/absnotary/internal/logging"
	"github.com/dmitrijs2005/absnotary/internal/worker/models"
)

// SignedCertificate is a payload together with its signature and the public
// verification URL rendered into the PDF.
type SignedCertificate struct {
	Payload         *Payload
	Signature       string
	VerificationURL string
}

// Renderer produces the human-readable certificate artifact from a signed
// payload. The PDF layout itself lives behind this interface.
type Renderer interface {
	Render(ctx context.Context, cert *SignedCertificate, outPath string) error
}

// Signer issues both certificate artifacts for a notarized document.
//
// When no private key is configured the signer fails closed unless
// allowUnsigned was set explicitly; in unsigned mode the signature field
// degrades to "0x" + SHA-256 of the canonical payload, an integrity hash a
// verifier can tell apart from a real signature by its length.
type Signer struct {
	key             *secp256k1.PrivateKey
	allowUnsigned   bool
	storagePath     string
	chainName       string
	version         string
	explorerBaseURL string
	renderer        Renderer
	logger          logging.Logger
}

// NewSigner builds a Signer. keyHex may be empty; it accepts an optional 0x
// prefix and must decode to 32 bytes otherwise. The storage directory is
// created and checked for writability up front, so a misconfigured path
// fails at startup rather than on the first confirmed document.
func NewSigner(keyHex string, allowUnsigned bool, storagePath, chainName, version, explorerBaseURL string, renderer Renderer, logger logging.Logger) (*Signer, error) {
	if err := filex.EnsureDir(storagePath); err != nil {
		return nil, fmt.Errorf("certificate storage: %w", err)
	}

	s := &Signer{
		allowUnsigned:   allowUnsigned,
		storagePath:     storagePath,
		chainName:       chainName,
		version:         version,
		explorerBaseURL: explorerBaseURL,
		renderer:        renderer,
		logger:          logger.With("component", "cert-signer"),
	}

	if keyHex != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("signing key must be 32 bytes, got %d", len(raw))
		}
		s.key = secp256k1.PrivKeyFromBytes(raw)
	}

	return s, nil
}

// PublicKey returns the verification key, or nil in unsigned mode.
func (s *Signer) PublicKey() *secp256k1.PublicKey {
	if s.key == nil {
		return nil
	}
	return s.key.PubKey()
}

// Sign computes the signature over the canonical serialization of payload.
func (s *Signer) Sign(payload *Payload) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(canonical)

	if s.key == nil {
		if !s.allowUnsigned {
			return "", common.ErrNoSigningKey
		}
		return "0x" + hex.EncodeToString(digest[:]), nil
	}

	sig := secpecdsa.Sign(s.key, digest[:])
	return "0x" + hex.EncodeToString(sig.Serialize()), nil
}

// Verify recomputes the canonical digest of payload and checks signature
// against pub. It returns false, never an error, on malformed input.
func Verify(payload *Payload, signature string, pub *secp256k1.PublicKey) bool {
	if payload == nil || pub == nil {
		return false
	}

	canonical, err := Canonicalize(payload)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(canonical)

	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return false
	}

	sig, err := secpecdsa.ParseDERSignature(raw)
	if err != nil {
		return false
	}

	return sig.Verify(digest[:], pub)
}

// IssueCertificates signs the payload for doc and writes both artifacts:
// the JSON certificate and the rendered PDF. Paths are derived from the
// owner, the document id, and the first 8 hex characters of the file hash.
// Both paths are returned; certificate generation is all-or-nothing.
func (s *Signer) IssueCertificates(ctx context.Context, doc *models.Document, blockNumber int64) (jsonPath string, pdfPath string, err error) {
	payload := BuildPayload(doc, blockNumber, s.chainName, s.version)

	signature, err := s.Sign(payload)
	if err != nil {
		return "", "", fmt.Errorf("sign certificate: %w", err)
	}

	dir, err := filex.EnsureSubDir(s.storagePath, doc.OwnerID)
	if err != nil {
		return "", "", err
	}

	base := certBaseName(doc)
	jsonPath = filepath.Join(dir, base+".json")
	pdfPath = filepath.Join(dir, base+".pdf")

	if err := s.writeJSON(payload, signature, jsonPath); err != nil {
		return "", "", err
	}

	cert := &SignedCertificate{
		Payload:         payload,
		Signature:       signature,
		VerificationURL: fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(s.explorerBaseURL, "/"), doc.TransactionHash),
	}
	if err := s.renderer.Render(ctx, cert, pdfPath); err != nil {
		return "", "", fmt.Errorf("render pdf certificate: %w", err)
	}

	s.logger.Info(ctx, "certificates issued", "doc_id", doc.ID, "json_path", jsonPath, "pdf_path", pdfPath)
	return jsonPath, pdfPath, nil
}

// writeJSON persists the payload with its signature attached as a sibling
// field, pretty-printed for human inspection. Verifiers must strip the
// signature field and re-canonicalize before checking.
func (s *Signer) writeJSON(payload *Payload, signature string, path string) error {
	var doc map[string]any
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	doc["signature"] = signature

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}

	if err := os.WriteFile(path, out, 0o640); err != nil {
		return fmt.Errorf("write certificate %s: %w", path, err)
	}
	return nil
}

func certBaseName(doc *models.Document) string {
	hash := strings.TrimPrefix(doc.FileHash, "0x")
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("cert_%s_%s", doc.ID, hash)
}
