package certs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	qrcode "github.com/skip2/go-qrcode"
)

// PDFRenderer renders the human-readable certificate with pdfcpu's JSON
// page-description API. The layout is a single page: title, document
// identity, chain proof, signature, and a QR code pointing at the block
// explorer.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

type pdfFont struct {
	Name string  `json:"name"`
	Size float64 `json:"size"`
}

type pdfText struct {
	Value    string    `json:"value"`
	Position []float64 `json:"position"`
	Font     pdfFont   `json:"font"`
}

type pdfImage struct {
	Src      string    `json:"src"`
	Position []float64 `json:"position"`
	Width    float64   `json:"width"`
}

type pdfContent struct {
	Text  []pdfText  `json:"text"`
	Image []pdfImage `json:"image,omitempty"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfSpec struct {
	Pages map[string]pdfPage `json:"pages"`
}

// Render writes the PDF certificate for cert to outPath.
func (r *PDFRenderer) Render(ctx context.Context, cert *SignedCertificate, outPath string) error {
	qrPath, err := r.writeQR(cert.VerificationURL, outPath)
	if err != nil {
		return err
	}
	defer os.Remove(qrPath)

	spec, err := json.Marshal(r.buildSpec(cert, qrPath))
	if err != nil {
		return fmt.Errorf("build pdf spec: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	if err := api.Create(nil, bytes.NewReader(spec), f, nil); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// writeQR renders the verification URL as a PNG next to the output file and
// returns its path. The file is temporary; Render removes it.
func (r *PDFRenderer) writeQR(url string, outPath string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	qrPath := filepath.Join(filepath.Dir(outPath), ".qr-"+filepath.Base(outPath)+".png")
	if err := os.WriteFile(qrPath, png, 0o640); err != nil {
		return "", fmt.Errorf("write qr: %w", err)
	}
	return qrPath, nil
}

func (r *PDFRenderer) buildSpec(cert *SignedCertificate, qrPath string) *pdfSpec {
	p := cert.Payload

	type line struct {
		text string
		size float64
		y    float64
	}

	lines := []line{
		{"Blockchain Notarization Certificate", 20, 760},
		{fmt.Sprintf("Document: %s", p.FileName), 12, 700},
		{fmt.Sprintf("Document ID: %s", p.DocumentID), 10, 680},
		{fmt.Sprintf("SHA-256: %s", p.FileHash), 10, 660},
		{fmt.Sprintf("Type: %s", p.Type), 10, 640},
		{fmt.Sprintf("Blockchain: %s", p.Blockchain), 10, 600},
		{fmt.Sprintf("Transaction: %s", p.TransactionHash), 10, 580},
		{fmt.Sprintf("Block: %d", p.BlockNumber), 10, 560},
		{fmt.Sprintf("Notarized at: %s", p.Timestamp), 10, 540},
	}

	y := 500.0
	if p.NFTTokenID != nil {
		lines = append(lines,
			line{fmt.Sprintf("Token ID: %d", *p.NFTTokenID), 10, y},
			line{fmt.Sprintf("Asset: %s", p.ArweaveFileURL), 10, y - 20},
			line{fmt.Sprintf("Asset metadata: %s", p.ArweaveMetadataURL), 10, y - 40},
		)
		y -= 80
	}

	lines = append(lines,
		line{fmt.Sprintf("Signature: %s", cert.Signature), 8, y},
		line{fmt.Sprintf("Verify: %s", cert.VerificationURL), 10, y - 30},
		line{fmt.Sprintf("Certificate v%s", p.CertificateVersion), 8, 60},
	)

	texts := make([]pdfText, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, pdfText{
			Value:    l.text,
			Position: []float64{60, l.y},
			Font:     pdfFont{Name: "Helvetica", Size: l.size},
		})
	}

	return &pdfSpec{
		Pages: map[string]pdfPage{
			"1": {
				Content: pdfContent{
					Text: texts,
					Image: []pdfImage{
						{Src: qrPath, Position: []float64{400, 80}, Width: 130},
					},
				},
			},
		},
	}
}
