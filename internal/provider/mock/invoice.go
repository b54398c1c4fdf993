package mock

import (
	"context"
	"strings"
	"time"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

const invoiceProvider = "invoice"

// Invoice is an in-process InvoiceAdapter. It issues the number reserved by
// the caller.
type Invoice struct {
	cfg Config
	now func() time.Time
}

// NewInvoice creates a mock e-invoice provider.
func NewInvoice(cfg Config) *Invoice {
	return &Invoice{cfg: cfg, now: time.Now}
}

// Create validates the buyer data the way an e-invoice gateway would and
// returns the issued invoice.
func (i *Invoice) Create(ctx context.Context, req provider.InvoiceRequest) (*provider.Invoice, error) {
	if err := wait(ctx, i.cfg.Delay); err != nil {
		return nil, err
	}

	switch {
	case req.DocumentNo == "":
		return nil, provider.Reject(invoiceProvider, "Fatura numarası eksik")
	case strings.TrimSpace(req.Buyer.ParentName) == "":
		return nil, provider.Reject(invoiceProvider, "Alıcı adı zorunludur")
	case !req.Total.IsPositive():
		return nil, provider.Reject(invoiceProvider, "Fatura tutarı sıfırdan büyük olmalıdır")
	}
	if req.Corporate.IsCorporate {
		taxNo := strings.TrimSpace(req.Corporate.TaxNumber)
		if strings.TrimSpace(req.Corporate.CompanyTitle) == "" {
			return nil, provider.Reject(invoiceProvider, "Kurumsal fatura için şirket unvanı zorunludur")
		}
		if len(taxNo) != 10 || strings.Trim(taxNo, "0123456789") != "" {
			return nil, provider.Reject(invoiceProvider, "Vergi numarası 10 haneli olmalıdır")
		}
		if strings.TrimSpace(req.Corporate.TaxOffice) == "" {
			return nil, provider.Reject(invoiceProvider, "Vergi dairesi zorunludur")
		}
	}

	return &provider.Invoice{
		InvoiceNo: req.DocumentNo,
		PDFPath:   "/invoices/" + req.DocumentNo + ".pdf",
		IssuedAt:  i.now(),
	}, nil
}
