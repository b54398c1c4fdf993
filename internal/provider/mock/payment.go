package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

const paymentProvider = "payment"

// declinedCards maps test card numbers to the rejection they produce.
var declinedCards = map[string]string{
	"4111111111111129": "Yetersiz bakiye",
	"4129111111111111": "Kart kullanıma kapalı",
	"4128111111111112": "Geçersiz işlem",
	"4127111111111113": "Kayıp kart, karta el koyunuz",
	"4126111111111114": "Çalıntı kart, karta el koyunuz",
	"4125111111111115": "Kartın süresi dolmuş",
	"4124111111111116": "Geçersiz güvenlik kodu",
}

type session struct {
	amount    decimal.Decimal
	paymentID string
}

// Payment is an in-process PaymentAdapter.
type Payment struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
	payments map[string]decimal.Decimal
	refunded map[string]decimal.Decimal
}

// NewPayment creates a mock payment provider.
func NewPayment(cfg Config) *Payment {
	return &Payment{
		cfg:      cfg,
		sessions: make(map[string]*session),
		payments: make(map[string]decimal.Decimal),
		refunded: make(map[string]decimal.Decimal),
	}
}

// Initialize opens a session that Verify later resolves.
func (p *Payment) Initialize(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentSession, error) {
	if err := wait(ctx, p.cfg.Delay); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, provider.Reject(paymentProvider, "Geçersiz tutar")
	}

	token := "mock_" + uuid.NewString()

	p.mu.Lock()
	p.sessions[token] = &session{amount: req.Amount}
	p.mu.Unlock()

	return &provider.PaymentSession{
		Token: token,
		URL:   strings.TrimRight(p.cfg.PaymentBaseURL, "/") + "?token=" + token,
	}, nil
}

// Verify captures the session's payment. Verifying the same token twice
// returns the same payment.
func (p *Payment) Verify(ctx context.Context, token string) (*provider.PaymentResult, error) {
	if err := wait(ctx, p.cfg.Delay); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[token]
	if !ok {
		return nil, provider.Reject(paymentProvider, "Ödeme oturumu bulunamadı")
	}
	if s.paymentID == "" {
		s.paymentID = "mock_pay_" + uuid.NewString()
		p.payments[s.paymentID] = s.amount
	}
	return &provider.PaymentResult{PaymentID: s.paymentID}, nil
}

// ProcessDirect charges a card. Known test cards are declined.
func (p *Payment) ProcessDirect(ctx context.Context, req provider.DirectPaymentRequest) (*provider.PaymentResult, error) {
	if err := wait(ctx, p.cfg.Delay); err != nil {
		return nil, err
	}

	number := strings.ReplaceAll(req.Card.Number, " ", "")
	if msg, declined := declinedCards[number]; declined {
		return nil, provider.Reject(paymentProvider, msg)
	}
	if len(number) < 12 || strings.Trim(number, "0123456789") != "" {
		return nil, provider.Reject(paymentProvider, "Geçersiz kart numarası")
	}
	if !req.Amount.IsPositive() {
		return nil, provider.Reject(paymentProvider, "Geçersiz tutar")
	}

	id := "mock_pay_" + uuid.NewString()
	p.mu.Lock()
	p.payments[id] = req.Amount
	p.mu.Unlock()

	return &provider.PaymentResult{PaymentID: id}, nil
}

// Refund returns up to the captured amount of a payment.
func (p *Payment) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*provider.RefundResult, error) {
	if err := wait(ctx, p.cfg.Delay); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	captured, ok := p.payments[paymentID]
	if !ok && strings.HasPrefix(paymentID, "mock_pay_") {
		// Payments captured before a restart are unknown; accept them.
		captured, ok = amount, true
	}
	if !ok {
		return nil, provider.Reject(paymentProvider, "Ödeme bulunamadı")
	}
	if remaining := captured.Sub(p.refunded[paymentID]); amount.GreaterThan(remaining) {
		return nil, provider.Reject(paymentProvider, "İade tutarı ödeme tutarını aşıyor")
	}
	p.refunded[paymentID] = p.refunded[paymentID].Add(amount)

	return &provider.RefundResult{
		RefundID: "mock_ref_" + uuid.NewString(),
		Message:  "İade başarılı: " + amount.StringFixed(2) + " TL",
	}, nil
}

// Refunded reports the total refunded for paymentID.
func (p *Payment) Refunded(paymentID string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunded[paymentID]
}
