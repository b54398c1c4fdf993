package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/provider"
)

const shippingProvider = "shipping"

// trackingStages is the scan history every mock shipment walks through.
var trackingStages = []struct {
	code, status, location string
}{
	{"ACCEPTED", "Kargo kabul edildi", "Çıkış şubesi"},
	{"IN_TRANSIT", "Transfer merkezinde", "Aktarma merkezi"},
	{"OUT_FOR_DELIVERY", "Dağıtıma çıktı", "Varış şubesi"},
	{"DELIVERED", "Teslim edildi", "Alıcı adresi"},
}

// Shipping is an in-process ShippingAdapter.
type Shipping struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	shipments map[string]time.Time
}

// NewShipping creates a mock cargo carrier.
func NewShipping(cfg Config) *Shipping {
	return &Shipping{cfg: cfg, now: time.Now, shipments: make(map[string]time.Time)}
}

// CreateShipment issues a tracking number.
func (s *Shipping) CreateShipment(ctx context.Context, req provider.ShipmentRequest) (*provider.Shipment, error) {
	if err := wait(ctx, s.cfg.Delay); err != nil {
		return nil, err
	}

	switch {
	case strings.TrimSpace(req.Address.Line) == "":
		return nil, provider.Reject(shippingProvider, "Teslimat adresi zorunludur")
	case strings.TrimSpace(req.Address.City) == "":
		return nil, provider.Reject(shippingProvider, "İl bilgisi zorunludur")
	case strings.TrimSpace(req.Receiver.Phone) == "":
		return nil, provider.Reject(shippingProvider, "Alıcı telefonu zorunludur")
	}

	s.mu.Lock()
	var trackingNo string
	for {
		trackingNo = fmt.Sprintf("MK%010d", rand.Int64N(1e10))
		if _, taken := s.shipments[trackingNo]; !taken {
			break
		}
	}
	s.shipments[trackingNo] = s.now()
	s.mu.Unlock()

	return &provider.Shipment{
		TrackingNo:  trackingNo,
		TrackingURL: strings.TrimRight(s.cfg.TrackingBaseURL, "/") + "/" + trackingNo,
	}, nil
}

// Track reports the scans reached so far, one per TrackingStep since the
// shipment was created.
func (s *Shipping) Track(ctx context.Context, trackingNo string) (*provider.TrackingInfo, error) {
	if err := wait(ctx, s.cfg.Delay); err != nil {
		return nil, err
	}

	s.mu.Lock()
	created, ok := s.shipments[trackingNo]
	s.mu.Unlock()
	if !ok {
		return nil, provider.Reject(shippingProvider, "Gönderi bulunamadı")
	}

	reached := 1
	if s.cfg.TrackingStep > 0 {
		reached += int(s.now().Sub(created) / s.cfg.TrackingStep)
	}
	reached = min(reached, len(trackingStages))

	info := &provider.TrackingInfo{Events: make([]provider.TrackingEvent, 0, reached)}
	for i := 0; i < reached; i++ {
		stage := trackingStages[i]
		info.Events = append(info.Events, provider.TrackingEvent{
			Time:        created.Add(time.Duration(i) * s.cfg.TrackingStep),
			Status:      stage.code,
			Location:    stage.location,
			Description: stage.status,
		})
	}
	last := trackingStages[reached-1]
	info.StatusCode, info.Status = last.code, last.status
	return info, nil
}
