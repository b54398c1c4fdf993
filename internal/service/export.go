package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/repository"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/logger"
)

// exportPageSize matches the largest page ListOrders serves.
const exportPageSize = 100

// exportHeader is the fixed column order of the order export.
var exportHeader = []string{
	"Sipariş No", "Durum", "Veli Adı", "Öğrenci Adı", "Telefon", "E-posta",
	"Okul", "Sınıf", "Paket", "Tutar", "İndirim Kodu", "İndirim Tutarı",
	"Ödeme Yöntemi", "Fatura No", "Kargo Takip No", "Sipariş Tarihi",
	"Ödeme Tarihi", "Kargo Tarihi", "Teslim Tarihi",
}

// Turkey has stayed on UTC+3 all year since 2016.
var exportZone = time.FixedZone("TRT", 3*60*60)

// ExportService writes order listings as spreadsheet-friendly CSV.
type ExportService struct {
	orders *OrderService
	logger *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(orders *OrderService, logger *slog.Logger) *ExportService {
	return &ExportService{orders: orders, logger: logger}
}

// ExportOrders writes every order matching filter to w: UTF-8 with a BOM,
// semicolon separated, every field quoted. Directors are limited to their
// own school. Paging fields of filter are ignored.
func (s *ExportService) ExportOrders(ctx context.Context, actor domain.Actor, filter repository.OrderFilter, w io.Writer) (int, error) {
	filter.Page = 1
	filter.PerPage = exportPageSize

	// The first page is read before anything is written so that access
	// errors leave w untouched.
	orders, total, err := s.orders.ListOrders(ctx, actor, filter)
	if err != nil {
		return 0, err
	}

	tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	bw := bufio.NewWriter(tw)
	names := newNameCache(s.orders.store)

	if err := writeCSVRow(bw, exportHeader); err != nil {
		return 0, err
	}
	written := 0
	for {
		for i := range orders {
			row, err := names.exportRow(ctx, &orders[i])
			if err != nil {
				return written, err
			}
			if err := writeCSVRow(bw, row); err != nil {
				return written, err
			}
			written++
		}
		if len(orders) == 0 || filter.Page*filter.PerPage >= total {
			break
		}
		filter.Page++
		if orders, total, err = s.orders.ListOrders(ctx, actor, filter); err != nil {
			return written, err
		}
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush export: %w", err)
	}
	if err := tw.Close(); err != nil {
		return written, fmt.Errorf("flush export: %w", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "orders exported",
		slog.String("actor_type", string(actor.Type)),
		slog.Int("rows", written),
	)
	return written, nil
}

// writeCSVRow writes fields separated by semicolons, each one quoted with
// embedded quotes doubled.
func writeCSVRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(';')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	_, err := w.WriteString("\r\n")
	if err != nil {
		return fmt.Errorf("write export row: %w", err)
	}
	return nil
}

// nameCache resolves school, class and package names once per export.
type nameCache struct {
	store    repository.Store
	schools  map[string]string
	classes  map[string]string
	packages map[string]string
}

func newNameCache(store repository.Store) *nameCache {
	return &nameCache{
		store:    store,
		schools:  make(map[string]string),
		classes:  make(map[string]string),
		packages: make(map[string]string),
	}
}

func (c *nameCache) lookup(ctx context.Context, cache map[string]string, id string, get func(context.Context, string) (string, error)) (string, error) {
	if id == "" {
		return "", nil
	}
	if name, ok := cache[id]; ok {
		return name, nil
	}
	name, err := get(ctx, id)
	if isNotFound(err) {
		name, err = "", nil
	}
	if err != nil {
		return "", err
	}
	cache[id] = name
	return name, nil
}

func (c *nameCache) exportRow(ctx context.Context, o *domain.Order) ([]string, error) {
	school, err := c.lookup(ctx, c.schools, o.SchoolID, func(ctx context.Context, id string) (string, error) {
		s, err := c.store.Schools().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return s.Name, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve school for export: %w", err)
	}
	class, err := c.lookup(ctx, c.classes, o.ClassID, func(ctx context.Context, id string) (string, error) {
		cl, err := c.store.Classes().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return cl.Name, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve class for export: %w", err)
	}
	pkg, err := c.lookup(ctx, c.packages, o.PackageID, func(ctx context.Context, id string) (string, error) {
		p, err := c.store.Packages().GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return p.Name, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve package for export: %w", err)
	}

	discount := ""
	if o.DiscountCode != "" {
		discount = o.DiscountAmount.StringFixed(2)
	}

	return []string{
		o.OrderNumber,
		o.Status.Label(),
		o.ParentName,
		o.StudentName,
		o.Phone,
		o.Email,
		school,
		class,
		pkg,
		o.TotalAmount.StringFixed(2),
		o.DiscountCode,
		discount,
		o.PaymentMethod.Label(),
		o.InvoiceNo,
		o.TrackingNo,
		exportTime(&o.CreatedAt),
		exportTime(o.PaidAt),
		exportTime(o.ShippedAt),
		exportTime(o.DeliveredAt),
	}, nil
}

func exportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(exportZone).Format("02.01.2006 15:04")
}
