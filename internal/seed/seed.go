// Package seed populates a fresh installation with demo schools, classes,
// packages and discount codes. Every record goes through the catalog and
// discount services, so validation and audit logging match production
// writes. Records that already exist (by school name, package name or
// discount code) are left untouched, which makes the seed safe to re-run.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
)

// Actor is recorded as the author of seeded records.
var Actor = domain.Actor{ID: "seed", Type: domain.ActorAdmin}

// --------------------------------------------------------------------------
// Seed data definitions
// --------------------------------------------------------------------------

type packageDef struct {
	name        string
	description string
	price       string
	items       []itemDef
}

type itemDef struct {
	name     string
	quantity int
	price    string
}

type classDef struct {
	name       string
	pkg        string
	commission string
}

type schoolDef struct {
	name         string
	address      string
	phone        string
	delivery     domain.DeliveryType
	password     string
	directorName string
	directorMail string
	classes      []classDef
}

type discountDef struct {
	code       string
	kind       domain.DiscountType
	value      string
	minAmount  string
	maxAmount  string
	usageLimit int
}

var packages = []packageDef{
	{
		name:        "1. Sınıf Kırtasiye Paketi",
		description: "Birinci sınıf öğrencileri için temel kırtasiye seti",
		price:       "450.00",
		items: []itemDef{
			{"Çizgili defter", 5, "25.00"},
			{"Kurşun kalem", 10, "5.00"},
			{"Silgi", 3, "10.00"},
			{"Boya kalemi seti", 1, "120.00"},
			{"Makas", 1, "45.00"},
		},
	},
	{
		name:        "2. Sınıf Kırtasiye Paketi",
		description: "İkinci sınıf öğrencileri için kırtasiye seti",
		price:       "520.00",
		items: []itemDef{
			{"Kareli defter", 6, "25.00"},
			{"Kurşun kalem", 10, "5.00"},
			{"Pastel boya", 1, "140.00"},
			{"Cetvel", 1, "20.00"},
		},
	},
	{
		name:        "Anaokulu Etkinlik Paketi",
		description: "Okul öncesi etkinlik ve boyama seti",
		price:       "380.00",
		items: []itemDef{
			{"Boyama kitabı", 2, "60.00"},
			{"Parmak boya", 1, "90.00"},
			{"Oyun hamuru", 4, "30.00"},
		},
	},
}

var schools = []schoolDef{
	{
		name:         "Atatürk İlkokulu",
		address:      "Cumhuriyet Mah. Okul Sok. No:1 Çankaya/Ankara",
		phone:        "03124440001",
		delivery:     domain.DeliverySchool,
		password:     "ATA12345",
		directorName: "Ayşe Yılmaz",
		directorMail: "mudur@ataturkilkokulu.k12.tr",
		classes: []classDef{
			{"1-A", "1. Sınıf Kırtasiye Paketi", "25.00"},
			{"1-B", "1. Sınıf Kırtasiye Paketi", "25.00"},
			{"2-A", "2. Sınıf Kırtasiye Paketi", "30.00"},
		},
	},
	{
		name:         "Gazi Anaokulu",
		address:      "Bahçelievler Mah. 7. Cad. No:12 Kadıköy/İstanbul",
		phone:        "02164440002",
		delivery:     domain.DeliveryCargo,
		password:     "GAZI2024",
		directorName: "Mehmet Demir",
		directorMail: "mudur@gazianaokulu.k12.tr",
		classes: []classDef{
			{"Papatyalar", "Anaokulu Etkinlik Paketi", "20.00"},
			{"Gelincikler", "Anaokulu Etkinlik Paketi", "20.00"},
		},
	},
}

var discounts = []discountDef{
	{code: "YILBASI20", kind: domain.DiscountPercentage, value: "20", minAmount: "100.00"},
	{code: "OKUL50", kind: domain.DiscountFixed, value: "50.00", minAmount: "300.00", usageLimit: 500},
	{code: "ERKEN15", kind: domain.DiscountPercentage, value: "15", maxAmount: "75.00", usageLimit: 1000},
}

// --------------------------------------------------------------------------
// Seeder
// --------------------------------------------------------------------------

// Summary counts what a run created and skipped.
type Summary struct {
	Packages  int
	Schools   int
	Classes   int
	Discounts int
	Skipped   int
}

// Seeder writes the demo data set.
type Seeder struct {
	catalog   *service.CatalogService
	discounts *service.DiscountService
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Seeder.
func New(catalog *service.CatalogService, discounts *service.DiscountService, logger *slog.Logger) *Seeder {
	return &Seeder{
		catalog:   catalog,
		discounts: discounts,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run seeds packages first, then schools with their classes and director
// logins, then discount codes.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	packageIDs, err := s.seedPackages(ctx, &sum)
	if err != nil {
		return sum, err
	}
	if err := s.seedSchools(ctx, packageIDs, &sum); err != nil {
		return sum, err
	}
	if err := s.seedDiscounts(ctx, &sum); err != nil {
		return sum, err
	}

	s.logger.InfoContext(ctx, "seed complete",
		slog.Int("packages", sum.Packages),
		slog.Int("schools", sum.Schools),
		slog.Int("classes", sum.Classes),
		slog.Int("discounts", sum.Discounts),
		slog.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

func (s *Seeder) seedPackages(ctx context.Context, sum *Summary) (map[string]string, error) {
	existing, err := s.catalog.ListPackages(ctx, Actor, true)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	ids := make(map[string]string, len(packages))
	for _, p := range existing {
		ids[p.Name] = p.ID
	}

	for _, def := range packages {
		if _, ok := ids[def.name]; ok {
			sum.Skipped++
			continue
		}
		in := service.PackageInput{
			Name:        def.name,
			Description: def.description,
			Price:       decimal.RequireFromString(def.price),
			IsActive:    true,
		}
		for _, item := range def.items {
			in.Items = append(in.Items, service.PackageItemInput{
				Name:      item.name,
				Quantity:  item.quantity,
				UnitPrice: decimal.RequireFromString(item.price),
			})
		}
		p, err := s.catalog.CreatePackage(ctx, Actor, in)
		if err != nil {
			return nil, fmt.Errorf("create package %q: %w", def.name, err)
		}
		ids[p.Name] = p.ID
		sum.Packages++
		s.logger.InfoContext(ctx, "package created", slog.String("name", p.Name), slog.String("id", p.ID))
	}
	return ids, nil
}

func (s *Seeder) seedSchools(ctx context.Context, packageIDs map[string]string, sum *Summary) error {
	existing, err := s.catalog.ListSchools(ctx, Actor, true)
	if err != nil {
		return fmt.Errorf("list schools: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, sc := range existing {
		names[strings.ToLower(sc.Name)] = true
	}

	for _, def := range schools {
		if names[strings.ToLower(def.name)] {
			sum.Skipped++
			continue
		}
		school, err := s.catalog.CreateSchool(ctx, Actor, service.SchoolInput{
			Name:         def.name,
			Address:      def.address,
			Phone:        def.phone,
			DeliveryType: def.delivery,
			Password:     def.password,
			DirectorName: def.directorName,
			IsActive:     true,
		})
		if err != nil {
			return fmt.Errorf("create school %q: %w", def.name, err)
		}
		sum.Schools++
		s.logger.InfoContext(ctx, "school created",
			slog.String("name", school.Name),
			slog.String("password", school.Password),
		)

		if err := s.catalog.SetDirectorCredentials(ctx, Actor, school.ID, service.DirectorCredentials{
			Name:     def.directorName,
			Email:    def.directorMail,
			Password: "mudur-" + strings.ToLower(def.password),
		}); err != nil {
			return fmt.Errorf("set director of %q: %w", def.name, err)
		}

		for _, c := range def.classes {
			if _, err := s.catalog.CreateClass(ctx, Actor, service.ClassInput{
				SchoolID:         school.ID,
				Name:             c.name,
				PackageID:        packageIDs[c.pkg],
				CommissionAmount: decimal.RequireFromString(c.commission),
				IsActive:         true,
			}); err != nil {
				return fmt.Errorf("create class %q of %q: %w", c.name, def.name, err)
			}
			sum.Classes++
		}
	}
	return nil
}

func (s *Seeder) seedDiscounts(ctx context.Context, sum *Summary) error {
	existing, err := s.discounts.ListDiscounts(ctx, Actor)
	if err != nil {
		return fmt.Errorf("list discounts: %w", err)
	}
	codes := make(map[string]bool, len(existing))
	for _, d := range existing {
		codes[d.Code] = true
	}

	now := s.now()
	for _, def := range discounts {
		if codes[def.code] {
			sum.Skipped++
			continue
		}
		in := service.DiscountInput{
			Code:       def.code,
			Type:       def.kind,
			Value:      decimal.RequireFromString(def.value),
			ValidFrom:  now.Add(-time.Hour),
			ValidUntil: now.AddDate(1, 0, 0),
			IsActive:   true,
		}
		if def.minAmount != "" {
			in.MinAmount = decimal.NewNullDecimal(decimal.RequireFromString(def.minAmount))
		}
		if def.maxAmount != "" {
			in.MaxDiscount = decimal.NewNullDecimal(decimal.RequireFromString(def.maxAmount))
		}
		if def.usageLimit > 0 {
			limit := def.usageLimit
			in.UsageLimit = &limit
		}
		if _, err := s.discounts.CreateDiscount(ctx, Actor, in); err != nil {
			return fmt.Errorf("create discount %q: %w", def.code, err)
		}
		sum.Discounts++
	}
	return nil
}
