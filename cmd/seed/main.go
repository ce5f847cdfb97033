package main

import (
	"context"
	"fmt"
	"log"
	"time"
	_ "time/tzdata"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-booking-widget/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking-widget/internal/bookings"
	"github.com/wolfman30/clinic-booking-widget/internal/clinic"
	appconfig "github.com/wolfman30/clinic-booking-widget/internal/config"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

const demoSlug = "demo-clinic"

// seed creates a demo tenant with a location, an agent and a handful of
// booked patients, then prints the widget embed token for it.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")
	_ = godotenv.Load()

	cfg := appconfig.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logging.New("error"))
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dir := clinic.NewPostgresDirectory(pool)
	tenant, err := seedTenant(ctx, dir)
	if err != nil {
		log.Fatalf("seed tenant: %v", err)
	}

	engine := bookings.NewEngine(dir, bookings.NewPostgresStore(pool), bookings.Options{
		SlotLength:  cfg.SlotLength(),
		HorizonDays: cfg.HorizonDays,
		Logger:      logging.New("error"),
	})
	booked, err := seedBookings(ctx, engine, tenant, 8)
	if err != nil {
		log.Fatalf("seed bookings: %v", err)
	}
	log.Printf("bookings seeded: %d", booked)

	token, err := widgetauth.NewSigner(cfg.WidgetSigningSecret).Issue(tenant.Slug)
	if err != nil {
		log.Printf("skipping token: %v", err)
	} else {
		fmt.Printf("slug=%s token=%s\n", tenant.Slug, token)
	}
	log.Println("seed complete")
}

func weekdayHours(open, close string) clinic.BusinessHours {
	day := &clinic.DayHours{Open: open, Close: close}
	return clinic.BusinessHours{Monday: day, Tuesday: day, Wednesday: day, Thursday: day, Friday: day}
}

func seedTenant(ctx context.Context, dir *clinic.PostgresDirectory) (*clinic.Tenant, error) {
	tenant := &clinic.Tenant{
		ID:            uuid.NewString(),
		Slug:          demoSlug,
		Name:          gofakeit.Company() + " Clinic",
		Timezone:      "America/New_York",
		BusinessHours: weekdayHours("09:00", "17:00"),
		PlanTier:      clinic.PlanPremium,
		Notifications: clinic.NotificationPrefs{
			EmailEnabled:    true,
			EmailRecipients: []string{gofakeit.Email()},
			SMSEnabled:      true,
			SMSRecipients:   []string{"+1" + gofakeit.Phone()},
		},
		ContactEmail: gofakeit.Email(),
		ContactPhone: "+1" + gofakeit.Phone(),
	}
	if err := dir.SaveTenant(ctx, tenant); err != nil {
		return nil, err
	}
	// The upsert keeps the original id when the slug already exists.
	saved, err := dir.TenantBySlug(ctx, demoSlug)
	if err != nil {
		return nil, err
	}

	location := &clinic.Location{
		ID:             uuid.NewString(),
		TenantID:       saved.ID,
		Name:           gofakeit.City() + " Office",
		InsuranceNotes: "Most PPO plans accepted.",
	}
	if err := dir.SaveLocation(ctx, location); err != nil {
		return nil, err
	}
	agentHours := weekdayHours("10:00", "14:00")
	agent := &clinic.Agent{
		ID:            uuid.NewString(),
		TenantID:      saved.ID,
		LocationID:    location.ID,
		Name:          gofakeit.FirstName(),
		BusinessHours: &agentHours,
	}
	if err := dir.SaveAgent(ctx, agent); err != nil {
		return nil, err
	}
	log.Printf("tenant %s (%s) location=%s agent=%s", saved.Slug, saved.ID, location.ID, agent.ID)
	return saved, nil
}

// seedBookings books up to count fake patients into the next open slots.
func seedBookings(ctx context.Context, engine *bookings.Engine, tenant *clinic.Tenant, count int) (int, error) {
	result, err := engine.Availability(ctx, tenant, bookings.AvailabilityQuery{Count: count * 2})
	if err != nil {
		return 0, err
	}
	booked := 0
	for _, slot := range result.Slots {
		if booked == count {
			break
		}
		_, err := engine.Create(ctx, tenant, bookings.CreateRequest{
			Name:    gofakeit.Name(),
			Contact: bookings.Contact{Email: gofakeit.Email(), Phone: "+1" + gofakeit.Phone()},
			Start:   slot.StartTime,
			End:     slot.EndTime,
		})
		if err != nil {
			log.Printf("skip slot %s: %v", slot.Start, err)
			continue
		}
		booked++
	}
	return booked, nil
}
