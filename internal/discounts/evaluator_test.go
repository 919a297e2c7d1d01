package discounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/smes-pos/smes-backend/pkg/db/models"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

type stubDiscountReader struct {
	byProduct map[uuid.UUID][]models.Discount
	byCode    map[string]models.Discount
}

func (s stubDiscountReader) FindByCode(_ context.Context, code string) (*models.Discount, error) {
	d, ok := s.byCode[normalizeCode(code)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (s stubDiscountReader) ListForProduct(_ context.Context, productID uuid.UUID) ([]models.Discount, error) {
	return append([]models.Discount(nil), s.byProduct[productID]...), nil
}

func pct(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func timePtr(t time.Time) *time.Time { return &t }

func TestIsActiveBoundsInclusive(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		d    models.Discount
		want bool
	}{
		{"open window", models.Discount{}, true},
		{"starts now", models.Discount{ValidFrom: timePtr(now)}, true},
		{"ends now", models.Discount{ValidTo: timePtr(now)}, true},
		{"not started", models.Discount{ValidFrom: timePtr(now.Add(time.Second))}, false},
		{"ended", models.Discount{ValidTo: timePtr(now.Add(-time.Second))}, false},
	}
	for _, tc := range cases {
		if got := IsActive(tc.d, now); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestMaxDiscountPercentageTakesHighestActive(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	productID := uuid.New()
	ev, err := NewEvaluator(stubDiscountReader{byProduct: map[uuid.UUID][]models.Discount{
		productID: {
			{Code: "TEN", Percentage: pct("10")},
			{Code: "FIFTEEN", Percentage: pct("15")},
			{Code: "EXPIRED", Percentage: pct("50"), ValidTo: timePtr(now.Add(-time.Hour))},
		},
	}})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	got, err := ev.MaxDiscountPercentage(context.Background(), productID, now)
	if err != nil {
		t.Fatalf("max discount: %v", err)
	}
	if !got.Equal(pct("15")) {
		t.Fatalf("expected 15, got %s", got)
	}

	none, err := ev.MaxDiscountPercentage(context.Background(), uuid.New(), now)
	if err != nil {
		t.Fatalf("max discount: %v", err)
	}
	if !none.IsZero() {
		t.Fatalf("expected zero for undiscounted product, got %s", none)
	}
}

func TestMaxDiscountPercentageClamps(t *testing.T) {
	productID := uuid.New()
	ev, _ := NewEvaluator(stubDiscountReader{byProduct: map[uuid.UUID][]models.Discount{
		productID: {{Code: "HUGE", Percentage: pct("150")}},
	}})
	got, err := ev.MaxDiscountPercentage(context.Background(), productID, time.Now())
	if err != nil {
		t.Fatalf("max discount: %v", err)
	}
	if !got.Equal(pct("100")) {
		t.Fatalf("expected clamp to 100, got %s", got)
	}
	if !Clamp(pct("-3")).IsZero() {
		t.Fatal("expected negative clamp to zero")
	}
}

func TestValidByCode(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ev, _ := NewEvaluator(stubDiscountReader{byCode: map[string]models.Discount{
		"SAVE10": {Code: "SAVE10", Percentage: pct("10")},
		"OLD":    {Code: "OLD", Percentage: pct("10"), ValidTo: timePtr(now.Add(-time.Hour))},
	}})
	ctx := context.Background()

	d, err := ev.ValidByCode(ctx, " save10 ", now)
	if err != nil {
		t.Fatalf("valid code: %v", err)
	}
	if d.Code != "SAVE10" {
		t.Fatalf("unexpected discount %s", d.Code)
	}

	_, err = ev.ValidByCode(ctx, "MISSING", now)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if pkgerrors.As(err).Message() != "Discount not found" {
		t.Fatalf("unexpected message %q", pkgerrors.As(err).Message())
	}

	_, err = ev.ValidByCode(ctx, "OLD", now)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
