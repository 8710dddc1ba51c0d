package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-sql-assistant/internal/domain"
)

func TestCreateAudit_FillsIDAndTime(t *testing.T) {
	db := newTestDB(t, &domain.QueryAudit{})
	a := &domain.QueryAudit{UserID: "u1", Question: "Привет", Route: domain.RouteChat, Success: true}
	if err := CreateAudit(context.Background(), db, a); err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	if len(a.ID) != 36 || a.CreatedAt.IsZero() {
		t.Fatalf("audit = %+v", a)
	}
	got, err := GetAudit(context.Background(), db, a.ID)
	if err != nil || got.Question != "Привет" || got.Route != domain.RouteChat {
		t.Fatalf("GetAudit = %+v, %v", got, err)
	}
}

func TestCreateAudit_RejectsUnknownRoute(t *testing.T) {
	db := newTestDB(t, &domain.QueryAudit{})
	a := &domain.QueryAudit{UserID: "u1", Question: "q", Route: "bogus"}
	if err := CreateAudit(context.Background(), db, a); err == nil {
		t.Fatalf("route check constraint should reject %q", a.Route)
	}
}

func TestGetAudit_NotFound(t *testing.T) {
	db := newTestDB(t, &domain.QueryAudit{})
	if _, err := GetAudit(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestListAuditPage_OrderAndPaging(t *testing.T) {
	db := newTestDB(t, &domain.QueryAudit{})
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := &domain.QueryAudit{
			UserID:       "u1",
			Question:     string(rune('a' + i)),
			GeneratedSQL: "SELECT 1;",
			Route:        domain.RouteSQL,
			Success:      true,
			RowCount:     i,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := CreateAudit(ctx, db, a); err != nil {
			t.Fatal(err)
		}
	}
	_ = CreateAudit(ctx, db, &domain.QueryAudit{UserID: "u2", Question: "z", Route: domain.RouteChat})

	page, err := ListAuditPage(ctx, db, "u1", 0, 2)
	if err != nil || len(page) != 2 || page[0].Question != "e" || page[1].Question != "d" {
		t.Fatalf("page1 = %+v, %v", page, err)
	}
	page, _ = ListAuditPage(ctx, db, "u1", 4, 2)
	if len(page) != 1 || page[0].Question != "a" {
		t.Fatalf("last page = %+v", page)
	}

	n, err := CountAudit(ctx, db, "u1")
	if err != nil || n != 5 {
		t.Fatalf("CountAudit = %d, %v", n, err)
	}
	if n, _ := CountAudit(ctx, db, ""); n != 6 {
		t.Fatalf("CountAudit(all) = %d", n)
	}
}
