package services

import (
	"context"
	"sync"
	"testing"

	"github.com/diewo77/sellhub/internal/models"
)

func TestConcurrentOrdersNeverDriveStockNegative(t *testing.T) {
	db := setupTestDB(t)
	// SQLite in shared-cache mode allows a single writer; one pooled
	// connection makes concurrent transactions queue instead of erroring.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	pub := &recordingPublisher{}
	svc := NewOrderService(db, pub, "")
	p := seedProduct(t, db, "Limited Edition", 10, "50.00")

	const workers = 12
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), []OrderItemInput{{ProductID: p.ID, Quantity: 3, Price: dec("50.00")}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if got := stockOf(t, db, p.ID); got != 0 {
		t.Fatalf("expected stock 0 got %d", got)
	}
	var lines int64
	db.Model(&models.OrderItem{}).Count(&lines)
	if lines != workers {
		t.Fatalf("expected %d line items got %d", workers, lines)
	}
	if pub.count() != workers {
		t.Fatalf("expected %d events got %d", workers, pub.count())
	}
}
