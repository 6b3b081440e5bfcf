package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/diewo77/sellhub/internal/config"
	"github.com/diewo77/sellhub/internal/models"
)

func TestSeedIdempotent(t *testing.T) {
	d, err := Open(config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		SQLitePath:     "file:" + t.Name() + "?mode=memory&cache=shared",
		ConnectRetries: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(d); err != nil {
		t.Fatal(err)
	}
	if err := Seed(d); err != nil {
		t.Fatal(err)
	}
	if err := Seed(d); err != nil {
		t.Fatal(err)
	}
	var count int64
	d.Model(&models.Product{}).Count(&count)
	if int(count) != len(demoProducts) {
		t.Fatalf("expected %d products got %d", len(demoProducts), count)
	}
	var mug models.Product
	if err := d.Where("name = ?", "Ceramic Mug").First(&mug).Error; err != nil {
		t.Fatalf("mug: %v", err)
	}
	if mug.Price.String() != "9.99" {
		t.Fatalf("unexpected mug price %s", mug.Price)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMaskDSN(t *testing.T) {
	cases := map[string]string{
		"host=db user=u password=secret dbname=x":   "host=db user=u password=*** dbname=x",
		"postgres://u:secret@db:5432/x?sslmode=off": "postgres://u:***@db:5432/x?sslmode=off",
		"sellhub.db": "sellhub.db",
	}
	for in, want := range cases {
		if got := MaskDSN(in); got != want {
			t.Errorf("MaskDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected paired up/down migrations, got up=%d down=%d", up, down)
	}
}
