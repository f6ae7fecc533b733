package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	dsn := getenv("PG_DSN", "postgres://rv:rv@localhost:5432/rv?sslmode=disable")
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Seeding accounts...")
	if err := seedAccounts(ctx, pool); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	fmt.Println("→ Seeding categories...")
	if err := seedCategories(ctx, pool); err != nil {
		log.Fatalf("seed categories: %v", err)
	}

	fmt.Println("→ Seeding products...")
	if err := seedProducts(ctx, pool); err != nil {
		log.Fatalf("seed products: %v", err)
	}

	fmt.Println("→ Seeding boxes...")
	if err := seedBoxes(ctx, pool); err != nil {
		log.Fatalf("seed boxes: %v", err)
	}

	fmt.Println("→ Seeding preferences...")
	if err := seedPreferences(ctx, pool); err != nil {
		log.Fatalf("seed preferences: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedAccounts(ctx context.Context, pool *pgxpool.Pool) error {
	accounts := []struct {
		username string
		email    string
		fullName string
		password string
		role     string
	}{
		{"admin", "admin@rv.local", "Admin Account", "admin123", "ADMIN"},
		{"normal_user", "user@rv.local", "Normal User", "hunter2", "USER1"},
	}

	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), 11)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO rvperson (name, univident, realname, pass, saldo, roleid)
			VALUES ($1, $2, $3, $4, 0, (SELECT roleid FROM role WHERE role = $5))
			ON CONFLICT (name) DO NOTHING`,
			a.username, a.email, a.fullName, string(hash), a.role)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool) error {
	for _, descr := range []string{"Drinks", "Snacks", "Sweets", "Other"} {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM prodgroup WHERE descr = $1)`, descr).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO prodgroup (descr) VALUES ($1)`, descr); err != nil {
			return err
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct {
		barcode   string
		name      string
		category  string
		buyPrice  int64
		sellPrice int64
		stock     int64
	}{
		{"5029578000972", "Energy drink 0.5l", "Drinks", 95, 120, 24},
		{"6415600506236", "Coffee, filter pack", "Drinks", 310, 380, 6},
		{"6416453061071", "Chocolate bar 45g", "Sweets", 60, 95, 40},
		{"6420256005056", "Salty crackers", "Snacks", 110, 150, 12},
	}

	for _, p := range products {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM price WHERE barcode = $1 AND endtime IS NULL)`,
			p.barcode).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		var itemID int64
		err := pool.QueryRow(ctx, `
			INSERT INTO rvitem (descr, pgrpid)
			VALUES ($1, (SELECT pgrpid FROM prodgroup WHERE descr = $2 LIMIT 1))
			RETURNING itemid`, p.name, p.category).Scan(&itemID)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO price (barcode, itemid, buyprice, sellprice, count, starttime)
			VALUES ($1, $2, $3, $4, $5, now())`,
			p.barcode, itemID, p.buyPrice, p.sellPrice, p.stock)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedBoxes(ctx context.Context, pool *pgxpool.Pool) error {
	boxes := []struct {
		barcode     string
		itemBarcode string
		itemCount   int
	}{
		{"14029578000979", "5029578000972", 24},
	}

	for _, b := range boxes {
		_, err := pool.Exec(ctx, `
			INSERT INTO rvbox (barcode, itembarcode, itemcount)
			VALUES ($1, $2, $3)
			ON CONFLICT (barcode) DO NOTHING`,
			b.barcode, b.itemBarcode, b.itemCount)
		if err != nil {
			return err
		}
	}
	return nil
}

func seedPreferences(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO preferences (prefkey, prefvalue)
		VALUES ('globalDefaultMargin', '0.05')
		ON CONFLICT (prefkey) DO NOTHING`)
	return err
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
