package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Applies the legacy kiosk schema. Statements are idempotent so the script
// can run against an existing database without clobbering data.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS role (
		roleid serial PRIMARY KEY,
		role varchar(32) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS rvperson (
		userid serial PRIMARY KEY,
		createdate timestamptz NOT NULL DEFAULT now(),
		roleid integer NOT NULL REFERENCES role (roleid),
		name varchar(64) NOT NULL UNIQUE,
		univident varchar(128) NOT NULL UNIQUE,
		pass varchar(128) NOT NULL,
		saldo bigint NOT NULL DEFAULT 0,
		realname varchar(128),
		rfid varchar(128),
		privacy_level integer NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS prodgroup (
		pgrpid serial PRIMARY KEY,
		descr varchar(128) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rvitem (
		itemid serial PRIMARY KEY,
		descr varchar(128) NOT NULL,
		pgrpid integer NOT NULL REFERENCES prodgroup (pgrpid),
		deleted boolean NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS price (
		priceid serial PRIMARY KEY,
		barcode varchar(14) NOT NULL,
		itemid integer NOT NULL REFERENCES rvitem (itemid),
		buyprice bigint NOT NULL,
		sellprice bigint NOT NULL,
		count bigint NOT NULL DEFAULT 0,
		starttime timestamptz NOT NULL DEFAULT now(),
		endtime timestamptz,
		userid integer REFERENCES rvperson (userid)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS price_open_barcode_idx
		ON price (barcode) WHERE endtime IS NULL`,
	`CREATE TABLE IF NOT EXISTS rvbox (
		barcode varchar(14) PRIMARY KEY,
		itembarcode varchar(14) NOT NULL,
		itemcount integer NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS saldohistory (
		saldhistid serial PRIMARY KEY,
		userid integer NOT NULL REFERENCES rvperson (userid),
		time timestamptz NOT NULL DEFAULT now(),
		saldo bigint NOT NULL,
		difference bigint NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS itemhistory (
		itemhistid serial PRIMARY KEY,
		time timestamptz NOT NULL DEFAULT now(),
		count bigint NOT NULL,
		actionid integer NOT NULL,
		itemid integer NOT NULL REFERENCES rvitem (itemid),
		userid integer NOT NULL REFERENCES rvperson (userid),
		priceid1 integer REFERENCES price (priceid),
		saldhistid integer REFERENCES saldohistory (saldhistid),
		itemhistid2 integer UNIQUE REFERENCES itemhistory (itemhistid)
	)`,
	`CREATE TABLE IF NOT EXISTS personhist (
		pershistid serial PRIMARY KEY,
		time timestamptz NOT NULL DEFAULT now(),
		actionid integer NOT NULL,
		userid1 integer NOT NULL REFERENCES rvperson (userid),
		userid2 integer NOT NULL REFERENCES rvperson (userid),
		saldhistid integer REFERENCES saldohistory (saldhistid)
	)`,
	`CREATE TABLE IF NOT EXISTS boxhistory (
		boxhistid serial PRIMARY KEY,
		time timestamptz NOT NULL DEFAULT now(),
		barcode varchar(14) NOT NULL,
		itemid integer NOT NULL REFERENCES rvitem (itemid),
		itemcount integer NOT NULL,
		userid integer NOT NULL REFERENCES rvperson (userid),
		actionid integer NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		prefkey varchar(64) PRIMARY KEY,
		prefvalue text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key varchar(128) PRIMARY KEY,
		module varchar(64) NOT NULL,
		created_at timestamptz NOT NULL
	)`,
	`INSERT INTO role (role) VALUES ('USER1'), ('ADMIN'), ('INACTIVE')
		ON CONFLICT (role) DO NOTHING`,
}

func main() {
	dsn := getenv("PG_DSN", "postgres://rv:rv@localhost:5432/rv?sslmode=disable")
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("apply schema: %v\nstatement: %s", err, stmt)
		}
	}
	log.Println("schema applied")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
