// fix-slip-index rebuilds the partial unique index that backs webhook
// dedupe. Needed after importing legacy callback rows, which can carry
// duplicate slip references that block index creation on startup.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	connStr := flag.String("dsn", os.Getenv("FOODCOURT_DATABASE_URL"), "postgres connection string")
	apply := flag.Bool("apply", false, "delete duplicate rows and rebuild the index (default: report only)")
	flag.Parse()

	if *connStr == "" {
		log.Fatal("set -dsn or FOODCOURT_DATABASE_URL")
	}

	db, err := sql.Open("postgres", *connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("connect:", err)
	}

	var dupes int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT rail, slip_reference FROM back_transactions
			WHERE slip_reference <> ''
			GROUP BY rail, slip_reference HAVING COUNT(*) > 1
		) d`).Scan(&dupes)
	if err != nil {
		log.Fatal("count duplicates:", err)
	}
	fmt.Printf("%d duplicated (rail, slip_reference) pairs\n", dupes)

	if !*apply {
		fmt.Println("dry run; pass -apply to keep the oldest row of each pair and rebuild the index")
		return
	}

	// Keep the lowest id of each duplicate group; it is the row that won
	// the original race and fed settlements.
	if _, err := db.Exec(`
		DELETE FROM back_transactions bt USING back_transactions keep
		WHERE bt.rail = keep.rail
		  AND bt.slip_reference = keep.slip_reference
		  AND bt.slip_reference <> ''
		  AND bt.id > keep.id`); err != nil {
		log.Fatal("delete duplicates:", err)
	}

	if _, err := db.Exec(`DROP INDEX IF EXISTS idx_back_transactions_slip`); err != nil {
		log.Fatal("drop index:", err)
	}
	if _, err := db.Exec(`
		CREATE UNIQUE INDEX idx_back_transactions_slip
			ON back_transactions(rail, slip_reference) WHERE slip_reference <> ''`); err != nil {
		log.Fatal("create index:", err)
	}
	fmt.Println("slip index rebuilt")
}
