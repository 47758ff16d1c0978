// Command ricorrenze manages recurring payment definitions and inspects
// planner runs from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"ricorrenze/internal/boundary"
	"ricorrenze/internal/cli"
	"ricorrenze/internal/log"
	"ricorrenze/internal/storage"
)

const usage = `Usage: ricorrenze <command> [flags]

Commands:
  add          add a recurring payment definition
  list         list an owner's recurring payment definitions
  deactivate   deactivate a recurring payment definition
  last-run     show the most recent execution batch
  transactions list an owner's recent transactions
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentCLI)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(ctx, repo, os.Args[2:])
	case "list":
		err = runList(ctx, repo, os.Args[2:])
	case "deactivate":
		err = runDeactivate(ctx, repo, os.Args[2:])
	case "last-run":
		err = runLastRun(ctx, repo)
	case "transactions":
		err = runTransactions(ctx, repo, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runAdd(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "owner user ID")
	name := fs.String("name", "", "payment name")
	amount := fs.String("amount", "", "amount, e.g. 12.50")
	category := fs.String("category", "", "category name")
	every := fs.String("every", "", "interval: daily, weekly, monthly or yearly")
	dayOfMonth := fs.Int("day-of-month", 0, "day anchor for monthly payments (1-31)")
	dayOfWeek := fs.Int("day-of-week", -1, "day anchor for weekly payments (0=Sunday..6)")
	start := fs.String("start", "", "start date (yyyy-mm-dd)")
	end := fs.String("end", "", "optional end date (yyyy-mm-dd)")
	fs.Parse(args)

	in := boundary.DefinitionInput{
		OwnerID:    *owner,
		Name:       *name,
		Amount:     *amount,
		Category:   *category,
		Every:      *every,
		DayOfMonth: *dayOfMonth,
		StartDate:  *start,
		EndDate:    *end,
	}
	if *dayOfWeek >= 0 {
		in.DayOfWeek = dayOfWeek
	}

	p, err := in.Payment()
	if err != nil {
		return err
	}

	id, err := repo.CreateRecurringPayment(ctx, p)
	if err != nil {
		return err
	}

	fmt.Printf("created recurring payment %d (%s, %s %s, first occurrence %s)\n",
		id, p.Name, p.Amount, p.Every, p.NextOccurrence)
	return nil
}

func runList(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "owner user ID")
	fs.Parse(args)

	payments, err := repo.ListRecurringPayments(ctx, *owner)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		fmt.Println("no recurring payments")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tEVERY\tNEXT\tACTIVE")
	for _, p := range payments {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n",
			p.ID, p.Name, p.Amount, p.Every, p.NextOccurrence, p.Active)
	}
	return w.Flush()
}

func runDeactivate(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
	id := fs.Int64("id", 0, "recurring payment ID")
	fs.Parse(args)

	if err := repo.DeactivateRecurringPayment(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deactivated recurring payment %d\n", *id)
	return nil
}

func runLastRun(ctx context.Context, repo *storage.SQLiteRepository) error {
	batch, err := repo.LatestBatch(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("no planner runs recorded yet")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("batch %s on %s: processed %d, created %d, total %s\n",
		batch.ID, batch.ExecutionDate.Format("2006-01-02"),
		batch.ProcessedCount, batch.CreatedCount, batch.TotalAmount)
	for _, d := range batch.Details {
		status := "ok"
		if d.Failed() {
			status = "FAILED: " + d.Error
		}
		fmt.Printf("  %s (owner %d): %d cents, next %s [%s]\n",
			d.PaymentName, d.OwnerID, d.AmountCents, d.NextOccurrence, status)
	}
	return nil
}

func runTransactions(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	owner := fs.Int64("owner", 0, "owner user ID")
	limit := fs.Int("limit", 20, "maximum rows")
	fs.Parse(args)

	txs, err := repo.ListTransactions(ctx, *owner, *limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("no transactions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tNAME\tAMOUNT\tCATEGORY")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Date, t.Name, t.Amount, t.Category)
	}
	return w.Flush()
}
