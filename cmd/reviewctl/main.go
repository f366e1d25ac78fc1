// Command reviewctl lets an administrator work the payment review queue from
// a terminal.
//
//	reviewctl -as <admin uid> queue [-kind order] [-payment unpaid] [-status pending] [-q text]
//	reviewctl -as <admin uid> history <transaction id>
//	reviewctl -as <admin uid> verify <transaction id> approve|reject [note]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/shinyyama/community-backend/internal/app"
	"github.com/shinyyama/community-backend/internal/config"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/observability"
	"github.com/shinyyama/community-backend/internal/service"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("reviewctl: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("reviewctl", flag.ContinueOnError)
	actor := global.String("as", os.Getenv("REVIEWCTL_UID"), "administrator uid to act as")
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: reviewctl -as <uid> queue|history|verify ...")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	machine := service.NewStateMachine(a.Ledger, a.Roles, a.NotificationService(), service.WithLogger(logger))
	verify := observability.NewVerificationService(service.NewVerificationService(machine, a.Proofs), observability.WithLogger(logger))

	switch rest[0] {
	case "queue":
		return queue(ctx, verify, *actor, rest[1:], out)
	case "history":
		if len(rest) < 2 {
			return fmt.Errorf("usage: reviewctl history <transaction id>")
		}
		list, err := verify.History(ctx, rest[1], *actor)
		if err != nil {
			return err
		}
		writeHistory(out, list)
		return nil
	case "verify":
		if len(rest) < 3 {
			return fmt.Errorf("usage: reviewctl verify <transaction id> approve|reject [note]")
		}
		txn, err := verify.ApplyVerification(ctx, rest[1], *actor, lifecycle.Decision(rest[2]), strings.Join(rest[3:], " "))
		if err != nil {
			return err
		}
		writeTransactions(out, []model.Transaction{*txn})
		return nil
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func queue(ctx context.Context, verify service.VerificationService, actor string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	kind := fs.String("kind", "", "order or enrollment")
	payment := fs.String("payment", string(lifecycle.PaymentUnpaid), "payment status filter")
	status := fs.String("status", "", "status filter")
	text := fs.String("q", "", "match on id or buyer")
	limit := fs.Int("limit", 50, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := verify.ListForReview(ctx, actor, service.ReviewQuery{
		Kind:          lifecycle.Kind(*kind),
		PaymentStatus: lifecycle.PaymentStatus(*payment),
		Status:        lifecycle.Status(*status),
		Text:          *text,
		Limit:         *limit,
		Offset:        *offset,
	})
	if err != nil {
		return err
	}
	writeTransactions(out, list)
	return nil
}

func writeTransactions(out io.Writer, list []model.Transaction) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Kind", "Buyer", "Seller", "Total", "Status", "Payment", "Proof", "Created"})
	table.SetAutoWrapText(false)
	for _, t := range list {
		proof := "-"
		if t.HasProof() {
			proof = *t.PaymentProofRef
		}
		seller := t.Seller()
		if seller == "" {
			seller = "-"
		}
		table.Append([]string{
			t.ID,
			string(t.Kind),
			t.BuyerUID,
			seller,
			strconv.FormatInt(t.TotalAmount, 10),
			string(t.Status),
			string(t.PaymentStatus),
			proof,
			t.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

func writeHistory(out io.Writer, list []model.TransactionHistory) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"When", "Actor", "Op", "From", "To", "Note", "Metadata"})
	table.SetAutoWrapText(false)
	for _, h := range list {
		from := string(h.PreviousStatus)
		if from == "" {
			from = "-"
		}
		table.Append([]string{
			h.CreatedAt.Format(time.RFC3339),
			h.ActorUID,
			string(h.Op),
			from,
			string(h.NewStatus),
			h.Note,
			string(h.Metadata),
		})
	}
	table.Render()
}
