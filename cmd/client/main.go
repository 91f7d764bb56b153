// cmd/client/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	g "github.com/mahabubulhasibshawon/parcel-express/internal/adapters/grpc"
	"github.com/mahabubulhasibshawon/parcel-express/internal/adapters/localqueue"
	"github.com/mahabubulhasibshawon/parcel-express/internal/application"
	"github.com/mahabubulhasibshawon/parcel-express/internal/config"
	"github.com/mahabubulhasibshawon/parcel-express/internal/domain"
	"github.com/mahabubulhasibshawon/parcel-express/internal/logger"
	"github.com/mahabubulhasibshawon/parcel-express/internal/orderid"
	"github.com/mahabubulhasibshawon/parcel-express/pkg/auth"
)

func main() {
	var (
		quoteFile  = flag.String("quote", "", "price the order form in `file` and exit")
		submitFile = flag.String("submit", "", "submit the order form in `file`")
		confirm    = flag.Bool("confirm", false, "accept the calculated price when submitting")
		syncOnce   = flag.Bool("sync", false, "push queued orders once and exit")
		watch      = flag.Bool("watch", false, "keep pushing queued orders until interrupted")
		orderID    = flag.String("order", "", "order `id` for -action and -history")
		action     = flag.String("action", "", "lifecycle action: accept, decline, complete_packing, pick_up, depart, deliver, complete")
		history    = flag.Bool("history", false, "show the order and its status changes")
		stats      = flag.Bool("stats", false, "show local queue counts")
		list       = flag.Bool("list", false, "list your orders")
		limit      = flag.Int64("limit", 10, "page size for -list")
		page       = flag.Int64("page", 1, "page for -list")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync(zl) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := localqueue.Open(cfg.Queue.Path, zl)
	if err != nil {
		zl.Fatal("failed to open local queue", zap.Error(err))
	}
	defer queue.Close()

	actor := domain.Actor{ID: cfg.Actor.ID, Role: domain.ActorRole(cfg.Actor.Role)}
	token := cfg.GRPC.Token
	if token == "" {
		// Development setup: mint a token for the configured actor.
		token, err = auth.GenerateToken([]byte(cfg.JWT.Secret), actor.ID, string(actor.Role), cfg.JWT.TTL)
		if err != nil {
			zl.Fatal("failed to mint token", zap.Error(err))
		}
	}
	conn, err := g.Dial(cfg.GRPC.Target, token)
	if err != nil {
		zl.Fatal("failed to create client", zap.Error(err), zap.String("target", cfg.GRPC.Target))
	}
	defer conn.Close()
	remote := g.NewRemoteClient(conn)

	book := cfg.Pricing.RateBook()
	syncer := application.NewSyncCoordinator(queue, remote, zl, cfg.Sync.AttemptTimeout)
	submissions := application.NewSubmissionService(application.SubmissionDeps{
		Queue:          queue,
		Remote:         remote,
		Rates:          remote,
		Book:           book,
		IDs:            orderid.New(book.Regions(), nil, nil),
		Sync:           syncer,
		Log:            zl,
		AttemptTimeout: cfg.Sync.AttemptTimeout,
	})

	if *watch {
		zl.Info("watching local queue", zap.Duration("interval", cfg.Sync.Interval))
		syncer.Run(ctx, cfg.Sync.Interval)
		return
	}

	// Anything left from a previous run goes out first.
	startup := syncer.SyncPendingOrders(ctx)

	switch {
	case *quoteFile != "":
		form := mustReadForm(*quoteFile)
		price, err := submissions.Quote(ctx, form)
		exitOn(err)
		printJSON(price)

	case *submitFile != "":
		form := mustReadForm(*submitFile)
		price, err := submissions.Quote(ctx, form)
		exitOn(err)
		if !*confirm {
			printJSON(price)
			fmt.Fprintln(os.Stderr, "re-run with -confirm to submit at this price")
			os.Exit(2)
		}
		form.Quote = &price
		res, err := submissions.SubmitOrder(ctx, form)
		exitOn(err)
		printJSON(map[string]string{"order_id": res.OrderID, "outcome": string(res.Outcome), "notice": res.Notice})

	case *syncOnce:
		printJSON(reportView(startup))

	case *action != "":
		lc := application.NewLifecycle(remote, zl)
		updated, err := lc.Transition(ctx, *orderID, domain.Action(*action), actor)
		exitOn(err)
		printJSON(updated)

	case *history:
		order, events, err := remote.OrderHistory(ctx, *orderID)
		exitOn(err)
		printJSON(map[string]interface{}{"order": order, "events": events})

	case *stats:
		s, err := queue.Stats(ctx)
		exitOn(err)
		printJSON(s)

	case *list:
		orders, total, err := remote.ListOrders(ctx, domain.ListFilter{Limit: *limit, Page: *page})
		exitOn(err)
		printJSON(map[string]interface{}{"orders": orders, "total": total})

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func reportView(r application.SyncReport) map[string]interface{} {
	view := map[string]interface{}{
		"run_id":     r.RunID,
		"attempted":  r.Attempted,
		"synced":     r.Synced,
		"duplicates": r.Duplicates,
		"failed":     r.Failed,
	}
	if r.ListErr != nil {
		view["error"] = r.ListErr.Error()
	}
	return view
}

func mustReadForm(path string) application.OrderForm {
	data, err := os.ReadFile(path)
	exitOn(err)
	var form application.OrderForm
	exitOn(json.Unmarshal(data, &form))
	return form
}

func exitOn(err error) {
	if err == nil {
		return
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		printJSON(verr.Fields)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
