package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	googlegrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ledgerv1 "github.com/JoeShih716/go-credit-ledger/api/ledgerv1"
	"github.com/JoeShih716/go-credit-ledger/pkg/grpc"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
)

// 對單一客戶並發扣款，驗證餘額不會低於 -limit
func main() {
	target := flag.String("target", "localhost:50051", "ledger grpc address")
	customerID := flag.Int64("customer", 1, "customer id")
	totalCount := flag.Int("n", 1000, "number of debits")
	concurrency := flag.Int("c", 100, "concurrent requests")
	amount := flag.Int64("amount", 0, "debit amount, 0 means limit/n + 1")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	flag.Parse()

	logger.Setup(logger.Config{Level: "info", Pretty: true})

	// 伺服器剛啟動時先等連線就緒
	pool := grpc.NewPool(grpc.WithDefaultCallOptions(googlegrpc.WaitForReady(true)))
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("did not connect")
	}
	c := ledgerv1.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	before, err := c.GetStatement(ctx, &ledgerv1.GetStatementRequest{CustomerId: *customerID})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read statement")
	}
	limit := before.Balance.Limit
	if *amount == 0 {
		*amount = limit/int64(*totalCount) + 1
	}

	var (
		accepted, rejected, failed atomic.Int64
		wg                         sync.WaitGroup
	)
	sem := make(chan struct{}, *concurrency)
	startTime := time.Now()

	for i := 0; i < *totalCount; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := c.ApplyTransaction(ctx, &ledgerv1.ApplyTransactionRequest{
				CustomerId:  *customerID,
				Amount:      *amount,
				Kind:        "d",
				Description: "loadtest",
			})
			switch {
			case err == nil:
				accepted.Add(1)
				if resp.Balance < -resp.Limit {
					log.Error().Int64("balance", resp.Balance).Int64("limit", resp.Limit).Msg("balance below floor")
				}
			case status.Code(err) == codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%1000 == 0 {
					log.Warn().Err(err).Int("idx", idx).Msg("debit failed")
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()
	after, err := c.GetStatement(readCtx, &ledgerv1.GetStatementRequest{CustomerId: *customerID})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read statement")
	}

	fmt.Printf("Completed %d requests in %v\n", *totalCount, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(*totalCount)/elapsed.Seconds())
	fmt.Printf("Accepted: %d Rejected: %d Failed: %d\n", accepted.Load(), rejected.Load(), failed.Load())
	fmt.Printf("Balance: %d -> %d (limit %d)\n", before.Balance.Total, after.Balance.Total, limit)

	spent := accepted.Load() * *amount
	want := before.Balance.Total - spent
	if after.Balance.Total != want || after.Balance.Total < -limit {
		fmt.Printf("INCONSISTENT: expected balance %d\n", want)
		os.Exit(1)
	}
}
