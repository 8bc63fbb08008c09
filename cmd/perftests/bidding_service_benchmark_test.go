package perftests

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	ctx := context.Background()
	_, svc := setupRepo(b.N, b.N, 50)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		bidAmount := decimal.NewFromInt(int64(51 + rand.Intn(100)))
		if _, err := svc.PlaceBid(ctx, auctionID(i), userID(i), bidAmount); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	const users = 1000
	ctx := context.Background()
	_, svc := setupRepo(users, 1, 50)

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(ctx, auctionID(0), userID(rnd.Intn(users)), decimal.NewFromInt(nextBid))
		}
	})
}

// Benchmark 3: GetWinningBid - Single - Threaded (Low Contention)
func Benchmark_GetWinningBid_SingleThreaded(b *testing.B) {
	ctx := context.Background()
	_, svc := setupRepo(10, b.N, 50)

	for i := 0; i < b.N; i++ {
		for j := 0; j < 10; j++ {
			_, _ = svc.PlaceBid(ctx, auctionID(i), userID(j), decimal.NewFromInt(int64(60+j*10)))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := svc.GetWinningBid(ctx, auctionID(i)); err != nil {
			b.Fatalf("failed to get winning bid: %v", err)
		}
	}
}

// Benchmark 4: GetWinningBid - Concurrent (High Contention)
func Benchmark_GetWinningBid_ConcurrentSharedAuction(b *testing.B) {
	ctx := context.Background()
	_, svc := setupRepo(100, 1, 50)

	for j := 0; j < 100; j++ {
		_, _ = svc.PlaceBid(ctx, auctionID(0), userID(j), decimal.NewFromInt(int64(51+j)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var counter int64

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.GetWinningBid(ctx, auctionID(0)); err != nil {
				b.Errorf("failed to get winning bid: %v", err)
				return
			}
			atomic.AddInt64(&counter, 1)
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	const users = 500
	ctx := context.Background()
	_, svc := setupRepo(users, 1, 50)

	for j := 0; j < 50; j++ {
		_, _ = svc.PlaceBid(ctx, auctionID(0), userID(j), decimal.NewFromInt(int64(51+j*2)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 150
	var counter int64

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			switch opType := rnd.Intn(10); {
			case opType < 3:
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = svc.PlaceBid(ctx, auctionID(0), userID(rnd.Intn(users)), decimal.NewFromInt(nextBid))
			default:
				_, _ = svc.GetWinningBid(ctx, auctionID(0))
			}
			atomic.AddInt64(&counter, 1)
		}
	})
}

// Benchmark 6: HighestBidder - Concurrent reads while one writer keeps raising
func Benchmark_HighestBidder_WithWriter(b *testing.B) {
	const users = 100
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, svc := setupRepo(users, 1, 50)

	go func() {
		amount := int64(51)
		for i := 0; ctx.Err() == nil; i++ {
			_, _ = svc.PlaceBid(ctx, auctionID(0), userID(i%users), decimal.NewFromInt(amount))
			amount++
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = svc.HighestBidder(ctx, auctionID(0))
		}
	})
}
