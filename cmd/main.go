package main

import (
	"context"
	"os/signal"
	"syscall"

	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/common"
	"gungnir/internal/engine"
	"gungnir/internal/net"
	"gungnir/internal/ring"
)

const (
	ingressCapacity = 1 << 16
	poolCapacity    = 1 << 20
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Demo shard catalog; a deployment loads these from the symbol service.
	specs := []common.SymbolSpec{
		{SymbolID: 1, Type: common.Spot, BaseCurrency: 1, QuoteCurrency: 2, TakerFeeBP: 10, MakerFeeBP: 2},
		{SymbolID: 2, Type: common.Perpetual, BaseCurrency: 1, QuoteCurrency: 2, TakerFeeBP: 8, MakerFeeBP: 1},
	}

	// Setup the ingress ring, the shard engine and the TCP gateway.
	ingress := ring.New[*common.OrderCommand](ingressCapacity)
	eng := engine.New(poolCapacity, specs...)
	srv := net.NewServer("0.0.0.0", 9001, ingress, eng)
	eng.SetReporter(srv)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return eng.Serve(t, ingress)
	})

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
