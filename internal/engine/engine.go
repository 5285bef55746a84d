package engine

import (
	"errors"
	"runtime"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/common"
	"gungnir/internal/ring"
)

const drainBatchSize = 256

var ErrUnknownSymbol = errors.New("unknown symbol")

// Reporter receives every event of a command after the book has processed
// it, in emission order. Trades are additionally delivered pre-enriched
// with the symbol's fee schedule for downstream accounting.
type Reporter interface {
	ReportEvent(symbol uint32, ev common.Event)
	ReportTrade(trade common.Trade)
}

// Engine owns one matching book per symbol of its shard and routes
// commands by symbol id. It is single-threaded: exactly one goroutine may
// call Process or Serve.
type Engine struct {
	Books map[uint32]*OrderBook

	reporter Reporter
}

// New builds a shard engine with one book per symbol spec.
func New(capacity int, specs ...common.SymbolSpec) *Engine {
	engine := &Engine{
		Books: make(map[uint32]*OrderBook, len(specs)),
	}
	for _, spec := range specs {
		engine.Books[spec.SymbolID] = NewOrderBook(spec, capacity)
	}
	return engine
}

// SetReporter installs the downstream event sink. Passing nil detaches it.
func (e *Engine) SetReporter(r Reporter) {
	e.reporter = r
}

// Process runs one command against its symbol's book and fans the
// resulting events out to the reporter. The command's event buffer is
// reset first: it is an output field.
func (e *Engine) Process(cmd *common.OrderCommand) {
	cmd.Events.Reset()

	book, ok := e.Books[cmd.Symbol]
	if !ok {
		cmd.Events.Append(common.Event{
			Type:      common.EventReject,
			UID:       cmd.UID,
			OrderID:   cmd.OrderID,
			Reason:    common.ReasonSymbolMismatch,
			Timestamp: cmd.Timestamp,
		})
		e.report(cmd)
		return
	}

	book.Process(cmd)
	e.report(cmd)
}

func (e *Engine) report(cmd *common.OrderCommand) {
	if e.reporter == nil {
		return
	}
	spec := common.SymbolSpec{}
	if book, ok := e.Books[cmd.Symbol]; ok {
		spec = book.Spec()
	}
	for _, ev := range cmd.Events {
		if ev.Type == common.EventTrade {
			e.reporter.ReportTrade(common.Trade{
				Symbol:       cmd.Symbol,
				MakerUID:     ev.MakerUID,
				MakerOrderID: ev.MakerOrderID,
				TakerUID:     ev.TakerUID,
				TakerOrderID: ev.TakerOrderID,
				Timestamp:    ev.Timestamp,
				MatchQty:     ev.Size,
				Price:        ev.Price,
				MakerFeeBP:   spec.MakerFeeBP,
				TakerFeeBP:   spec.TakerFeeBP,
			})
		}
		e.reporter.ReportEvent(cmd.Symbol, ev)
	}
}

// Serve is the shard worker loop: it drains the ingress ring and processes
// commands sequentially until the tomb dies. Commands are processed to
// completion in delivery order; the event stream preserves that order
// bit-exact.
func (e *Engine) Serve(t *tomb.Tomb, in *ring.SPSC[*common.OrderCommand]) error {
	log.Info().Int("books", len(e.Books)).Msg("shard worker starting")

	buf := make([]*common.OrderCommand, drainBatchSize)
	for {
		select {
		case <-t.Dying():
			log.Info().Msg("shard worker exiting")
			return nil
		default:
			n := in.Drain(buf)
			if n == 0 {
				runtime.Gosched()
				continue
			}
			for i := 0; i < n; i++ {
				e.Process(buf[i])
			}
		}
	}
}

// Book returns the matching book for a symbol.
func (e *Engine) Book(symbol uint32) (*OrderBook, error) {
	book, ok := e.Books[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return book, nil
}

// LogBook dumps every book's top of book. Diagnostic only; never called on
// the hot path.
func (e *Engine) LogBook() {
	for symbol, book := range e.Books {
		bid, hasBid := book.BestBid()
		ask, hasAsk := book.BestAsk()
		log.Info().
			Uint32("symbol", symbol).
			Bool("hasBid", hasBid).
			Int64("bestBid", bid).
			Bool("hasAsk", hasAsk).
			Int64("bestAsk", ask).
			Int("resting", book.RestingCount()).
			Int("stops", book.StopCount()).
			Msg("book state")
	}
}
