package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gungnir/internal/common"
	gungnirNet "gungnir/internal/net"
)

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange gateway")
	uid := flag.Uint64("uid", 0, "User id (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'move', 'reduce']")

	// Order Parameters
	symbol := flag.Uint("symbol", 1, "Symbol id")
	orderID := flag.Uint64("oid", 0, "Order id (unique per user)")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "gtc", "Order type: gtc|ioc|fok|post-only|stop-limit|stop-market|iceberg|day|gtd")
	price := flag.Int64("price", 100, "Limit price in ticks")
	reserve := flag.Int64("reserve", 0, "Reserve price cap for market sweeps")
	stopPrice := flag.Int64("stop", 0, "Stop trigger price")
	visible := flag.Uint64("visible", 0, "Iceberg visible slice")
	expire := flag.Uint64("expire", 0, "GTD deadline (logical clock)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	flag.Parse()

	// Validation
	if *uid == 0 {
		fmt.Println("Error: -uid is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	// Connect to Gateway
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to gateway at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as uid %d\n", *serverAddr, *uid)

	// Start Listening for Reports (Async)
	go readReports(conn)

	// Prepare Enums using 'common' package
	side := common.Bid
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}

	orderType, err := parseOrderType(*typeStr)
	if err != nil {
		log.Fatalf("Invalid order type %q: %v", *typeStr, err)
	}

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		quantities := parseQuantities(*qtyStr)
		oid := *orderID
		for _, q := range quantities {
			frame := gungnirNet.SerializeNewOrder(gungnirNet.NewOrderMessage{
				Symbol:       uint32(*symbol),
				UID:          *uid,
				OrderID:      oid,
				Side:         side,
				OrderType:    orderType,
				Price:        *price,
				ReservePrice: *reserve,
				StopPrice:    *stopPrice,
				Size:         q,
				VisibleSize:  *visible,
				ExpireTime:   *expire,
			})
			if _, err := conn.Write(frame); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
			} else {
				fmt.Printf("-> Sent %s %s %d @ %d (oid %d)\n",
					strings.ToUpper(*sideStr), *typeStr, q, *price, oid)
			}
			oid++
			// Small optional sleep to keep report output readable.
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		frame := gungnirNet.SerializeCancelOrder(gungnirNet.CancelOrderMessage{
			Symbol:  uint32(*symbol),
			UID:     *uid,
			OrderID: *orderID,
		})
		if _, err := conn.Write(frame); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent Cancel for oid %d\n", *orderID)
		}

	case "move":
		frame := gungnirNet.SerializeMoveOrder(gungnirNet.MoveOrderMessage{
			Symbol:   uint32(*symbol),
			UID:      *uid,
			OrderID:  *orderID,
			NewPrice: *price,
		})
		if _, err := conn.Write(frame); err != nil {
			log.Printf("Failed to send move request: %v", err)
		} else {
			fmt.Printf("-> Sent Move for oid %d to %d\n", *orderID, *price)
		}

	case "reduce":
		quantities := parseQuantities(*qtyStr)
		if len(quantities) != 1 {
			log.Fatal("Error: -qty must be a single value for reduce")
		}
		frame := gungnirNet.SerializeReduceOrder(gungnirNet.ReduceOrderMessage{
			Symbol:  uint32(*symbol),
			UID:     *uid,
			OrderID: *orderID,
			Delta:   quantities[0],
		})
		if _, err := conn.Write(frame); err != nil {
			log.Printf("Failed to send reduce request: %v", err)
		} else {
			fmt.Printf("-> Sent Reduce for oid %d by %d\n", *orderID, quantities[0])
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	// Keep the client alive to receive execution reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseOrderType(s string) (common.OrderType, error) {
	switch strings.ToLower(s) {
	case "gtc":
		return common.GTC, nil
	case "ioc":
		return common.IOC, nil
	case "fok":
		return common.FOK, nil
	case "post-only":
		return common.PostOnly, nil
	case "stop-limit":
		return common.StopLimit, nil
	case "stop-market":
		return common.StopMarket, nil
	case "iceberg":
		return common.Iceberg, nil
	case "day":
		return common.Day, nil
	case "gtd":
		return common.GTD, nil
	}
	return common.GTC, fmt.Errorf("unknown order type %q", s)
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

// readReports streams execution reports off the connection and prints
// them.
func readReports(conn net.Conn) {
	buf := make([]byte, gungnirNet.ReportLen)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			log.Printf("Report stream closed: %v", err)
			return
		}
		report, err := gungnirNet.ParseReport(buf)
		if err != nil {
			log.Printf("Bad report frame: %v", err)
			continue
		}
		switch report.EventType {
		case common.EventTrade:
			fmt.Printf("<- TRADE %d@%d maker=(%d,%d) taker=(%d,%d)\n",
				report.Size, report.Price,
				report.MakerUID, report.MakerOrderID,
				report.TakerUID, report.TakerOrderID)
		case common.EventCancel:
			fmt.Printf("<- CANCEL oid=%d reason=%v remaining=%d\n",
				report.OrderID, report.Reason, report.Remaining)
		case common.EventReject:
			fmt.Printf("<- REJECT oid=%d reason=%v\n", report.OrderID, report.Reason)
		case common.EventActivate:
			fmt.Printf("<- ACTIVATE oid=%d\n", report.OrderID)
		}
	}
}
