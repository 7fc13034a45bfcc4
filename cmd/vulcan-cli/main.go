// Command vulcan-cli is a thin command-line client for vulcan-server.
//
// Usage:
//
//	vulcan-cli [-server URL] accounts
//	vulcan-cli [-server URL] positions
//	vulcan-cli [-server URL] buy|sell <account> <instrument> <quantity> [limit-price]
//	vulcan-cli [-server URL] order <local-id>
//	vulcan-cli [-server URL] cancel <local-id>
//	vulcan-cli [-server URL] quote <instrument> <kind>
//	vulcan-cli [-server URL] trades [instrument]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"vulcan/pkg/vulcan"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "vulcan-server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := vulcan.NewClient(*serverURL)
	ctx := context.Background()

	switch cmd := args[0]; cmd {
	case "accounts":
		accounts, err := client.GetAccounts(ctx)
		exitOn(err)
		printJSON(accounts)

	case "positions":
		positions, err := client.GetPositions(ctx)
		exitOn(err)
		printJSON(positions)

	case "buy", "sell":
		if len(args) < 4 {
			log.Fatalf("usage: %s <account> <instrument> <quantity> [limit-price]", cmd)
		}
		quantity, err := strconv.ParseInt(args[3], 10, 64)
		exitOn(err)
		if len(args) > 4 {
			price, err := decimal.NewFromString(args[4])
			exitOn(err)
			snap, err := client.SubmitLimitOrder(ctx, args[1], args[2], cmd, price, quantity)
			exitOn(err)
			printJSON(snap)
		} else {
			snap, err := client.SubmitMarketOrder(ctx, args[1], args[2], cmd, quantity)
			exitOn(err)
			printJSON(snap)
		}

	case "order":
		if len(args) < 2 {
			log.Fatal("usage: order <local-id>")
		}
		localID, err := strconv.ParseInt(args[1], 10, 64)
		exitOn(err)
		snap, err := client.GetOrder(ctx, localID)
		exitOn(err)
		printJSON(snap)

	case "cancel":
		if len(args) < 2 {
			log.Fatal("usage: cancel <local-id>")
		}
		localID, err := strconv.ParseInt(args[1], 10, 64)
		exitOn(err)
		exitOn(client.CancelOrder(ctx, localID))
		fmt.Println("cancel requested")

	case "quote":
		if len(args) < 3 {
			log.Fatal("usage: quote <instrument> <kind>")
		}
		q, err := client.GetQuote(ctx, args[1], args[2])
		exitOn(err)
		printJSON(q)

	case "trades":
		instrument := ""
		if len(args) > 1 {
			instrument = args[1]
		}
		trades, err := client.GetTrades(ctx, instrument)
		exitOn(err)
		printJSON(trades)

	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

func exitOn(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
