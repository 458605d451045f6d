package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nse-signal-bot/internal/database"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed the instrument universe with the NIFTY 50 constituents",
	RunE:  runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.instruments.UpsertBatch(ctx, nifty50Seed()); err != nil {
		return fmt.Errorf("failed to seed instruments: %w", err)
	}
	fmt.Printf("Seeded %d NIFTY 50 instruments\n", len(nifty50Seed()))
	return nil
}

func nifty50Seed() []database.Instrument {
	seeds := []struct {
		symbol, name, sector string
	}{
		{"RELIANCE.NS", "Reliance Industries", "Energy"},
		{"TCS.NS", "Tata Consultancy Services", "Information Technology"},
		{"HDFCBANK.NS", "HDFC Bank", "Financial Services"},
		{"ICICIBANK.NS", "ICICI Bank", "Financial Services"},
		{"INFY.NS", "Infosys", "Information Technology"},
		{"HINDUNILVR.NS", "Hindustan Unilever", "FMCG"},
		{"ITC.NS", "ITC", "FMCG"},
		{"SBIN.NS", "State Bank of India", "Financial Services"},
		{"BHARTIARTL.NS", "Bharti Airtel", "Telecom"},
		{"KOTAKBANK.NS", "Kotak Mahindra Bank", "Financial Services"},
		{"LT.NS", "Larsen & Toubro", "Construction"},
		{"AXISBANK.NS", "Axis Bank", "Financial Services"},
		{"ASIANPAINT.NS", "Asian Paints", "Consumer Durables"},
		{"MARUTI.NS", "Maruti Suzuki", "Automobile"},
		{"BAJFINANCE.NS", "Bajaj Finance", "Financial Services"},
		{"HCLTECH.NS", "HCL Technologies", "Information Technology"},
		{"SUNPHARMA.NS", "Sun Pharmaceutical", "Healthcare"},
		{"TITAN.NS", "Titan Company", "Consumer Durables"},
		{"WIPRO.NS", "Wipro", "Information Technology"},
		{"ULTRACEMCO.NS", "UltraTech Cement", "Construction Materials"},
		{"NESTLEIND.NS", "Nestle India", "FMCG"},
		{"TATAMOTORS.NS", "Tata Motors", "Automobile"},
		{"POWERGRID.NS", "Power Grid Corporation", "Power"},
		{"NTPC.NS", "NTPC", "Power"},
		{"TATASTEEL.NS", "Tata Steel", "Metals"},
		{"M&M.NS", "Mahindra & Mahindra", "Automobile"},
		{"TECHM.NS", "Tech Mahindra", "Information Technology"},
		{"INDUSINDBK.NS", "IndusInd Bank", "Financial Services"},
		{"ADANIENT.NS", "Adani Enterprises", "Metals & Mining"},
		{"ADANIPORTS.NS", "Adani Ports", "Services"},
		{"JSWSTEEL.NS", "JSW Steel", "Metals"},
		{"BAJAJFINSV.NS", "Bajaj Finserv", "Financial Services"},
		{"GRASIM.NS", "Grasim Industries", "Construction Materials"},
		{"HINDALCO.NS", "Hindalco Industries", "Metals"},
		{"DRREDDY.NS", "Dr. Reddy's Laboratories", "Healthcare"},
		{"CIPLA.NS", "Cipla", "Healthcare"},
		{"BRITANNIA.NS", "Britannia Industries", "FMCG"},
		{"EICHERMOT.NS", "Eicher Motors", "Automobile"},
		{"COALINDIA.NS", "Coal India", "Metals & Mining"},
		{"BPCL.NS", "Bharat Petroleum", "Energy"},
		{"ONGC.NS", "Oil & Natural Gas Corporation", "Energy"},
		{"DIVISLAB.NS", "Divi's Laboratories", "Healthcare"},
		{"HEROMOTOCO.NS", "Hero MotoCorp", "Automobile"},
		{"TATACONSUM.NS", "Tata Consumer Products", "FMCG"},
		{"APOLLOHOSP.NS", "Apollo Hospitals", "Healthcare"},
		{"BAJAJ-AUTO.NS", "Bajaj Auto", "Automobile"},
		{"SBILIFE.NS", "SBI Life Insurance", "Financial Services"},
		{"HDFCLIFE.NS", "HDFC Life Insurance", "Financial Services"},
		{"UPL.NS", "UPL", "Chemicals"},
		{"LTIM.NS", "LTIMindtree", "Information Technology"},
	}

	instruments := make([]database.Instrument, 0, len(seeds))
	for _, s := range seeds {
		instruments = append(instruments, database.Instrument{
			Symbol:     s.symbol,
			Name:       s.name,
			Sector:     s.sector,
			IsIndex50:  true,
			IsIndex100: true,
			IsActive:   true,
		})
	}
	return instruments
}
