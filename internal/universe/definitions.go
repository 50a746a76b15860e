package universe

import "github.com/wonny/marketscan/backend/internal/contracts"

// Built-in universe ids
const (
	SP100    = "SP100"
	TechUSA  = "TECH_USA"
	BanksUSA = "BANKS_USA"
	Energy   = "ENERGY"
	Custom   = "CUSTOM"
)

// Definition is the static description of a universe.
// Symbols are the defaults used while no override is persisted.
type Definition struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Symbols     []string `yaml:"symbols"`
	MaxSymbols  int      `yaml:"max_symbols"`
}

func (d Definition) universe(symbols []string) contracts.Universe {
	return contracts.Universe{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Symbols:     symbols,
		MaxSymbols:  d.MaxSymbols,
	}
}

// sp100Seed is a large-cap starting list until `universe seed-sp100` runs
var sp100Seed = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK.B", "LLY", "V",
	"JPM", "WMT", "XOM", "UNH", "MA", "PG", "JNJ", "HD", "COST", "ABBV",
	"AVGO", "ORCL", "CRM", "NFLX", "ADBE", "AMD", "CSCO", "ACN", "INTC", "QCOM",
	"TXN", "INTU", "NOW", "AMAT", "MU", "ADI", "LRCX", "KLAC", "SNPS", "CDNS",
	"BAC", "WFC", "GS", "MS", "SCHW", "BLK", "SPGI", "AXP", "C", "USB",
	"TMO", "ABT", "DHR", "MRK", "PFE", "AMGN", "BMY", "CVS", "GILD", "VRTX",
	"NKE", "DIS", "MCD", "SBUX", "TGT", "LOW", "TJX", "BKNG", "CMG",
	"BA", "CAT", "HON", "UNP", "RTX", "DE", "LMT", "GE", "MMM", "CVX",
	"T", "VZ", "TMUS", "CMCSA", "CHTR", "WBD",
}

// Builtins returns the default catalogue in display order
func Builtins() []Definition {
	return []Definition{
		{
			ID:          SP100,
			Name:        "S&P 100",
			Description: "The 100 largest US companies",
			Symbols:     append([]string(nil), sp100Seed...),
			MaxSymbols:  100,
		},
		{
			ID:          TechUSA,
			Name:        "US Technology",
			Description: "Large US technology companies",
			Symbols: []string{
				"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
				"META", "TSLA", "AVGO", "ADBE", "CSCO",
				"CRM", "AMD", "INTC", "ORCL", "QCOM",
				"TXN", "AMAT", "LRCX", "KLAC", "NXPI",
				"ANSS", "CDNS", "SNPS", "FTNT", "ZM",
				"TEAM", "NET", "DDOG", "MDB", "SNOW",
				"CRWD", "OKTA", "DOCN", "WDAY", "CDW",
			},
			MaxSymbols: 50,
		},
		{
			ID:          BanksUSA,
			Name:        "Banks & Financials",
			Description: "US banks and financial services",
			Symbols: []string{
				"JPM", "BAC", "WFC", "GS", "MS",
				"C", "BLK", "AXP", "COF", "SCHW",
				"TFC", "PNC", "USB", "BK", "STT",
				"CFG", "MTB", "ZION", "HBAN", "KEY",
			},
			MaxSymbols: 50,
		},
		{
			ID:          Energy,
			Name:        "Energy & Commodities",
			Description: "Energy sector and commodity producers",
			Symbols: []string{
				"XOM", "CVX", "SLB", "EOG", "COP",
				"MPC", "VLO", "PSX", "HES", "FANG",
				"DVN", "CTRA", "MRO", "OVV", "APA",
			},
			MaxSymbols: 50,
		},
		{
			ID:          Custom,
			Name:        "My Watchlist",
			Description: "Personal configurable watchlist",
			Symbols:     []string{},
			MaxSymbols:  50,
		},
	}
}
