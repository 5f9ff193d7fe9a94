package pricing

// Reference costs at the small size.
var defaultRates = []TradeRate{
	{Trade: TradeHVAC, Materials: 350, Labor: 500},
	{Trade: TradePlumbing, Materials: 200, Labor: 400},
	{Trade: TradeElectrical, Materials: 250, Labor: 450},
	{Trade: TradeRoofing, Materials: 400, Labor: 600},
	{Trade: TradeDrywall, Materials: 150, Labor: 300},
	{Trade: TradePainting, Materials: 100, Labor: 250},
}

// Observed market bands per trade and size.
var defaultBands = []BandEntry{
	{TradeHVAC, SizeSmall, CompetitorBand{Min: 850, Avg: 1150, Max: 1500}},
	{TradeHVAC, SizeMedium, CompetitorBand{Min: 3500, Avg: 4200, Max: 5500}},
	{TradeHVAC, SizeLarge, CompetitorBand{Min: 12000, Avg: 14500, Max: 18000}},
	{TradeHVAC, SizeXLarge, CompetitorBand{Min: 40000, Avg: 50000, Max: 65000}},

	{TradePlumbing, SizeSmall, CompetitorBand{Min: 600, Avg: 800, Max: 1000}},
	{TradePlumbing, SizeMedium, CompetitorBand{Min: 2500, Avg: 3200, Max: 4000}},
	{TradePlumbing, SizeLarge, CompetitorBand{Min: 9000, Avg: 11000, Max: 14000}},
	{TradePlumbing, SizeXLarge, CompetitorBand{Min: 28000, Avg: 35000, Max: 45000}},

	{TradeElectrical, SizeSmall, CompetitorBand{Min: 700, Avg: 950, Max: 1200}},
	{TradeElectrical, SizeMedium, CompetitorBand{Min: 3200, Avg: 4100, Max: 5000}},
	{TradeElectrical, SizeLarge, CompetitorBand{Min: 11500, Avg: 14000, Max: 17000}},
	{TradeElectrical, SizeXLarge, CompetitorBand{Min: 34000, Avg: 44000, Max: 55000}},

	{TradeRoofing, SizeSmall, CompetitorBand{Min: 1000, Avg: 1400, Max: 1800}},
	{TradeRoofing, SizeMedium, CompetitorBand{Min: 4500, Avg: 5500, Max: 7000}},
	{TradeRoofing, SizeLarge, CompetitorBand{Min: 14500, Avg: 18000, Max: 22000}},
	{TradeRoofing, SizeXLarge, CompetitorBand{Min: 46000, Avg: 56000, Max: 70000}},

	{TradeDrywall, SizeSmall, CompetitorBand{Min: 450, Avg: 600, Max: 800}},
	{TradeDrywall, SizeMedium, CompetitorBand{Min: 1800, Avg: 2300, Max: 2800}},
	{TradeDrywall, SizeLarge, CompetitorBand{Min: 7000, Avg: 8500, Max: 10500}},
	{TradeDrywall, SizeXLarge, CompetitorBand{Min: 22000, Avg: 27000, Max: 33000}},

	{TradePainting, SizeSmall, CompetitorBand{Min: 350, Avg: 450, Max: 600}},
	{TradePainting, SizeMedium, CompetitorBand{Min: 1300, Avg: 1600, Max: 2000}},
	{TradePainting, SizeLarge, CompetitorBand{Min: 4500, Avg: 5500, Max: 7000}},
	{TradePainting, SizeXLarge, CompetitorBand{Min: 15000, Avg: 20000, Max: 25000}},
}

// DefaultRateTable returns the built-in table.
func DefaultRateTable() *RateTable {
	t, err := NewRateTable(defaultRates, defaultBands, nil)
	if err != nil {
		panic("pricing: invalid built-in rate table: " + err.Error())
	}
	return t
}
