package main

import (
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/logging"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/metrics"
	"perp-order-engine/internal/position"
	"perp-order-engine/internal/swap"
	"perp-order-engine/internal/trade"
	"perp-order-engine/internal/usdmath"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "", "optional engine config path")
	snapshotPath := flag.String("snapshot", "", "market snapshot yaml (required)")
	marketName := flag.String("market", "", "market name from the snapshot (required)")
	side := flag.String("side", "long", "long or short")
	collateralSymbol := flag.String("collateral", "", "collateral token symbol (default: market short token)")
	collateralAmount := flag.String("collateral-amount", "0", "initial collateral in token units")
	leverageX := flag.Float64("leverage-x", 0, "target leverage multiple (0 = independent sizing)")
	indexAmount := flag.String("index-amount", "0", "desired index exposure in token units (leverage-by-size)")
	triggerPrice := flag.String("trigger-price", "0", "limit trigger price, 1e30 USD per whole token (0 = market)")
	closeUsd := flag.String("close-usd", "0", "decrease size in USD at the 1e30 scale (0 = increase quote)")
	keepLeverage := flag.Bool("keep-leverage", true, "release collateral proportionally on decrease")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	params, err := cfg.Engine.Params()
	if err != nil {
		fatal(err)
	}

	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if *snapshotPath == "" {
		fatal(errors.New("-snapshot is required"))
	}
	snap, err := loadSnapshot(*snapshotPath)
	if err != nil {
		fatal(err)
	}
	tokens, markets, positions, err := snap.build()
	if err != nil {
		fatal(err)
	}

	if *marketName == "" {
		fatal(errors.New("-market is required"))
	}
	var marketInfo *market.MarketInfo
	for _, m := range markets {
		if m.Name == *marketName {
			marketInfo = m
			break
		}
	}
	if marketInfo == nil {
		fatal(fmt.Errorf("market %q not found in snapshot", *marketName))
	}

	isLong := strings.EqualFold(*side, "long")
	if !isLong && !strings.EqualFold(*side, "short") {
		fatal(fmt.Errorf("invalid -side %q", *side))
	}

	collateralToken := marketInfo.ShortToken
	if *collateralSymbol != "" {
		collateralToken = nil
		for _, t := range tokens {
			if strings.EqualFold(t.Symbol, *collateralSymbol) {
				collateralToken = t
				break
			}
		}
		if collateralToken == nil {
			fatal(fmt.Errorf("collateral token %q not found in snapshot", *collateralSymbol))
		}
	}

	engine := trade.NewEngine(params, market.DepthImpactModel{Params: params}, log, metrics.NewNoop())

	infos := position.NewAggregator(params, log, nil).Aggregate(positions, markets, tokens, nil, false)
	for _, info := range infos {
		printPositionInfo(info)
	}
	existing := findPosition(infos, marketInfo.MarketAddress, collateralToken.Address, isLong)

	div := params.BasisPointsDivisor

	closeSizeUsd := mustBig(*closeUsd, "-close-usd")
	if closeSizeUsd.Sign() > 0 {
		quoteDecrease(engine, marketInfo, collateralToken, existing, isLong, closeSizeUsd, *keepLeverage, mustBig(*triggerPrice, "-trigger-price"), div)
		return
	}

	strategy := trade.StrategyIndependent
	leverageBps := new(big.Int)
	indexTokenAmount := mustBig(*indexAmount, "-index-amount")
	if *leverageX > 0 {
		leverageBps = big.NewInt(int64(*leverageX * float64(params.BasisPointsDivisor.Int64())))
		strategy = trade.StrategyLeverageByCollateral
		if indexTokenAmount.Sign() > 0 {
			strategy = trade.StrategyLeverageBySize
		}
	}

	amounts, err := engine.GetIncreasePositionAmounts(trade.IncreaseInput{
		Market:                  marketInfo,
		Markets:                 markets,
		IndexToken:              marketInfo.IndexToken,
		InitialCollateralToken:  collateralToken,
		CollateralToken:         collateralToken,
		IsLong:                  isLong,
		Strategy:                strategy,
		InitialCollateralAmount: mustBig(*collateralAmount, "-collateral-amount"),
		IndexTokenAmount:        indexTokenAmount,
		LeverageBps:             leverageBps,
		TriggerPrice:            mustBig(*triggerPrice, "-trigger-price"),
		Position:                existing,
		Find:                    directRouteFinder(markets),
	})
	if err != nil {
		fatal(err)
	}
	printIncrease(amounts, marketInfo, collateralToken, div)

	next, err := engine.NextPositionValuesForIncrease(trade.NextIncreaseInput{
		Market:                marketInfo,
		CollateralToken:       collateralToken,
		IsLong:                isLong,
		SizeDeltaUsd:          amounts.SizeDeltaUsd,
		SizeDeltaInTokens:     amounts.SizeDeltaInTokens,
		CollateralDeltaUsd:    amounts.CollateralDeltaUsd,
		CollateralDeltaAmount: amounts.CollateralDeltaAmount,
		IndexPrice:            amounts.IndexPrice,
		Position:              existing,
	})
	if err != nil {
		fatal(err)
	}
	printNext(next, marketInfo, collateralToken, div)
}

func quoteDecrease(engine *trade.Engine, m *market.MarketInfo, collateral *market.TokenData, pos *position.Info, isLong bool, closeSizeUsd *big.Int, keepLeverage bool, triggerPrice, div *big.Int) {
	if pos == nil {
		fatal(errors.New("decrease quote requires a matching position in the snapshot"))
	}
	amounts, err := engine.GetDecreasePositionAmounts(trade.DecreaseInput{
		Market:          m,
		CollateralToken: collateral,
		IsLong:          isLong,
		CloseSizeUsd:    closeSizeUsd,
		KeepLeverage:    keepLeverage,
		TriggerPrice:    triggerPrice,
		Position:        pos,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("decrease quote: market=%s full_close=%v\n", m.Name, amounts.IsFullClose)
	fmt.Printf("  size_delta_usd=%s realized_pnl=%s\n",
		usdmath.FormatUsd(amounts.SizeDeltaUsd), usdmath.FormatUsd(amounts.RealizedPnl))
	fmt.Printf("  collateral_delta=%s %s position_fee=%s\n",
		usdmath.FormatTokenAmount(amounts.CollateralDeltaAmount, collateral.Decimals), collateral.Symbol,
		usdmath.FormatUsd(amounts.PositionFeeUsd))
	fmt.Printf("  payout=%s receive=%s %s\n",
		usdmath.FormatUsd(amounts.PayoutUsd),
		usdmath.FormatTokenAmount(amounts.ReceiveTokenAmount, collateral.Decimals), collateral.Symbol)
	fmt.Printf("  acceptable_price=%s trigger=%s%s\n",
		usdmath.FormatPrice(amounts.AcceptablePrice),
		amounts.TriggerThreshold, usdmath.FormatPrice(amounts.TriggerPrice))

	next, err := engine.NextPositionValuesForDecrease(trade.NextDecreaseInput{
		Market:             m,
		CollateralToken:    collateral,
		IsLong:             isLong,
		SizeDeltaUsd:       amounts.SizeDeltaUsd,
		SizeDeltaInTokens:  amounts.SizeDeltaInTokens,
		CollateralDeltaUsd: amounts.CollateralDeltaUsd,
		RealizedPnl:        amounts.RealizedPnl,
		Position:           pos,
	})
	if err != nil {
		fatal(err)
	}
	printNext(next, m, collateral, div)
}

func printIncrease(a *trade.IncreasePositionAmounts, m *market.MarketInfo, collateral *market.TokenData, div *big.Int) {
	fmt.Printf("increase quote: market=%s\n", m.Name)
	fmt.Printf("  collateral_delta=%s %s (%s)\n",
		usdmath.FormatTokenAmount(a.CollateralDeltaAmount, collateral.Decimals), collateral.Symbol,
		usdmath.FormatUsd(a.CollateralDeltaUsd))
	fmt.Printf("  size_delta_usd=%s size_delta_tokens=%s\n",
		usdmath.FormatUsd(a.SizeDeltaUsd),
		usdmath.FormatTokenAmount(a.SizeDeltaInTokens, m.IndexToken.Decimals))
	fmt.Printf("  leverage=%sx position_fee=%s\n",
		usdmath.FormatBps(a.EstimatedLeverageBps, div), usdmath.FormatUsd(a.PositionFeeUsd))
	fmt.Printf("  index_price=%s acceptable_price=%s\n",
		usdmath.FormatPrice(a.IndexPrice),
		usdmath.FormatPrice(a.AcceptablePrice))
	if a.SwapPathStats != nil {
		fmt.Printf("  swap: hops=%d fee=%s impact=%s\n",
			len(a.SwapPathStats.Steps),
			usdmath.FormatUsd(a.SwapPathStats.TotalSwapFeeUsd),
			usdmath.FormatUsd(a.SwapPathStats.TotalImpactDeltaUsd))
	}
}

func printNext(next trade.NextPositionValues, m *market.MarketInfo, collateral *market.TokenData, div *big.Int) {
	fmt.Printf("next position: size=%s collateral=%s %s\n",
		usdmath.FormatUsd(next.SizeUsd),
		usdmath.FormatTokenAmount(next.CollateralAmount, collateral.Decimals), collateral.Symbol)
	fmt.Printf("  entry=%s leverage=%sx liq=%s\n",
		usdmath.FormatPrice(next.EntryPrice),
		usdmath.FormatBps(next.LeverageBps, div),
		usdmath.FormatPrice(next.LiquidationPrice))
}

func printPositionInfo(info *position.Info) {
	fmt.Printf("position %s: size=%s pnl=%s net=%s liq=%s low_collateral=%v\n",
		info.Key.Hex(),
		usdmath.FormatUsd(info.SizeInUsd),
		usdmath.FormatUsd(info.Pnl),
		usdmath.FormatUsd(info.NetValue),
		usdmath.FormatPrice(info.LiquidationPrice),
		info.HasLowCollateral)
}

func findPosition(infos map[position.Key]*position.Info, marketAddr, collateralAddr common.Address, isLong bool) *position.Info {
	for _, info := range infos {
		if info.MarketAddress == marketAddr && info.CollateralTokenAddress == collateralAddr && info.IsLong == isLong {
			return info
		}
	}
	return nil
}

// directRouteFinder answers swap path queries with the first single-pool
// route whose long/short pair covers both tokens.
func directRouteFinder(markets market.MarketsInfoData) swap.FindSwapPath {
	return func(_ *big.Int, tokenIn, tokenOut common.Address) []common.Address {
		for addr, m := range markets {
			if m.LongToken == nil || m.ShortToken == nil {
				continue
			}
			long, short := m.LongToken.Address, m.ShortToken.Address
			if (long == tokenIn && short == tokenOut) || (short == tokenIn && long == tokenOut) {
				return []common.Address{addr}
			}
		}
		return nil
	}
}

func mustBig(s, flagName string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		fatal(fmt.Errorf("invalid %s: %q", flagName, s))
	}
	return v
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

type tokenSnapshot struct {
	Address        string `yaml:"address"`
	Symbol         string `yaml:"symbol"`
	Decimals       int    `yaml:"decimals"`
	MinPrice       string `yaml:"min_price"`
	MaxPrice       string `yaml:"max_price"`
	WrappedAddress string `yaml:"wrapped_address"`
	IsWrapped      bool   `yaml:"is_wrapped"`
}

type marketSnapshot struct {
	Address              string `yaml:"address"`
	Name                 string `yaml:"name"`
	IndexToken           string `yaml:"index_token"`
	LongToken            string `yaml:"long_token"`
	ShortToken           string `yaml:"short_token"`
	LongPoolAmount       string `yaml:"long_pool_amount"`
	ShortPoolAmount      string `yaml:"short_pool_amount"`
	LongInterestUsd      string `yaml:"long_interest_usd"`
	ShortInterestUsd     string `yaml:"short_interest_usd"`
	PositionFeeFactor    string `yaml:"position_fee_factor"`
	SwapFeeFactor        string `yaml:"swap_fee_factor"`
	PositionImpactFactor string `yaml:"position_impact_factor"`
	SwapImpactFactor     string `yaml:"swap_impact_factor"`
	MinCollateralFactor  string `yaml:"min_collateral_factor"`
}

type positionSnapshot struct {
	Key                     string `yaml:"key"`
	Account                 string `yaml:"account"`
	Market                  string `yaml:"market"`
	CollateralToken         string `yaml:"collateral_token"`
	IsLong                  bool   `yaml:"is_long"`
	SizeInUsd               string `yaml:"size_in_usd"`
	SizeInTokens            string `yaml:"size_in_tokens"`
	CollateralAmount        string `yaml:"collateral_amount"`
	PendingBorrowingFeesUsd string `yaml:"pending_borrowing_fees_usd"`
	FundingFeeAmount        string `yaml:"funding_fee_amount"`
}

type snapshot struct {
	Tokens    []tokenSnapshot    `yaml:"tokens"`
	Markets   []marketSnapshot   `yaml:"markets"`
	Positions []positionSnapshot `yaml:"positions"`
}

func loadSnapshot(path string) (*snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *snapshot) build() (market.TokensData, market.MarketsInfoData, map[position.Key]*position.Position, error) {
	tokens := make(market.TokensData, len(s.Tokens))
	bySymbol := make(map[string]*market.TokenData, len(s.Tokens))
	for _, t := range s.Tokens {
		minPrice, err := parseBig(t.MinPrice, "token "+t.Symbol+" min_price")
		if err != nil {
			return nil, nil, nil, err
		}
		maxPrice, err := parseBig(t.MaxPrice, "token "+t.Symbol+" max_price")
		if err != nil {
			return nil, nil, nil, err
		}
		token := &market.TokenData{
			Address:   common.HexToAddress(t.Address),
			Symbol:    t.Symbol,
			Decimals:  t.Decimals,
			Prices:    market.TokenPrices{Min: minPrice, Max: maxPrice},
			IsWrapped: t.IsWrapped,
		}
		if t.WrappedAddress != "" {
			token.WrappedAddress = common.HexToAddress(t.WrappedAddress)
			token.HasWrapped = true
		}
		tokens[token.Address] = token
		bySymbol[strings.ToUpper(t.Symbol)] = token
	}

	markets := make(market.MarketsInfoData, len(s.Markets))
	for _, m := range s.Markets {
		info := &market.MarketInfo{
			MarketAddress: common.HexToAddress(m.Address),
			Name:          m.Name,
			IndexToken:    bySymbol[strings.ToUpper(m.IndexToken)],
			LongToken:     bySymbol[strings.ToUpper(m.LongToken)],
			ShortToken:    bySymbol[strings.ToUpper(m.ShortToken)],
		}
		if info.IndexToken == nil || info.LongToken == nil || info.ShortToken == nil {
			return nil, nil, nil, fmt.Errorf("market %s references an unknown token", m.Name)
		}
		var err error
		for _, field := range []struct {
			dst  **big.Int
			raw  string
			name string
		}{
			{&info.LongPoolAmount, m.LongPoolAmount, "long_pool_amount"},
			{&info.ShortPoolAmount, m.ShortPoolAmount, "short_pool_amount"},
			{&info.LongInterestUsd, m.LongInterestUsd, "long_interest_usd"},
			{&info.ShortInterestUsd, m.ShortInterestUsd, "short_interest_usd"},
			{&info.PositionFeeFactor, m.PositionFeeFactor, "position_fee_factor"},
			{&info.SwapFeeFactor, m.SwapFeeFactor, "swap_fee_factor"},
			{&info.PositionImpactFactor, m.PositionImpactFactor, "position_impact_factor"},
			{&info.SwapImpactFactor, m.SwapImpactFactor, "swap_impact_factor"},
			{&info.MinCollateralFactor, m.MinCollateralFactor, "min_collateral_factor"},
		} {
			if *field.dst, err = parseBig(field.raw, "market "+m.Name+" "+field.name); err != nil {
				return nil, nil, nil, err
			}
		}
		markets[info.MarketAddress] = info
	}

	positions := make(map[position.Key]*position.Position, len(s.Positions))
	for _, p := range s.Positions {
		key := position.Key(common.HexToHash(p.Key))
		pos := &position.Position{
			Key:                    key,
			Account:                common.HexToAddress(p.Account),
			MarketAddress:          common.HexToAddress(p.Market),
			CollateralTokenAddress: common.HexToAddress(p.CollateralToken),
			IsLong:                 p.IsLong,
		}
		var err error
		for _, field := range []struct {
			dst  **big.Int
			raw  string
			name string
		}{
			{&pos.SizeInUsd, p.SizeInUsd, "size_in_usd"},
			{&pos.SizeInTokens, p.SizeInTokens, "size_in_tokens"},
			{&pos.CollateralAmount, p.CollateralAmount, "collateral_amount"},
			{&pos.PendingBorrowingFeesUsd, p.PendingBorrowingFeesUsd, "pending_borrowing_fees_usd"},
			{&pos.FundingFeeAmount, p.FundingFeeAmount, "funding_fee_amount"},
		} {
			if *field.dst, err = parseBig(field.raw, "position "+p.Key+" "+field.name); err != nil {
				return nil, nil, nil, err
			}
		}
		positions[key] = pos
	}
	return tokens, markets, positions, nil
}

func parseBig(s, what string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", what, s)
	}
	return v, nil
}
