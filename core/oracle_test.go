package core

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pythConfig(keys ...string) *BankConfig {
	cfg := testBankConfig()
	copy(cfg.OracleKeys[:], keys)
	return &cfg
}

func TestPythEmaFeed(t *testing.T) {
	cfg := pythConfig("sol-usd")

	feed, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{{
		FeedId:      "sol-usd",
		Price:       d("1000"),
		Conf:        d("1"),
		EmaPrice:    d("990"),
		EmaConf:     d("2"),
		Expo:        -2,
		PublishTime: testNow - 10,
	}})
	require.NoError(t, err)

	assert.True(t, feed.Price.Equal(d("10")))
	assert.True(t, feed.EmaPrice.Equal(d("9.9")))
	// 0.01 * 2.12
	assert.True(t, feed.Conf.Equal(d("0.0212")), "got %s", feed.Conf)

	tests := []struct {
		name      string
		priceType OraclePriceType
		bias      PriceBias
		expected  decimal.Decimal
	}{
		{"real time low", RealTime, Low, d("9.9788")},
		{"real time high", RealTime, High, d("10.0212")},
		{"real time original", RealTime, Original, d("10")},
		{"ema low", TimeWeighted, Low, d("9.8576")},
		{"ema original", TimeWeighted, Original, d("9.9")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := feed.GetPriceOfType(tt.priceType, tt.bias)
			assert.NoError(t, err)
			assert.True(t, price.Equal(tt.expected), "expected %s, got %s", tt.expected, price)
		})
	}
}

func TestConfidenceIntervalCapped(t *testing.T) {
	feed, err := NewOraclePriceFeed(DefaultOracleConfig(), pythConfig("x"), testNow, []PriceSnapshot{{
		FeedId:      "x",
		Price:       d("100"),
		Conf:        d("10"),
		PublishTime: testNow,
	}})
	require.NoError(t, err)

	// 5% of price beats 10 * 2.12
	assert.True(t, feed.Conf.Equal(d("5")), "got %s", feed.Conf)
	// no ema published, spot is used instead
	assert.True(t, feed.EmaPrice.Equal(d("100")))
}

func TestOracleValidation(t *testing.T) {
	good := PriceSnapshot{FeedId: "x", Price: d("1"), EmaPrice: d("1"), PublishTime: testNow}

	tests := []struct {
		name     string
		mutate   func(s *PriceSnapshot)
		snapshot bool
		want     error
	}{
		{name: "stale", mutate: func(s *PriceSnapshot) { s.PublishTime = testNow - 61 }, snapshot: true, want: StaleOracle},
		{name: "wrong feed", mutate: func(s *PriceSnapshot) { s.FeedId = "y" }, snapshot: true, want: OracleValidationFailed},
		{name: "zero price", mutate: func(s *PriceSnapshot) { s.Price = decimal.Zero }, snapshot: true, want: InvalidPrice},
		{name: "negative price", mutate: func(s *PriceSnapshot) { s.Price = d("-1") }, snapshot: true, want: InvalidPrice},
		{name: "no snapshot", mutate: func(s *PriceSnapshot) {}, snapshot: false, want: MissingPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := good
			tt.mutate(&s)
			snapshots := []PriceSnapshot{s}
			if !tt.snapshot {
				snapshots = nil
			}
			_, err := NewOraclePriceFeed(DefaultOracleConfig(), pythConfig("x"), testNow, snapshots)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindOracleFailure, KindOf(err))
		})
	}

	t.Run("bank max age overrides default", func(t *testing.T) {
		cfg := pythConfig("x")
		cfg.OracleMaxAge = 300
		s := good
		s.PublishTime = testNow - 200
		_, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{s})
		assert.NoError(t, err)
	})

	t.Run("unknown setup", func(t *testing.T) {
		cfg := pythConfig("x")
		cfg.OracleSetup = OracleSetupNone
		_, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{good})
		assert.ErrorIs(t, err, ErrUnknownOracleSetup)
	})
}

func TestSwitchboardPullFeed(t *testing.T) {
	cfg := pythConfig("sb")
	cfg.OracleSetup = OracleSetupSwitchboardPull

	feed, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{{
		FeedId:      "sb",
		Price:       d("50"),
		Conf:        d("0.1"),
		EmaPrice:    d("40"),
		PublishTime: testNow,
	}})
	require.NoError(t, err)

	assert.True(t, feed.EmaPrice.Equal(feed.Price))
	assert.True(t, feed.Conf.Equal(d("0.196")), "got %s", feed.Conf)
}

func TestStakedFeed(t *testing.T) {
	cfg := pythConfig("sol-usd", "lst-mint", "pool")
	cfg.OracleSetup = OracleSetupStakedWithPythPush

	snapshot := PriceSnapshot{
		FeedId:      "sol-usd",
		Price:       d("100"),
		EmaPrice:    d("100"),
		PublishTime: testNow,
		StakePool: &StakePoolState{
			Mint:        "lst-mint",
			Pool:        "pool",
			LstSupply:   d("1000"),
			PoolBalance: d("1100"),
		},
	}

	feed, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{snapshot})
	require.NoError(t, err)
	assert.True(t, feed.Price.Equal(d("110")), "got %s", feed.Price)

	snapshot.StakePool.Pool = "other"
	_, err = NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{snapshot})
	assert.ErrorIs(t, err, OracleValidationFailed)
}

func TestMultiFeed(t *testing.T) {
	cfg := pythConfig("a", "b", "c")
	cfg.OracleSetup = OracleSetupMultiFeed

	snapshot := func(id, price string) PriceSnapshot {
		return PriceSnapshot{FeedId: id, Price: d(price), EmaPrice: d(price), PublishTime: testNow}
	}

	feed, err := NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{
		snapshot("a", "100.5"),
		snapshot("b", "100"),
		snapshot("c", "99.8"),
	})
	require.NoError(t, err)
	assert.True(t, feed.Price.Equal(d("100")), "got %s", feed.Price)

	_, err = NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{
		snapshot("a", "103"),
		snapshot("b", "100"),
		snapshot("c", "99.8"),
	})
	assert.ErrorIs(t, err, OracleFeedsDisagree)

	_, err = NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{
		snapshot("a", "100"),
		snapshot("b", "100"),
	})
	assert.ErrorIs(t, err, MissingPrice)

	_, err = NewOraclePriceFeed(DefaultOracleConfig(), cfg, testNow, []PriceSnapshot{
		snapshot("b", "100"),
		snapshot("a", "100"),
		snapshot("c", "100"),
	})
	assert.ErrorIs(t, err, OracleValidationFailed)
}

func TestMedian(t *testing.T) {
	assert.True(t, median([]decimal.Decimal{d("3"), d("1"), d("2")}).Equal(d("2")))
	assert.True(t, median([]decimal.Decimal{d("4"), d("1"), d("2"), d("3")}).Equal(d("2.5")))
}

func TestResolvePrices(t *testing.T) {
	f := newFixture(t)
	sol := f.addBank("SOL", "10", testBankConfig())
	usdc := f.addBank("USDC", "1", testBankConfig())

	env := f.env()
	delete(env.Oracles, usdc.Id)

	prices, err := ResolvePrices(DefaultOracleConfig(), env.Banks, env.Oracles, testNow, []uuid.UUID{sol.Id, usdc.Id, sol.Id})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.Contains(t, prices, sol.Id)

	_, err = ResolvePrices(DefaultOracleConfig(), env.Banks, env.Oracles, testNow, []uuid.UUID{uuid.Must(uuid.NewV4())})
	assert.ErrorIs(t, err, MissingPrice)
	assert.Equal(t, KindOracleFailure, KindOf(err))
}

func TestValidateOracleSetup(t *testing.T) {
	tests := []struct {
		name  string
		setup OracleSetup
		keys  []string
		want  error
	}{
		{"pyth one key", OracleSetupPythEma, []string{"a"}, nil},
		{"pyth two keys", OracleSetupPythEma, []string{"a", "b"}, ErrInvalidOracleKeys},
		{"staked needs three", OracleSetupStakedWithPythPush, []string{"a", "b"}, ErrInvalidOracleKeys},
		{"multi two", OracleSetupMultiFeed, []string{"a", "b"}, nil},
		{"multi one", OracleSetupMultiFeed, []string{"a"}, ErrInvalidOracleKeys},
		{"none", OracleSetupNone, nil, ErrUnknownOracleSetup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := pythConfig(tt.keys...)
			cfg.OracleSetup = tt.setup
			err := cfg.ValidateOracleSetup()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
