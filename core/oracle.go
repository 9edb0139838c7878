package core

import (
	"sort"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type OracleSetup uint8

func (os OracleSetup) String() string {
	switch os {
	case OracleSetupNone:
		return "None"
	case OracleSetupPythEma:
		return "PythEma"
	case OracleSetupSwitchboardPull:
		return "SwitchboardPull"
	case OracleSetupStakedWithPythPush:
		return "StakedWithPythPush"
	case OracleSetupMultiFeed:
		return "MultiFeed"
	default:
		return "Unknown"
	}
}

const (
	OracleSetupNone OracleSetup = iota
	OracleSetupPythEma
	OracleSetupSwitchboardPull
	OracleSetupStakedWithPythPush
	OracleSetupMultiFeed
)

// RequiredOracleKeys returns how many oracle keys a setup needs, as a range.
func (os OracleSetup) RequiredOracleKeys() (int, int) {
	switch os {
	case OracleSetupPythEma, OracleSetupSwitchboardPull:
		return 1, 1
	case OracleSetupStakedWithPythPush:
		return 3, 3
	case OracleSetupMultiFeed:
		return 2, 3
	default:
		return 0, 0
	}
}

type OraclePriceType uint8

const (
	TimeWeighted OraclePriceType = iota
	RealTime
)

type PriceBias uint8

const (
	Low PriceBias = iota
	High
	Original
)

type (
	// PriceSnapshot is one raw observation of a feed, as handed in by the host.
	// Price, Conf, EmaPrice and EmaConf are scaled by 10^Expo.
	PriceSnapshot struct {
		FeedId      string          `json:"feedId" yaml:"feedId"`
		Price       decimal.Decimal `json:"price" yaml:"price"`
		Conf        decimal.Decimal `json:"conf" yaml:"conf"`
		EmaPrice    decimal.Decimal `json:"emaPrice" yaml:"emaPrice"`
		EmaConf     decimal.Decimal `json:"emaConf" yaml:"emaConf"`
		Expo        int32           `json:"expo" yaml:"expo"`
		PublishTime int64           `json:"publishTime" yaml:"publishTime"`

		StakePool *StakePoolState `json:"stakePool,omitempty" yaml:"stakePool,omitempty"`
	}

	// StakePoolState carries what is needed to price one LST in SOL.
	StakePoolState struct {
		Mint        string          `json:"mint" yaml:"mint"`
		Pool        string          `json:"pool" yaml:"pool"`
		LstSupply   decimal.Decimal `json:"lstSupply" yaml:"lstSupply"`
		PoolBalance decimal.Decimal `json:"poolBalance" yaml:"poolBalance"`
	}

	OracleConfig struct {
		DefaultMaxAge        int64
		ConfIntervalMultiple decimal.Decimal
		StdDevMultiple       decimal.Decimal
		MaxConfInterval      decimal.Decimal
		MaxDeviation         decimal.Decimal
	}

	// OraclePriceFeed is a validated price with its confidence band.
	OraclePriceFeed struct {
		Setup    OracleSetup     `json:"setup"`
		Price    decimal.Decimal `json:"price"`
		Conf     decimal.Decimal `json:"conf"`
		EmaPrice decimal.Decimal `json:"emaPrice"`
		EmaConf  decimal.Decimal `json:"emaConf"`
	}
)

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		DefaultMaxAge:        DEFAULT_ORACLE_MAX_AGE,
		ConfIntervalMultiple: CONF_INTERVAL_MULTIPLE,
		StdDevMultiple:       STD_DEV_MULTIPLE,
		MaxConfInterval:      MAX_CONF_INTERVAL,
		MaxDeviation:         MAX_ORACLE_DEVIATION,
	}
}

func (f *OraclePriceFeed) GetPriceOfType(priceType OraclePriceType, bias PriceBias) (decimal.Decimal, error) {
	price, conf := f.Price, f.Conf
	if priceType == TimeWeighted {
		price, conf = f.EmaPrice, f.EmaConf
	}

	switch bias {
	case Low:
		return decimal.Max(price.Sub(conf), decimal.Zero), nil
	case High:
		return price.Add(conf), nil
	default:
		return price, nil
	}
}

// NewOraclePriceFeed validates the snapshots of one bank against its oracle
// configuration and returns the normalized price.
func NewOraclePriceFeed(cfg OracleConfig, bankConfig *BankConfig, now int64, snapshots []PriceSnapshot) (*OraclePriceFeed, error) {
	if len(snapshots) == 0 {
		return nil, MissingPrice
	}

	maxAge := bankConfig.OracleMaxAge
	if maxAge == 0 {
		maxAge = cfg.DefaultMaxAge
	}

	switch bankConfig.OracleSetup {
	case OracleSetupPythEma:
		if err := checkSnapshot(&snapshots[0], bankConfig.OracleKeys[0], now, maxAge); err != nil {
			return nil, err
		}
		return resolveConfidenceFeed(cfg, OracleSetupPythEma, &snapshots[0], cfg.ConfIntervalMultiple)
	case OracleSetupSwitchboardPull:
		s := snapshots[0]
		if err := checkSnapshot(&s, bankConfig.OracleKeys[0], now, maxAge); err != nil {
			return nil, err
		}
		// pull feeds publish a single aggregate, there is no separate ema
		s.EmaPrice, s.EmaConf = s.Price, s.Conf
		return resolveConfidenceFeed(cfg, OracleSetupSwitchboardPull, &s, cfg.StdDevMultiple)
	case OracleSetupStakedWithPythPush:
		return resolveStakedFeed(cfg, bankConfig, now, maxAge, &snapshots[0])
	case OracleSetupMultiFeed:
		return resolveMultiFeed(cfg, bankConfig, now, maxAge, snapshots)
	default:
		return nil, ErrUnknownOracleSetup
	}
}

func checkSnapshot(s *PriceSnapshot, key string, now, maxAge int64) error {
	if s.FeedId != key {
		return errors.Wrapf(OracleValidationFailed, "feed %q does not match oracle key %q", s.FeedId, key)
	}
	if now-s.PublishTime > maxAge {
		return errors.Wrapf(StaleOracle, "feed %q published at %d, now %d, max age %d", s.FeedId, s.PublishTime, now, maxAge)
	}
	if !s.Price.IsPositive() || s.EmaPrice.IsNegative() {
		return errors.Wrapf(InvalidPrice, "feed %q price %s", s.FeedId, s.Price)
	}
	return nil
}

func resolveConfidenceFeed(cfg OracleConfig, setup OracleSetup, s *PriceSnapshot, multiple decimal.Decimal) (*OraclePriceFeed, error) {
	price := s.Price.Shift(s.Expo)
	emaPrice := s.EmaPrice.Shift(s.Expo)
	if emaPrice.IsZero() {
		emaPrice = price
	}

	return &OraclePriceFeed{
		Setup:    setup,
		Price:    price,
		Conf:     confidenceInterval(cfg, price, s.Conf.Shift(s.Expo), multiple),
		EmaPrice: emaPrice,
		EmaConf:  confidenceInterval(cfg, emaPrice, s.EmaConf.Shift(s.Expo), multiple),
	}, nil
}

func confidenceInterval(cfg OracleConfig, price, conf, multiple decimal.Decimal) decimal.Decimal {
	return decimal.Min(conf.Mul(multiple), price.Mul(cfg.MaxConfInterval))
}

func resolveStakedFeed(cfg OracleConfig, bankConfig *BankConfig, now, maxAge int64, s *PriceSnapshot) (*OraclePriceFeed, error) {
	if err := checkSnapshot(s, bankConfig.OracleKeys[0], now, maxAge); err != nil {
		return nil, err
	}
	pool := s.StakePool
	if pool == nil || pool.Mint != bankConfig.OracleKeys[1] || pool.Pool != bankConfig.OracleKeys[2] {
		return nil, errors.Wrap(OracleValidationFailed, "stake pool accounts do not match oracle keys")
	}
	if !pool.LstSupply.IsPositive() {
		return nil, errors.Wrap(InvalidPrice, "stake pool has no supply")
	}

	feed, err := resolveConfidenceFeed(cfg, OracleSetupStakedWithPythPush, s, cfg.ConfIntervalMultiple)
	if err != nil {
		return nil, err
	}

	ratio := pool.PoolBalance.DivRound(pool.LstSupply, SHARE_PRECISION)
	feed.Price = feed.Price.Mul(ratio)
	feed.Conf = feed.Conf.Mul(ratio)
	feed.EmaPrice = feed.EmaPrice.Mul(ratio)
	feed.EmaConf = feed.EmaConf.Mul(ratio)
	return feed, nil
}

func resolveMultiFeed(cfg OracleConfig, bankConfig *BankConfig, now, maxAge int64, snapshots []PriceSnapshot) (*OraclePriceFeed, error) {
	keys := bankConfig.ActiveOracleKeys()
	if len(snapshots) != len(keys) {
		return nil, errors.Wrapf(MissingPrice, "want %d feeds, got %d", len(keys), len(snapshots))
	}

	feeds := make([]*OraclePriceFeed, 0, len(keys))
	for i := range snapshots {
		if err := checkSnapshot(&snapshots[i], keys[i], now, maxAge); err != nil {
			return nil, err
		}
		feed, err := resolveConfidenceFeed(cfg, OracleSetupMultiFeed, &snapshots[i], cfg.ConfIntervalMultiple)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	result := &OraclePriceFeed{Setup: OracleSetupMultiFeed}
	prices := make([]decimal.Decimal, len(feeds))
	emaPrices := make([]decimal.Decimal, len(feeds))
	for i, f := range feeds {
		prices[i], emaPrices[i] = f.Price, f.EmaPrice
		result.Conf = decimal.Max(result.Conf, f.Conf)
		result.EmaConf = decimal.Max(result.EmaConf, f.EmaConf)
	}
	result.Price = median(prices)
	result.EmaPrice = median(emaPrices)

	for _, p := range prices {
		deviation := p.Sub(result.Price).Abs().Div(result.Price)
		if deviation.GreaterThan(cfg.MaxDeviation) {
			return nil, errors.Wrapf(OracleFeedsDisagree, "price %s deviates %s from median %s", p, deviation, result.Price)
		}
	}

	return result, nil
}

func median(values []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// OracleSnapshots are the raw observations supplied per bank for one request.
type OracleSnapshots map[uuid.UUID][]PriceSnapshot

// ResolvePrices resolves the feeds of the given banks. Banks without
// snapshots are left out, so a risk check that needs them fails with
// MissingPrice.
func ResolvePrices(cfg OracleConfig, banks BankSet, snapshots OracleSnapshots, now int64, bankIds []uuid.UUID) (PriceSet, error) {
	prices := make(PriceSet, len(bankIds))
	for _, id := range bankIds {
		if _, ok := prices[id]; ok {
			continue
		}
		bank, ok := banks[id]
		if !ok {
			return nil, errors.Wrapf(MissingPrice, "bank %s not supplied", id)
		}
		s := snapshots[id]
		if len(s) == 0 {
			continue
		}
		feed, err := NewOraclePriceFeed(cfg, &bank.BankConfig, now, s)
		if err != nil {
			return nil, errors.Wrapf(err, "bank %s", bank.Name)
		}
		prices[id] = feed
	}
	return prices, nil
}
