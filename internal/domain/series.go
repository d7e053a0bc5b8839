package domain

// Candle represents one OHLCV bar fetched from the exchange.
type Candle struct {
	OpenTime int64   // bar open time, Unix ms
	Open     float64 // open price
	High     float64 // high price
	Low      float64 // low price
	Close    float64 // close price
	Volume   float64 // base asset volume
}
