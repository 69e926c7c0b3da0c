package currency

// Currency is one entry in the currency-code registry
type Currency struct {
	Code string
	Name string
}

// Registry exposes the reference sets the classifier is built from.
// Implementations return every known code of the given asset class;
// entries without a code are skipped during classification.
type Registry interface {
	FiatCurrencies() []Currency
	CryptoCurrencies() []Currency
}

// fiatCurrencies is the embedded ISO 4217 subset the service recognizes
var fiatCurrencies = []Currency{
	{Code: "AED", Name: "United Arab Emirates Dirham"},
	{Code: "AMD", Name: "Armenian Dram"},
	{Code: "AUD", Name: "Australian Dollar"},
	{Code: "BRL", Name: "Brazilian Real"},
	{Code: "CAD", Name: "Canadian Dollar"},
	{Code: "CHF", Name: "Swiss Franc"},
	{Code: "CNY", Name: "Chinese Yuan"},
	{Code: "CZK", Name: "Czech Koruna"},
	{Code: "DKK", Name: "Danish Krone"},
	{Code: "EUR", Name: "Euro"},
	{Code: "GBP", Name: "British Pound Sterling"},
	{Code: "GEL", Name: "Georgian Lari"},
	{Code: "HKD", Name: "Hong Kong Dollar"},
	{Code: "HUF", Name: "Hungarian Forint"},
	{Code: "IDR", Name: "Indonesian Rupiah"},
	{Code: "ILS", Name: "Israeli New Shekel"},
	{Code: "INR", Name: "Indian Rupee"},
	{Code: "JPY", Name: "Japanese Yen"},
	{Code: "KRW", Name: "South Korean Won"},
	{Code: "KZT", Name: "Kazakhstani Tenge"},
	{Code: "MXN", Name: "Mexican Peso"},
	{Code: "MYR", Name: "Malaysian Ringgit"},
	{Code: "NOK", Name: "Norwegian Krone"},
	{Code: "NZD", Name: "New Zealand Dollar"},
	{Code: "PHP", Name: "Philippine Peso"},
	{Code: "PLN", Name: "Polish Zloty"},
	{Code: "RSD", Name: "Serbian Dinar"},
	{Code: "RUB", Name: "Russian Ruble"},
	{Code: "SEK", Name: "Swedish Krona"},
	{Code: "SGD", Name: "Singapore Dollar"},
	{Code: "THB", Name: "Thai Baht"},
	{Code: "TRY", Name: "Turkish Lira"},
	{Code: "UAH", Name: "Ukrainian Hryvnia"},
	{Code: "USD", Name: "United States Dollar"},
	{Code: "UZS", Name: "Uzbekistani Som"},
	{Code: "VND", Name: "Vietnamese Dong"},
	{Code: "ZAR", Name: "South African Rand"},
}

// cryptoCurrencies is the embedded set of crypto asset codes
var cryptoCurrencies = []Currency{
	{Code: "ADA", Name: "Cardano"},
	{Code: "BCH", Name: "Bitcoin Cash"},
	{Code: "BNB", Name: "Binance Coin"},
	{Code: "BTC", Name: "Bitcoin"},
	{Code: "DOGE", Name: "Dogecoin"},
	{Code: "DOT", Name: "Polkadot"},
	{Code: "ETC", Name: "Ethereum Classic"},
	{Code: "ETH", Name: "Ethereum"},
	{Code: "LTC", Name: "Litecoin"},
	{Code: "SOL", Name: "Solana"},
	{Code: "TON", Name: "Toncoin"},
	{Code: "TRX", Name: "Tron"},
	{Code: "USDC", Name: "USD Coin"},
	{Code: "USDT", Name: "Tether"},
	{Code: "XLM", Name: "Stellar"},
	{Code: "XMR", Name: "Monero"},
	{Code: "XRP", Name: "Ripple"},
}

type staticRegistry struct{}

func (staticRegistry) FiatCurrencies() []Currency   { return fiatCurrencies }
func (staticRegistry) CryptoCurrencies() []Currency { return cryptoCurrencies }

// DefaultRegistry returns the registry backed by the embedded code sets
func DefaultRegistry() Registry {
	return staticRegistry{}
}
