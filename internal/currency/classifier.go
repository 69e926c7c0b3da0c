package currency

import "strings"

// Classifier answers which asset class a currency code belongs to.
// It is built once from a Registry and is read-only afterwards, so a single
// instance can be shared by any number of concurrent callers.
type Classifier struct {
	fiat   map[string]struct{}
	crypto map[string]struct{}
}

// NewClassifier builds the classification sets from the registry.
// Registry entries without a code are skipped.
func NewClassifier(reg Registry) *Classifier {
	return &Classifier{
		fiat:   codeSet(reg.FiatCurrencies()),
		crypto: codeSet(reg.CryptoCurrencies()),
	}
}

// IsFiat reports whether code is a known fiat currency.
// Unknown and empty codes are not fiat; lookup is case-insensitive.
func (c *Classifier) IsFiat(code string) bool {
	if code == "" {
		return false
	}
	_, ok := c.fiat[strings.ToUpper(code)]
	return ok
}

// IsCrypto reports whether code is a known crypto asset.
// Unknown and empty codes are not crypto; lookup is case-insensitive.
func (c *Classifier) IsCrypto(code string) bool {
	if code == "" {
		return false
	}
	_, ok := c.crypto[strings.ToUpper(code)]
	return ok
}

func codeSet(currencies []Currency) map[string]struct{} {
	set := make(map[string]struct{}, len(currencies))
	for _, cur := range currencies {
		if cur.Code == "" {
			continue
		}
		set[strings.ToUpper(cur.Code)] = struct{}{}
	}
	return set
}
