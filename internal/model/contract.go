package model

// ContractSpec identifies the single futures contract the bot trades.
type ContractSpec struct {
	Symbol        string `json:"symbol"`         // e.g. "ES"
	Exchange      string `json:"exchange"`       // e.g. "GLOBEX"
	ContractMonth string `json:"contract_month"` // e.g. "202603"
}

// Key returns a unique key for this contract: "exchange:symbol:month".
func (c *ContractSpec) Key() string {
	return c.Exchange + ":" + c.Symbol + ":" + c.ContractMonth
}
