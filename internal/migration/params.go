package migration

// Artifact names resolved from the registry.
const (
	ManagerArtifact = "Manager"
	TokenArtifact   = "Token"
)

// ManagerParams are the Manager constructor arguments.
type ManagerParams struct {
	Owner    string
	Operator string
}

// Args returns the constructor arguments in ABI order.
func (p ManagerParams) Args() []any {
	return []any{p.Owner, p.Operator}
}

// TokenParams are the Token constructor arguments.
// Field names are descriptive; the contract only sees positions.
type TokenParams struct {
	Name      string
	Symbol    string
	Supply    uint64
	Rate      uint64
	Wallet    string
	StartTime uint64 // unix seconds
	Fees      [4]uint64
}

// Args returns the constructor arguments in ABI order.
func (p TokenParams) Args() []any {
	return []any{
		p.Name,
		p.Symbol,
		p.Supply,
		p.Rate,
		p.Wallet,
		p.StartTime,
		p.Fees[0],
		p.Fees[1],
		p.Fees[2],
		p.Fees[3],
	}
}

// Manager returns the literal Manager parameters.
func Manager() ManagerParams {
	return ManagerParams{
		Owner:    "0x29206D36B147B00A4592D5D9154Ac32ab4830fB0",
		Operator: "0xe0014f07625ae3ef38050B28339b0203DDCdf045",
	}
}

// Token returns the literal Token parameters.
func Token() TokenParams {
	return TokenParams{
		Name:      "TestCoin",
		Symbol:    "TST",
		Supply:    500000000,
		Rate:      100,
		Wallet:    "0xC5fdf4076b8F3A5357c5E395ab970B5B54098Fef",
		StartTime: 1518451520,
		Fees:      [4]uint64{20, 10, 5, 1},
	}
}
