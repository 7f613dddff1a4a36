package ynab

// Budget is an entry of the budget listing.
type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type budgetsResponse struct {
	Data struct {
		Budgets []Budget `json:"budgets"`
	} `json:"data"`
}

// Month is the raw month detail. Amounts are milliunits.
type Month struct {
	Month      string     `json:"month"`
	Budgeted   int64      `json:"budgeted"`
	Activity   int64      `json:"activity"`
	AgeOfMoney *int       `json:"age_of_money"`
	Categories []Category `json:"categories"`
}

// Category is a raw month category. Amounts are milliunits.
type Category struct {
	Name     string `json:"name"`
	Hidden   bool   `json:"hidden"`
	Activity int64  `json:"activity"`
	Budgeted int64  `json:"budgeted"`
	Balance  int64  `json:"balance"`
}

type monthResponse struct {
	Data struct {
		Month Month `json:"month"`
	} `json:"data"`
}
