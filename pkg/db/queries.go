package db

import (
	"context"
	"database/sql"
	"time"
)

// CreateOrder inserts a new order row.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, email, listing_type, symbol, action, order_type,
			limit_value, stop_value, quantity, remaining_quantity, all_or_none,
			expected_price, status, done, last_modified, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`,
		o.ID, o.UserID, o.Email, o.ListingType, o.Symbol, o.Action, o.OrderType,
		o.LimitValue, o.StopValue, o.Quantity, o.RemainingQuantity, o.AllOrNone,
		o.ExpectedPrice, o.Status, o.Done, o.LastModified, o.CreatedAt,
	)
	return err
}

// GetOrder returns an order by id or nil if not found.
func (d *Database) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, email, listing_type, symbol, action, order_type,
		       limit_value, stop_value, quantity, remaining_quantity, all_or_none,
		       expected_price, status, done, last_modified, created_at
		FROM orders WHERE id = ?
	`, id)
	var o Order
	if err := scanOrder(row.Scan, &o); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus sets the status of an order.
func (d *Database) UpdateOrderStatus(ctx context.Context, id, status string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders SET status = ?, last_modified = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

// UpdateOrderFill records the result of one execution tick. Remaining
// quantity, done flag, order type (STOP may have converted to MARKET) and
// last_modified change together so the stored row never straddles a fill.
func (d *Database) UpdateOrderFill(ctx context.Context, id string, remaining int, done bool, orderType string, lastModified time.Time) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE orders
		SET remaining_quantity = ?, done = ?, order_type = ?, last_modified = ?
		WHERE id = ?
	`, remaining, done, orderType, lastModified, id)
	return err
}

// ListOrders returns all orders, newest first.
func (d *Database) ListOrders(ctx context.Context) ([]Order, error) {
	return d.queryOrders(ctx, `
		SELECT id, user_id, email, listing_type, symbol, action, order_type,
		       limit_value, stop_value, quantity, remaining_quantity, all_or_none,
		       expected_price, status, done, last_modified, created_at
		FROM orders ORDER BY created_at DESC`)
}

// ListOrdersByUser returns a user's orders, newest first.
func (d *Database) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	return d.queryOrders(ctx, `
		SELECT id, user_id, email, listing_type, symbol, action, order_type,
		       limit_value, stop_value, quantity, remaining_quantity, all_or_none,
		       expected_price, status, done, last_modified, created_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (d *Database) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows.Scan, &o); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func scanOrder(scan func(...any) error, o *Order) error {
	return scan(
		&o.ID, &o.UserID, &o.Email, &o.ListingType, &o.Symbol, &o.Action, &o.OrderType,
		&o.LimitValue, &o.StopValue, &o.Quantity, &o.RemainingQuantity, &o.AllOrNone,
		&o.ExpectedPrice, &o.Status, &o.Done, &o.LastModified, &o.CreatedAt,
	)
}

// CreateOptionBet inserts a new bet row.
func (d *Database) CreateOptionBet(ctx context.Context, b OptionBet) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO option_bets (id, user_id, email, code, bet_date, amount, option_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, b.ID, b.UserID, b.Email, b.Code, b.Date, b.Amount, b.OptionID, b.CreatedAt)
	return err
}

// GetOptionBet returns a bet by id or nil if not found.
func (d *Database) GetOptionBet(ctx context.Context, id string) (*OptionBet, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, email, code, bet_date, amount, option_id, settled_at, created_at
		FROM option_bets WHERE id = ?
	`, id)
	var b OptionBet
	var settled sql.NullTime
	if err := row.Scan(&b.ID, &b.UserID, &b.Email, &b.Code, &b.Date, &b.Amount, &b.OptionID, &settled, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if settled.Valid {
		b.SettledAt = &settled.Time
	}
	return &b, nil
}

// DeleteOptionBet removes a bet row.
func (d *Database) DeleteOptionBet(ctx context.Context, id string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM option_bets WHERE id = ?`, id)
	return err
}

// ListOptionBetsByUser returns all bets placed by a user.
func (d *Database) ListOptionBetsByUser(ctx context.Context, userID string) ([]OptionBet, error) {
	return d.queryBets(ctx, `
		SELECT id, user_id, email, code, bet_date, amount, option_id, settled_at, created_at
		FROM option_bets WHERE user_id = ? ORDER BY bet_date`, userID)
}

// ListUnsettledBetsDue returns bets maturing on or before day that have not
// been settled yet. A bet whose settlement call failed stays due and is
// picked up again on the next run.
func (d *Database) ListUnsettledBetsDue(ctx context.Context, day string) ([]OptionBet, error) {
	return d.queryBets(ctx, `
		SELECT id, user_id, email, code, bet_date, amount, option_id, settled_at, created_at
		FROM option_bets WHERE bet_date <= ? AND settled_at IS NULL ORDER BY bet_date`, day)
}

// MarkBetSettled stamps a bet as settled.
func (d *Database) MarkBetSettled(ctx context.Context, id string, at time.Time) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE option_bets SET settled_at = ? WHERE id = ?`, at, id)
	return err
}

func (d *Database) queryBets(ctx context.Context, query string, args ...any) ([]OptionBet, error) {
	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []OptionBet
	for rows.Next() {
		var b OptionBet
		var settled sql.NullTime
		if err := rows.Scan(&b.ID, &b.UserID, &b.Email, &b.Code, &b.Date, &b.Amount, &b.OptionID, &settled, &b.CreatedAt); err != nil {
			return nil, err
		}
		if settled.Valid {
			b.SettledAt = &settled.Time
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// UpsertOption stores reference option data.
func (d *Database) UpsertOption(ctx context.Context, o Option) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO options (id, symbol, option_type, strike, expiration_date, price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			option_type = excluded.option_type,
			strike = excluded.strike,
			expiration_date = excluded.expiration_date,
			price = excluded.price
	`, o.ID, o.Symbol, o.OptionType, o.Strike, o.ExpirationDate, o.Price)
	return err
}

// GetOption returns an option by id or nil if not found.
func (d *Database) GetOption(ctx context.Context, id string) (*Option, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT id, symbol, option_type, strike, expiration_date, price
		FROM options WHERE id = ?
	`, id)
	var o Option
	if err := row.Scan(&o.ID, &o.Symbol, &o.OptionType, &o.Strike, &o.ExpirationDate, &o.Price); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListOptions returns all reference options.
func (d *Database) ListOptions(ctx context.Context) ([]Option, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, option_type, strike, expiration_date, price
		FROM options ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Symbol, &o.OptionType, &o.Strike, &o.ExpirationDate, &o.Price); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpsertForex stores the latest quote for a currency pair.
func (d *Database) UpsertForex(ctx context.Context, f Forex) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO forex_pairs (symbol, from_currency, to_currency, exchange_rate, ask_price, bid_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			from_currency = excluded.from_currency,
			to_currency = excluded.to_currency,
			exchange_rate = excluded.exchange_rate,
			ask_price = excluded.ask_price,
			bid_price = excluded.bid_price,
			updated_at = CURRENT_TIMESTAMP
	`, f.Symbol, f.FromCurrency, f.ToCurrency, f.ExchangeRate, f.AskPrice, f.BidPrice)
	return err
}

// GetForex returns a currency pair by symbol or nil if not found.
func (d *Database) GetForex(ctx context.Context, symbol string) (*Forex, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT symbol, from_currency, to_currency, exchange_rate, ask_price, bid_price, updated_at
		FROM forex_pairs WHERE symbol = ?
	`, symbol)
	var f Forex
	if err := row.Scan(&f.Symbol, &f.FromCurrency, &f.ToCurrency, &f.ExchangeRate, &f.AskPrice, &f.BidPrice, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// ListForex returns all currency pairs.
func (d *Database) ListForex(ctx context.Context) ([]Forex, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, from_currency, to_currency, exchange_rate, ask_price, bid_price, updated_at
		FROM forex_pairs ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Forex
	for rows.Next() {
		var f Forex
		if err := rows.Scan(&f.Symbol, &f.FromCurrency, &f.ToCurrency, &f.ExchangeRate, &f.AskPrice, &f.BidPrice, &f.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// UpsertStock stores the latest price for an equity symbol.
func (d *Database) UpsertStock(ctx context.Context, s Stock) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO stocks (symbol, price, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			updated_at = CURRENT_TIMESTAMP
	`, s.Symbol, s.Price)
	return err
}

// GetStock returns an equity by symbol or nil if not found.
func (d *Database) GetStock(ctx context.Context, symbol string) (*Stock, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT symbol, price, updated_at FROM stocks WHERE symbol = ?
	`, symbol)
	var s Stock
	if err := row.Scan(&s.Symbol, &s.Price, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListStocks returns all equities.
func (d *Database) ListStocks(ctx context.Context) ([]Stock, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, price, updated_at FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.Symbol, &s.Price, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
